// cmd/meetctl/main.go
// Terminal client for the CafeMeetUps backend. Wires the session gate, feed
// store, swipe controller, match store, chat engine, and real-time channel
// into a small command loop. --demo runs against an in-process fake backend.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
	"github.com/nikkjaat/cafemeetups-client/internal/api/apitest"
	"github.com/nikkjaat/cafemeetups-client/internal/chat"
	"github.com/nikkjaat/cafemeetups-client/internal/config"
	"github.com/nikkjaat/cafemeetups-client/internal/feed"
	"github.com/nikkjaat/cafemeetups-client/internal/match"
	"github.com/nikkjaat/cafemeetups-client/internal/realtime"
	"github.com/nikkjaat/cafemeetups-client/internal/session"
	"github.com/nikkjaat/cafemeetups-client/internal/swipe"
)

func main() {
	demo := flag.Bool("demo", false, "run against an in-process fake backend")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	if *demo {
		ts := httptest.NewServer(seedDemoBackend().Router())
		defer ts.Close()
		cfg.APIBaseURL = ts.URL
		cfg.SocketURL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
		log.Printf("demo backend at %s (login: demo@cafemeetups.com / demo1234)", ts.URL)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("metrics on %s/metrics", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("metrics listener: %v", err)
			}
		}()
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout)
	gate := session.NewGate(client, cfg.TokenPath)

	matches := match.NewStore()
	feedStore := feed.NewStore(client, matches.MatchedUserIDs)
	controller := swipe.NewController(client, feedStore, matches, gate.UserID)
	channel := realtime.NewChannel(cfg.SocketURL, gate.Token)
	engine := chat.NewEngine(client, matches, channel, gate.UserID, cfg.TypingExpiry)

	controller.OnMatch(func(m match.Match) {
		fmt.Printf("\n*** It's a match with %s! ***\n", m.User.Name)
		// Refresh so the counterpart's latest profile lands in the list.
		if err := match.Hydrate(context.Background(), client, matches, gate.UserID()); err != nil {
			log.Printf("match refresh failed: %v", err)
		}
	})

	gate.OnLogin(func(ctx context.Context, u *api.User) {
		criteria := feedStore.Criteria()
		criteria.Limit = cfg.FeedLimit
		if err := feedStore.Load(ctx, criteria); err != nil {
			log.Printf("feed load failed: %v", err)
		}
		if err := match.Hydrate(ctx, client, matches, u.Canonical()); err != nil {
			log.Printf("match hydration failed: %v", err)
		}
		if err := channel.Connect(ctx); err != nil {
			log.Printf("channel connect failed: %v", err)
		}
	})
	gate.OnLogout(func() {
		engine.Reset()
		channel.Disconnect()
		feedStore.Clear()
		matches.Reset()
		controller.Reset()
	})

	ctx := context.Background()
	if user, err := gate.Restore(ctx); err != nil {
		log.Printf("session restore failed: %v", err)
	} else if user != nil {
		fmt.Printf("Welcome back, %s\n", user.Name)
	}

	repl(ctx, gate, feedStore, controller, matches, engine, channel)
}

func repl(ctx context.Context, gate *session.Gate, feedStore *feed.Store,
	controller *swipe.Controller, matches *match.Store, engine *chat.Engine,
	channel *realtime.Channel) {

	fmt.Println("commands: login <email> <password> | feed | swipe left|right | matches | open <matchId> | send <text> | close | logout | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "login":
			if len(fields) != 3 {
				fmt.Println("usage: login <email> <password>")
				continue
			}
			user, err := gate.Login(ctx, fields[1], fields[2])
			if err != nil {
				fmt.Println("login failed:", err)
				continue
			}
			fmt.Printf("Logged in as %s\n", user.Name)

		case "feed":
			if !requireAuth(gate) {
				continue
			}
			printCurrent(feedStore)

		case "swipe":
			if !requireAuth(gate) || len(fields) != 2 {
				continue
			}
			p := feedStore.Current()
			if p == nil {
				fmt.Println("No more profiles. Try 'feed' after changing filters.")
				continue
			}
			switch fields[1] {
			case "left":
				controller.SwipeLeft(ctx, p.Canonical())
			case "right":
				if _, err := controller.SwipeRight(ctx, p.Canonical()); err != nil {
					log.Printf("swipe degraded: %v", err)
				}
			default:
				fmt.Println("usage: swipe left|right")
				continue
			}
			printCurrent(feedStore)

		case "matches":
			if !requireAuth(gate) {
				continue
			}
			for _, m := range matches.All() {
				preview := ""
				if m.LastMessage != nil {
					preview = " — " + m.LastMessage.Text
				}
				online := ""
				if channel.IsOnline(m.User.Canonical()) {
					online = " (online)"
				}
				fmt.Printf("%s: %s%s%s\n", m.ID, m.User.Name, online, preview)
			}

		case "open":
			if !requireAuth(gate) || len(fields) != 2 {
				continue
			}
			if err := engine.Open(ctx, fields[1]); err != nil {
				fmt.Println("open failed:", err)
				continue
			}
			if m, ok := matches.Get(fields[1]); ok {
				for _, msg := range m.Messages {
					fmt.Printf("[%s] %s\n", msg.Sender, msg.Text)
				}
			}

		case "send":
			if !requireAuth(gate) || len(fields) < 2 {
				continue
			}
			if _, err := engine.Send(ctx, strings.Join(fields[1:], " ")); err != nil {
				fmt.Println("send:", err)
			}

		case "close":
			engine.Close()

		case "logout":
			gate.Logout()
			fmt.Println("Logged out")

		case "quit", "exit":
			gate.Logout()
			return

		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func requireAuth(gate *session.Gate) bool {
	if !gate.Authenticated() {
		fmt.Println("Please login first")
		return false
	}
	return true
}

func printCurrent(feedStore *feed.Store) {
	switch feedStore.State() {
	case feed.StateLoading:
		fmt.Println("Loading profiles...")
		return
	case feed.StateError:
		fmt.Println("Could not load profiles. Try 'feed' again.")
		return
	}
	p := feedStore.Current()
	if p == nil {
		fmt.Println("No profiles match your filters.")
		return
	}
	fmt.Printf("%s, %d — %s (%d/%d)\n", p.Name, p.Age, p.Location,
		feedStore.Cursor()+1, feedStore.Len())
}

// seedDemoBackend builds a fake backend with a demo account and a few
// swipeable profiles.
func seedDemoBackend() *apitest.Server {
	srv := apitest.New()

	me := api.User{Name: "Demo", Email: "demo@cafemeetups.com", Age: 28, Gender: "other", InterestedIn: "everyone"}
	me.ID = "u-demo"
	srv.SeedAccount(me.Email, "demo1234", me)

	now := time.Now()
	for i, name := range []string{"Aaliyah", "Ben", "Chiara", "Dev", "Emi"} {
		p := api.Profile{
			Name:       name,
			Age:        24 + i,
			Location:   "Brooklyn, NY",
			Interests:  []string{"coffee", "travel"},
			LastActive: &now,
		}
		p.ID = fmt.Sprintf("u-%d", i+1)
		srv.SeedProfiles(p)
	}
	// Ben and Emi already like the demo user back.
	srv.LikeBack("u-2")
	srv.LikeBack("u-5")

	return srv
}
