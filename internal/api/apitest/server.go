// internal/api/apitest/server.go
// In-process fake backend implementing the REST + real-time contract.
// Backs the package tests and meetctl's demo mode.

package apitest

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
	"github.com/nikkjaat/cafemeetups-client/internal/realtime"
)

type account struct {
	Password string
	User     api.User
}

// Server is a scriptable backend double. Seed* methods install fixtures,
// Fail* methods inject transport failures, Push broadcasts real-time events
// to every connected channel client.
type Server struct {
	secret []byte

	mu        sync.Mutex
	accounts  map[string]account // keyed by email
	usersByID map[string]api.User
	profiles  []api.Profile
	likeBack  map[string]bool
	matches   []api.Match
	messages  map[string][]api.Message
	conns     map[*websocket.Conn]bool
	received  []realtime.Event

	failLike  bool
	failSwipe bool
	failUsers bool
	failSend  bool

	upgrader websocket.Upgrader
}

func New() *Server {
	return &Server{
		secret:    []byte("apitest-secret"),
		accounts:  map[string]account{},
		usersByID: map[string]api.User{},
		likeBack:  map[string]bool{},
		messages:  map[string][]api.Message{},
		conns:     map[*websocket.Conn]bool{},
		upgrader:  websocket.Upgrader{},
	}
}

// Router returns the full HTTP surface: REST endpoints plus /ws.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.Post("/google", s.handleSocial("google"))
		r.Post("/facebook", s.handleSocial("facebook"))
		r.Get("/profile", s.authed(s.handleMe))
		r.Put("/profile", s.authed(s.handleUpdateProfile))
	})

	r.Get("/users", s.authed(s.handleUsers))

	r.Route("/matches", func(r chi.Router) {
		r.Get("/", s.authed(s.handleMatches))
		r.Post("/like", s.authed(s.handleLike))
		r.Post("/pass", s.authed(s.handlePass))
		r.Post("/swipe", s.authed(s.handleSwipe))
	})

	r.Get("/messages/{matchID}", s.authed(s.handleMessages))
	r.Post("/messages", s.authed(s.handleSendMessage))

	r.Get("/ws", s.handleWS)

	return r
}

// Fixtures

func (s *Server) SeedAccount(email, password string, u api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = account{Password: password, User: u}
	s.usersByID[u.Canonical()] = u
}

func (s *Server) SeedProfiles(profiles ...api.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, profiles...)
}

// LikeBack marks a profile as already liking the viewer, so a right swipe on
// it produces a match.
func (s *Server) LikeBack(profileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.likeBack[profileID] = true
}

func (s *Server) SeedMatch(m api.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append(s.matches, m)
}

func (s *Server) SeedMessages(matchID string, msgs ...api.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[matchID] = append(s.messages[matchID], msgs...)
}

// Fault injection

func (s *Server) FailLike(v bool)  { s.mu.Lock(); s.failLike = v; s.mu.Unlock() }
func (s *Server) FailSwipe(v bool) { s.mu.Lock(); s.failSwipe = v; s.mu.Unlock() }
func (s *Server) FailUsers(v bool) { s.mu.Lock(); s.failUsers = v; s.mu.Unlock() }
func (s *Server) FailSend(v bool)  { s.mu.Lock(); s.failSend = v; s.mu.Unlock() }

// Push broadcasts a real-time event to every connected client.
func (s *Server) Push(event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(realtime.Event{Name: event, Data: data})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			conn.Close()
			delete(s.conns, conn)
		}
	}
	return nil
}

// Received returns every event emitted by channel clients, in arrival order.
func (s *Server) Received() []realtime.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.Event(nil), s.received...)
}

// ConnCount reports the number of live channel connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// CloseConns drops every channel connection, forcing clients to reconnect.
func (s *Server) CloseConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
}

// Handlers

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "bad request"})
		return
	}

	s.mu.Lock()
	acct, exists := s.accounts[req.Email]
	s.mu.Unlock()

	if !exists || acct.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "invalid credentials"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   s.mintToken(acct.User.Canonical()),
		"user":    acct.User,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "bad request"})
		return
	}

	user := api.User{
		Name:         req.Name,
		Email:        req.Email,
		Age:          req.Age,
		Gender:       req.Gender,
		InterestedIn: req.InterestedIn,
		Location:     req.Location,
		Bio:          req.Bio,
		Interests:    req.Interests,
	}
	user.ID = uuid.NewString()

	s.mu.Lock()
	s.accounts[req.Email] = account{Password: req.Password, User: user}
	s.usersByID[user.ID] = user
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"token":   s.mintToken(user.ID),
		"user":    user,
	})
}

// handleSocial accepts any provider token and returns a deterministic account
// for it, which is all the client-side contract needs.
func (s *Server) handleSocial(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TokenID string `json:"tokenId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TokenID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "missing token"})
			return
		}

		email := provider + ":" + req.TokenID

		s.mu.Lock()
		acct, exists := s.accounts[email]
		if !exists {
			user := api.User{Name: provider + " user", Email: email}
			user.ID = uuid.NewString()
			acct = account{User: user}
			s.accounts[email] = acct
			s.usersByID[user.ID] = user
		}
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"token":   s.mintToken(acct.User.Canonical()),
			"user":    acct.User,
		})
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	user, exists := s.usersByID[userID]
	s.mu.Unlock()

	if !exists {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "unknown user"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, userID string) {
	var updates api.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "bad request"})
		return
	}

	s.mu.Lock()
	user, exists := s.usersByID[userID]
	if exists {
		if updates.Name != nil {
			user.Name = *updates.Name
		}
		if updates.Location != nil {
			user.Location = *updates.Location
		}
		if updates.Bio != nil {
			user.Bio = *updates.Bio
		}
		if updates.Interests != nil {
			user.Interests = updates.Interests
		}
		if updates.Images != nil {
			user.Images = updates.Images
		}
		s.usersByID[userID] = user
	}
	s.mu.Unlock()

	if !exists {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "unknown user"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	fail := s.failUsers
	profiles := append([]api.Profile(nil), s.profiles...)
	s.mu.Unlock()

	if fail {
		http.Error(w, "discovery unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "users": profiles})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	matches := append([]api.Match(nil), s.matches...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "matches": matches})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	fail := s.failLike
	s.mu.Unlock()
	if fail {
		http.Error(w, "like unavailable", http.StatusBadGateway)
		return
	}
	s.resolveLike(w, r)
}

func (s *Server) handlePass(w http.ResponseWriter, r *http.Request, userID string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	fail := s.failSwipe
	s.mu.Unlock()
	if fail {
		http.Error(w, "swipe unavailable", http.StatusBadGateway)
		return
	}

	var req struct {
		UserID string `json:"userId"`
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "bad request"})
		return
	}
	if req.Action != "right" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		return
	}
	s.finishLike(w, req.UserID)
}

func (s *Server) resolveLike(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "bad request"})
		return
	}
	s.finishLike(w, req.UserID)
}

func (s *Server) finishLike(w http.ResponseWriter, profileID string) {
	s.mu.Lock()
	isMatch := s.likeBack[profileID]
	var created *api.Match
	if isMatch {
		var counterpart *api.Profile
		for i := range s.profiles {
			if s.profiles[i].Matches(profileID) {
				counterpart = &s.profiles[i]
				break
			}
		}
		now := time.Now()
		m := api.Match{User: counterpart, CreatedAt: &now}
		m.ID = "m-" + uuid.NewString()
		s.matches = append(s.matches, m)
		created = &m
	}
	s.mu.Unlock()

	resp := map[string]interface{}{"success": true, "isMatch": isMatch}
	if created != nil {
		resp["match"] = created
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, userID string) {
	matchID := chi.URLParam(r, "matchID")

	s.mu.Lock()
	msgs := append([]api.Message(nil), s.messages[matchID]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "messages": msgs})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	fail := s.failSend
	s.mu.Unlock()
	if fail {
		http.Error(w, "messaging unavailable", http.StatusBadGateway)
		return
	}

	var req struct {
		MatchID string `json:"matchId"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "bad request"})
		return
	}

	msg := api.Message{
		Text:      req.Message,
		Sender:    "user",
		SenderID:  userID,
		Timestamp: time.Now(),
		IsRead:    true,
	}
	msg.ID = uuid.NewString()

	s.mu.Lock()
	s.messages[req.MatchID] = append(s.messages[req.MatchID], msg)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": msg})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev realtime.Event
			if json.Unmarshal(data, &ev) == nil {
				s.mu.Lock()
				s.received = append(s.received, ev)
				s.mu.Unlock()
			}
		}
	}()
}

// Auth plumbing

type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "missing token"})
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		})
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "invalid token"})
			return
		}
		next(w, r, claims.Subject)
	}
}

func (s *Server) mintToken(userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, _ := token.SignedString(s.secret)
	return signed
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
