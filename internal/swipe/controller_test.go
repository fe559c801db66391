package swipe

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
	"github.com/nikkjaat/cafemeetups-client/internal/common/errs"
	"github.com/nikkjaat/cafemeetups-client/internal/common/identity"
	"github.com/nikkjaat/cafemeetups-client/internal/feed"
	"github.com/nikkjaat/cafemeetups-client/internal/match"
)

type fakeAPI struct {
	likeErr   error
	swipeErr  error
	passErr   error
	result    *api.LikeResult
	likes     []string
	passes    []string
	swipes    []string
	passCalls int
}

func (f *fakeAPI) Like(ctx context.Context, profileID string) (*api.LikeResult, error) {
	f.likes = append(f.likes, profileID)
	if f.likeErr != nil {
		return nil, f.likeErr
	}
	return f.result, nil
}

func (f *fakeAPI) Pass(ctx context.Context, profileID string) error {
	f.passCalls++
	f.passes = append(f.passes, profileID)
	return f.passErr
}

func (f *fakeAPI) Swipe(ctx context.Context, profileID, direction string) (*api.LikeResult, error) {
	f.swipes = append(f.swipes, profileID+":"+direction)
	if f.swipeErr != nil {
		return nil, f.swipeErr
	}
	return f.result, nil
}

type countingFeed struct{ advances int }

func (f *countingFeed) Advance() { f.advances++ }

func noMatch() *api.LikeResult { return &api.LikeResult{} }

func matchResult(matchID, userID, name string) *api.LikeResult {
	when := time.Now()
	w := &api.Match{
		User:      &api.Profile{Ref: identity.From(userID), Name: name},
		CreatedAt: &when,
	}
	w.ID = matchID
	return &api.LikeResult{IsMatch: true, Match: w}
}

func newController(a *fakeAPI) (*Controller, *countingFeed, *match.Store) {
	feed := &countingFeed{}
	matches := match.NewStore()
	c := NewController(a, feed, matches, func() string { return "u-me" })
	return c, feed, matches
}

func TestSwipeLeftAdvancesEvenOnBackendFailure(t *testing.T) {
	backend := &fakeAPI{passErr: errs.Network("POST /matches/pass", errors.New("down"))}
	c, feed, _ := newController(backend)

	c.SwipeLeft(context.Background(), "u-a")

	if feed.advances != 1 {
		t.Errorf("advances = %d, want 1 regardless of backend outcome", feed.advances)
	}
	if backend.passCalls != 1 {
		t.Errorf("pass calls = %d, want 1", backend.passCalls)
	}
	h := c.History()
	if len(h) != 1 || h[0].Action != ActionPass || h[0].ProfileID != "u-a" {
		t.Errorf("unexpected history: %+v", h)
	}
}

func TestSwipeRightNoMatch(t *testing.T) {
	backend := &fakeAPI{result: noMatch()}
	c, feed, matches := newController(backend)

	m, err := c.SwipeRight(context.Background(), "u-a")
	if err != nil {
		t.Fatalf("SwipeRight: %v", err)
	}
	if m != nil {
		t.Error("no match expected")
	}
	if matches.Len() != 0 {
		t.Error("match store must stay empty without a mutual like")
	}
	if feed.advances != 1 {
		t.Errorf("advances = %d, want 1", feed.advances)
	}
}

func TestSwipeRightConfirmedMatch(t *testing.T) {
	backend := &fakeAPI{result: matchResult("m1", "u-b", "Bo")}
	c, feed, matches := newController(backend)

	var announced []string
	c.OnMatch(func(m match.Match) { announced = append(announced, m.ID) })

	m, err := c.SwipeRight(context.Background(), "u-b")
	if err != nil {
		t.Fatalf("SwipeRight: %v", err)
	}
	if m == nil || m.ID != "m1" || m.User.Name != "Bo" {
		t.Fatalf("unexpected match: %+v", m)
	}
	if matches.Len() != 1 {
		t.Errorf("store Len() = %d, want 1", matches.Len())
	}
	// The inserted match leaves the filtered view; advancing on top of that
	// would skip a profile.
	if feed.advances != 0 {
		t.Errorf("advances = %d, want 0 on a confirmed match", feed.advances)
	}
	if len(announced) != 1 || announced[0] != "m1" {
		t.Errorf("OnMatch announcements = %v", announced)
	}

	h := c.History()
	if len(h) != 1 || !h[0].IsMatch {
		t.Errorf("history must record the match verdict: %+v", h)
	}
}

func TestSwipeRightDuplicateConfirmationIsDeduped(t *testing.T) {
	backend := &fakeAPI{result: matchResult("m1", "u-b", "Bo")}
	c, feed, matches := newController(backend)

	announcements := 0
	c.OnMatch(func(match.Match) { announcements++ })

	// The backend can report the same match twice across retries.
	c.SwipeRight(context.Background(), "u-b")
	c.SwipeRight(context.Background(), "u-b")

	if matches.Len() != 1 {
		t.Errorf("store Len() = %d, want deduped single entry", matches.Len())
	}
	// The callback still fires per confirmed swipe; the store dedups.
	if announcements != 2 {
		t.Errorf("announcements = %d, want 2", announcements)
	}
	// Only the duplicate advances: its insert did not shrink the view.
	if feed.advances != 1 {
		t.Errorf("advances = %d, want 1", feed.advances)
	}
}

func TestSwipeRightFallsBackToSwipeEndpoint(t *testing.T) {
	backend := &fakeAPI{
		likeErr: errs.Network("POST /matches/like", errors.New("down")),
		result:  matchResult("m1", "u-b", "Bo"),
	}
	c, feed, matches := newController(backend)

	m, err := c.SwipeRight(context.Background(), "u-b")
	if err != nil {
		t.Fatalf("retry path should recover: %v", err)
	}
	if m == nil || matches.Len() != 1 {
		t.Error("match from the fallback endpoint must be stored")
	}
	if len(backend.swipes) != 1 || backend.swipes[0] != "u-b:right" {
		t.Errorf("fallback calls = %v", backend.swipes)
	}
	if feed.advances != 0 {
		t.Errorf("advances = %d, want 0 on a confirmed match", feed.advances)
	}
}

func TestSwipeRightBothEndpointsDown(t *testing.T) {
	backend := &fakeAPI{
		likeErr:  errs.Network("POST /matches/like", errors.New("down")),
		swipeErr: errs.Network("POST /matches/swipe", errors.New("down")),
	}
	c, feed, matches := newController(backend)

	m, err := c.SwipeRight(context.Background(), "u-b")
	if !errs.IsTransient(err) {
		t.Fatalf("expected TransientError, got %v", err)
	}
	if m != nil || matches.Len() != 0 {
		t.Error("no match may be recorded on failure")
	}
	// The cursor still advances so the UI is never stuck on one profile.
	if feed.advances != 1 {
		t.Errorf("advances = %d, want 1", feed.advances)
	}
	if h := c.History(); len(h) != 1 || h[0].IsMatch {
		t.Errorf("history must record the attempt without a match: %+v", h)
	}
}

// staticLoader serves a fixed discovery page for real feed-store wiring.
type staticLoader struct{ profiles []api.Profile }

func (l staticLoader) FilteredUsers(ctx context.Context, q url.Values) ([]api.Profile, error) {
	return l.profiles, nil
}

func discoveryProfile(id, name string) api.Profile {
	return api.Profile{Ref: identity.From(id), Name: name, Age: 25}
}

func TestScenarioSwipeSequence(t *testing.T) {
	// Feed [A, B, C] through the real feed store and match filter: pass A,
	// like B with a mutual like back, and the cursor must land on C.
	matches := match.NewStore()
	feedStore := feed.NewStore(staticLoader{profiles: []api.Profile{
		discoveryProfile("u-A", "A"),
		discoveryProfile("u-B", "B"),
		discoveryProfile("u-C", "C"),
	}}, matches.MatchedUserIDs)
	if err := feedStore.Load(context.Background(), feed.DefaultCriteria()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	backend := &fakeAPI{result: matchResult("m1", "u-B", "Bee")}
	c := NewController(backend, feedStore, matches, func() string { return "u-me" })

	c.SwipeLeft(context.Background(), feedStore.Current().Canonical())
	if got := feedStore.Current(); got == nil || got.Canonical() != "u-B" {
		t.Fatalf("Current() after pass = %v, want u-B", got)
	}

	if _, err := c.SwipeRight(context.Background(), "u-B"); err != nil {
		t.Fatalf("SwipeRight: %v", err)
	}
	// The match removed B from the filtered view; C sits at the cursor, not
	// past it.
	if got := feedStore.Current(); got == nil || got.Canonical() != "u-C" {
		t.Fatalf("Current() after match = %v, want u-C", got)
	}
	if feedStore.Len() != 2 {
		t.Errorf("Len() = %d, want 2 with B filtered out", feedStore.Len())
	}
	if _, ok := matches.Get("m1"); !ok {
		t.Error("mutual like must land in the match store")
	}

	h := c.History()
	if len(h) != 2 || h[0].Action != ActionPass || h[1].Action != ActionLike {
		t.Errorf("unexpected history order: %+v", h)
	}

	c.Reset()
	if len(c.History()) != 0 {
		t.Error("Reset must drop the history")
	}
}

func TestDuplicateMatchConfirmationAdvancesRealFeed(t *testing.T) {
	// When the backend re-confirms an already stored match, nothing leaves
	// the filtered view, so the cursor must move explicitly.
	matches := match.NewStore()
	feedStore := feed.NewStore(staticLoader{profiles: []api.Profile{
		discoveryProfile("u-B", "B"),
		discoveryProfile("u-C", "C"),
	}}, matches.MatchedUserIDs)
	if err := feedStore.Load(context.Background(), feed.DefaultCriteria()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	backend := &fakeAPI{result: matchResult("m1", "u-B", "Bee")}
	c := NewController(backend, feedStore, matches, func() string { return "u-me" })

	// First confirmation removes B from the view; C slides under the cursor.
	if _, err := c.SwipeRight(context.Background(), "u-B"); err != nil {
		t.Fatal(err)
	}
	if got := feedStore.Current(); got == nil || got.Canonical() != "u-C" {
		t.Fatalf("Current() = %v, want u-C", got)
	}

	// The backend re-reports m1 for the next swipe; the store dedups it and
	// the view keeps its size, so the cursor advances past C.
	if _, err := c.SwipeRight(context.Background(), "u-C"); err != nil {
		t.Fatal(err)
	}
	if got := feedStore.Current(); got != nil {
		t.Errorf("Current() = %v, want exhausted feed", got)
	}
	if matches.Len() != 1 {
		t.Errorf("store Len() = %d, want deduped single entry", matches.Len())
	}
}
