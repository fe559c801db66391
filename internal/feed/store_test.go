package feed

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
	"github.com/nikkjaat/cafemeetups-client/internal/common/errs"
)

// fakeLoader scripts discovery responses. Each call pops the next response;
// when gate is set, the first call blocks until the gate is closed.
type fakeLoader struct {
	mu        sync.Mutex
	responses []loaderResponse
	queries   []url.Values
	gate      chan struct{}
	started   chan struct{} // closed once the gated call has begun
	calls     int
}

type loaderResponse struct {
	profiles []api.Profile
	err      error
}

func (f *fakeLoader) FilteredUsers(ctx context.Context, q url.Values) ([]api.Profile, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.queries = append(f.queries, q)
	var resp loaderResponse
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	if first && f.gate != nil {
		if f.started != nil {
			close(f.started)
		}
		<-f.gate
	}
	return resp.profiles, resp.err
}

func newStoreWith(profiles []api.Profile) (*Store, *fakeLoader) {
	loader := &fakeLoader{responses: []loaderResponse{{profiles: profiles}}}
	return NewStore(loader, nil), loader
}

func TestLoadResetsCursorAndState(t *testing.T) {
	s, _ := newStoreWith([]api.Profile{profile("u1", "Ana"), profile("u2", "Bo")})

	if err := s.Load(context.Background(), DefaultCriteria()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.State() != StateReady {
		t.Errorf("state = %v, want ready", s.State())
	}
	if s.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", s.Cursor())
	}
	if got := s.Current(); got == nil || got.Canonical() != "u1" {
		t.Errorf("Current() = %v, want u1", got)
	}
}

func TestLoadRejectsInvalidCriteria(t *testing.T) {
	s, loader := newStoreWith(nil)

	c := DefaultCriteria()
	c.AgeMin = 40
	c.AgeMax = 30

	err := s.Load(context.Background(), c)
	if !errs.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(loader.queries) != 0 {
		t.Error("invalid criteria must be rejected before any request is sent")
	}

	c = DefaultCriteria()
	c.AgeMin = 16
	if err := s.Load(context.Background(), c); !errs.IsValidation(err) {
		t.Fatalf("age minimum below 18 must be rejected, got %v", err)
	}
}

func TestLoadFailureEmptiesFeed(t *testing.T) {
	s, _ := newStoreWith([]api.Profile{profile("u1", "Ana")})
	if err := s.Load(context.Background(), DefaultCriteria()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	loader := &fakeLoader{responses: []loaderResponse{{err: errs.Network("GET /users", errors.New("boom"))}}}
	s.loader = loader

	err := s.Reload(context.Background())
	if !errs.IsNetwork(err) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if s.State() != StateError {
		t.Errorf("state = %v, want error", s.State())
	}
	if s.Len() != 0 {
		t.Error("no stale data may survive a failed load")
	}
	if s.Current() != nil {
		t.Error("Current() must be nil after a failed load")
	}
}

func TestAdvanceClampsAtEnd(t *testing.T) {
	s, _ := newStoreWith([]api.Profile{profile("u1", "Ana"), profile("u2", "Bo")})
	if err := s.Load(context.Background(), DefaultCriteria()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for i := 0; i < 10; i++ {
		s.Advance()
	}
	if got := s.Cursor(); got != 2 {
		t.Errorf("cursor = %d, want clamp at 2", got)
	}
	if s.Current() != nil {
		t.Error("Current() past the end must be nil, never out of bounds")
	}

	s.Reset()
	if s.Cursor() != 0 {
		t.Error("Reset must rewind the cursor without reloading")
	}
	if got := s.Current(); got == nil || got.Canonical() != "u1" {
		t.Error("data must survive Reset")
	}
}

func TestCursorMonotonicUnderSwipes(t *testing.T) {
	s, _ := newStoreWith([]api.Profile{profile("u1", "A"), profile("u2", "B"), profile("u3", "C")})
	if err := s.Load(context.Background(), DefaultCriteria()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	prev := s.Cursor()
	for i := 0; i < 6; i++ {
		s.Advance()
		cur := s.Cursor()
		if cur < prev {
			t.Fatalf("cursor decreased: %d -> %d", prev, cur)
		}
		if cur > s.Len() {
			t.Fatalf("cursor %d exceeded list length %d", cur, s.Len())
		}
		prev = cur
	}
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	loader := &fakeLoader{
		gate:    gate,
		started: started,
		responses: []loaderResponse{
			{profiles: []api.Profile{profile("old", "Old")}},
			{profiles: []api.Profile{profile("new", "New")}},
		},
	}
	s := NewStore(loader, nil)

	done := make(chan error, 1)
	go func() {
		done <- s.Load(context.Background(), DefaultCriteria())
	}()
	<-started

	// Supersede the in-flight load with new criteria.
	newCriteria := DefaultCriteria()
	newCriteria.AgeMin = 30
	newCriteria.AgeMax = 40
	if err := s.Load(context.Background(), newCriteria); err != nil {
		t.Fatalf("second Load: %v", err)
	}

	// Now let the first load resolve; its result must be discarded.
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("stale Load returned error: %v", err)
	}

	if got := s.Current(); got == nil || got.Canonical() != "new" {
		t.Errorf("store reflects stale load result: %v", got)
	}
	if got := s.Criteria().AgeMin; got != 30 {
		t.Errorf("criteria AgeMin = %d, want 30", got)
	}
}

func TestFilteredViewRecomputedOnMatchChange(t *testing.T) {
	matched := []string{}
	var mu sync.Mutex
	matchedFn := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), matched...)
	}

	loader := &fakeLoader{responses: []loaderResponse{{profiles: []api.Profile{
		profile("u1", "A"), profile("u2", "B"), profile("u3", "C"),
	}}}}
	s := NewStore(loader, matchedFn)
	if err := s.Load(context.Background(), DefaultCriteria()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	s.Advance() // cursor 1 -> u2
	if got := s.Current(); got.Canonical() != "u2" {
		t.Fatalf("Current() = %s, want u2", got.Canonical())
	}

	// u2 becomes a confirmed match; the filtered view drops it immediately.
	mu.Lock()
	matched = append(matched, "u2")
	mu.Unlock()

	if got := s.Current(); got == nil || got.Canonical() != "u3" {
		t.Errorf("filter went stale: Current() = %v, want u3", got)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestCriteriaQueryEncoding(t *testing.T) {
	c := DefaultCriteria()
	c.Interests = []string{"coffee", "travel"}
	c.RelationshipType = "serious"

	q := c.Query()
	if q.Get("category") != "all" || q.Get("ageMin") != "18" || q.Get("ageMax") != "100" {
		t.Errorf("unexpected base params: %v", q)
	}
	if q.Get("interests") != "coffee,travel" {
		t.Errorf("interests = %q", q.Get("interests"))
	}
	if q.Get("relationshipType") != "serious" {
		t.Errorf("relationshipType = %q", q.Get("relationshipType"))
	}
}
