// internal/feed/store.go
// Ordered candidate list and swipe cursor

package feed

import (
	"context"
	"log"
	"net/url"
	"sync"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
	"github.com/nikkjaat/cafemeetups-client/internal/telemetry"
)

// State distinguishes the three user-visible empty conditions: still loading,
// load failed, and loaded-but-filtered-to-zero (Ready with Len()==0).
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Loader is the slice of the REST client the store needs.
type Loader interface {
	FilteredUsers(ctx context.Context, query url.Values) ([]api.Profile, error)
}

// Store holds the ordered candidate list and the swipe cursor. The cursor
// indexes the match-filtered view and is monotonically non-decreasing within
// one feed generation; replacing the feed resets it to zero.
type Store struct {
	loader  Loader
	matched func() []string

	mu       sync.RWMutex
	profiles []api.Profile
	cursor   int
	state    State
	criteria Criteria
	gen      uint64
}

// NewStore builds a feed store. matched supplies the matched counterpart
// identities for the filter and may be nil.
func NewStore(loader Loader, matched func() []string) *Store {
	return &Store{
		loader:   loader,
		matched:  matched,
		criteria: DefaultCriteria(),
	}
}

// Load validates the criteria, fetches candidates, and replaces the stored
// list, resetting the cursor to zero. A load superseded by a newer one is
// discarded when it resolves (last-request-wins). On transport failure the
// list is emptied, no stale data is retained, and the error is returned for
// user-visible reporting.
func (s *Store) Load(ctx context.Context, c Criteria) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = StateLoading
	s.criteria = c
	s.mu.Unlock()

	profiles, err := s.loader.FilteredUsers(ctx, c.Query())

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		// A newer load started while this one was in flight.
		log.Printf("feed: discarding stale load (gen %d < %d)", gen, s.gen)
		return nil
	}

	s.cursor = 0
	if err != nil {
		s.profiles = nil
		s.state = StateError
		telemetry.RecordFeedLoad("error")
		return err
	}

	s.profiles = profiles
	s.state = StateReady
	telemetry.RecordFeedLoad("ok")
	return nil
}

// Reload re-issues Load with the last-used criteria.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.RLock()
	c := s.criteria
	s.mu.RUnlock()
	return s.Load(ctx, c)
}

// SetCategory updates the category filter and reloads the feed.
func (s *Store) SetCategory(ctx context.Context, category string) error {
	s.mu.RLock()
	c := s.criteria
	s.mu.RUnlock()
	c.Category = category
	return s.Load(ctx, c)
}

// Current returns the profile at the cursor within the match-filtered view,
// or nil once the cursor has run past the end.
func (s *Store) Current() *api.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := s.filtered()
	if s.cursor >= len(view) {
		return nil
	}
	p := view[s.cursor]
	return &p
}

// Advance moves the cursor forward by one. A no-op when the cursor is
// already at or past the end of the filtered view.
func (s *Store) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor < len(s.filtered()) {
		s.cursor++
	}
}

// Reset rewinds the cursor to zero without reloading data.
func (s *Store) Reset() {
	s.mu.Lock()
	s.cursor = 0
	s.mu.Unlock()
}

// Clear drops all feed state. Called on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	s.profiles = nil
	s.cursor = 0
	s.state = StateIdle
	s.criteria = DefaultCriteria()
	s.mu.Unlock()
}

// Len reports the size of the match-filtered view.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filtered())
}

// Cursor returns the current cursor position.
func (s *Store) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// State reports the load state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Criteria returns the last-used criteria.
func (s *Store) Criteria() Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// filtered derives the match-excluded view. Caller holds at least a read
// lock.
func (s *Store) filtered() []api.Profile {
	if s.matched == nil {
		return s.profiles
	}
	return ExcludeMatched(s.profiles, s.matched())
}
