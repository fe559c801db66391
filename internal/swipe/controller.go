// internal/swipe/controller.go
// Orchestrates swipes: backend call, feed cursor, match insertion

package swipe

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
	"github.com/nikkjaat/cafemeetups-client/internal/common/errs"
	"github.com/nikkjaat/cafemeetups-client/internal/match"
	"github.com/nikkjaat/cafemeetups-client/internal/telemetry"
)

// Action is a swipe decision.
type Action string

const (
	ActionPass Action = "pass"
	ActionLike Action = "like"
)

// Record is an append-only swipe history entry. Records are never mutated or
// removed once appended.
type Record struct {
	ID        string
	ProfileID string
	Action    Action
	At        time.Time
	IsMatch   bool
}

// API is the slice of the REST client the controller needs.
type API interface {
	Like(ctx context.Context, profileID string) (*api.LikeResult, error)
	Pass(ctx context.Context, profileID string) error
	Swipe(ctx context.Context, profileID, direction string) (*api.LikeResult, error)
}

// Feed is the cursor surface the controller advances.
type Feed interface {
	Advance()
}

// Controller serializes the local effects of a swipe: history append, backend
// call, cursor advance, and on match an insertion into the match store. Safe
// for concurrent use; callers are expected to serialize swipes the way the UI
// does, since Current() depends on the cursor.
type Controller struct {
	api     API
	feed    Feed
	matches *match.Store
	viewer  func() string

	mu      sync.Mutex
	history []Record
	onMatch func(match.Match)
}

func NewController(a API, f Feed, ms *match.Store, viewer func() string) *Controller {
	return &Controller{
		api:     a,
		feed:    f,
		matches: ms,
		viewer:  viewer,
	}
}

// OnMatch registers the match-announcement callback, fired after a confirmed
// match lands in the store.
func (c *Controller) OnMatch(fn func(match.Match)) {
	c.mu.Lock()
	c.onMatch = fn
	c.mu.Unlock()
}

// SwipeLeft records a pass and advances the feed. The backend pass call is
// best-effort: failure is logged, local state still advances.
func (c *Controller) SwipeLeft(ctx context.Context, profileID string) {
	c.append(Record{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Action:    ActionPass,
		At:        time.Now(),
	})
	telemetry.RecordSwipe(string(ActionPass))

	if err := c.api.Pass(ctx, profileID); err != nil {
		log.Printf("swipe: pass on %s failed (continuing): %v", profileID, err)
		telemetry.RecordTransient("pass")
	}

	c.feed.Advance()
}

// SwipeRight records a like and awaits the backend verdict. On a confirmed
// match the payload is inserted into the match store (deduplicated by
// identity) and the OnMatch callback fires; inserting the match drops the
// counterpart from the feed's filtered view, which moves the next profile
// under the cursor by itself, so the explicit advance is skipped. On
// transport failure the swipe is retried once against the secondary swipe
// endpoint; if that also fails the feed advances anyway and a TransientError
// is returned for telemetry only.
func (c *Controller) SwipeRight(ctx context.Context, profileID string) (*match.Match, error) {
	rec := Record{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Action:    ActionLike,
		At:        time.Now(),
	}
	telemetry.RecordSwipe(string(ActionLike))

	result, err := c.api.Like(ctx, profileID)
	if err != nil {
		log.Printf("swipe: like on %s failed, retrying via swipe endpoint: %v", profileID, err)
		result, err = c.api.Swipe(ctx, profileID, "right")
	}
	if err != nil {
		// Optimistic UI wins over strict consistency: the swipe is not
		// replayable across reload.
		c.append(rec)
		c.feed.Advance()
		telemetry.RecordTransient("like")
		return nil, errs.Transient("like "+profileID, err)
	}

	rec.IsMatch = result.IsMatch
	c.append(rec)

	var confirmed *match.Match
	inserted := false
	if result.IsMatch && result.Match != nil {
		m := match.FromWire(*result.Match, c.viewer())
		if c.matches.Insert(m) {
			inserted = true
			telemetry.RecordMatch()
		}
		if got, ok := c.matches.Get(m.ID); ok {
			confirmed = &got
		}
	}

	// A newly inserted match shrinks the filtered view at the cursor; the
	// shrink is the advance. A duplicate confirmation shrinks nothing, so
	// the cursor moves explicitly.
	if !inserted {
		c.feed.Advance()
	}

	if confirmed != nil {
		c.mu.Lock()
		fn := c.onMatch
		c.mu.Unlock()
		if fn != nil {
			fn(*confirmed)
		}
	}
	return confirmed, nil
}

// History returns a copy of the swipe history in append order.
func (c *Controller) History() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.history...)
}

// Reset drops the history. Called on logout.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}

func (c *Controller) append(r Record) {
	c.mu.Lock()
	c.history = append(c.history, r)
	c.mu.Unlock()
}
