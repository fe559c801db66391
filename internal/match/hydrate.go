// internal/match/hydrate.go

package match

import (
	"context"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
)

// Fetcher is the slice of the REST client the hydrator needs.
type Fetcher interface {
	Matches(ctx context.Context) ([]api.Match, error)
}

// Hydrate replaces the store contents with the backend's full match history.
// Called once at session start and again after a confirmed match so the
// counterpart's latest public profile lands in the list.
func Hydrate(ctx context.Context, f Fetcher, s *Store, viewerID string) error {
	wire, err := f.Matches(ctx)
	if err != nil {
		return err
	}

	ms := make([]*Match, 0, len(wire))
	for _, w := range wire {
		ms = append(ms, FromWire(w, viewerID))
	}
	s.ReplaceAll(ms)
	return nil
}
