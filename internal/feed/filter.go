// internal/feed/filter.go

package feed

import (
	"github.com/nikkjaat/cafemeetups-client/internal/api"
)

// ExcludeMatched returns profiles minus any whose identity appears in
// matchedIDs. Pure derivation: recomputed on every read so it can never go
// stale against either input. A pending like with no resolved match does not
// exclude a profile; only confirmed matches do.
func ExcludeMatched(profiles []api.Profile, matchedIDs []string) []api.Profile {
	if len(profiles) == 0 || len(matchedIDs) == 0 {
		return profiles
	}

	matched := make(map[string]bool, len(matchedIDs))
	for _, id := range matchedIDs {
		if id != "" {
			matched[id] = true
		}
	}

	out := make([]api.Profile, 0, len(profiles))
	for _, p := range profiles {
		if matched[p.Canonical()] {
			continue
		}
		out = append(out, p)
	}
	return out
}
