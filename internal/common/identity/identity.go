// internal/common/identity/identity.go
// Canonical identity extraction for backend payloads.
//
// Backend payloads are not uniform in which identity field is populated:
// older endpoints send Mongo-style "_id", newer ones send "id", and match
// payloads sometimes only carry "matchId". Every comparison in the client
// goes through Canonical so the fallback chain lives in exactly one place.

package identity

// Ref carries the identity aliases a payload may populate. Embed it in wire
// types so the aliases unmarshal in place.
type Ref struct {
	ID      string `json:"id,omitempty"`
	MongoID string `json:"_id,omitempty"`
	MatchID string `json:"matchId,omitempty"`
}

// Canonical returns the first populated alias, preferring "id".
func (r Ref) Canonical() string {
	switch {
	case r.ID != "":
		return r.ID
	case r.MongoID != "":
		return r.MongoID
	default:
		return r.MatchID
	}
}

// From builds a Ref from an already-canonical identity string.
func From(id string) Ref {
	return Ref{ID: id}
}

// Equal reports whether two refs resolve to the same non-empty identity.
func Equal(a, b Ref) bool {
	ca := a.Canonical()
	return ca != "" && ca == b.Canonical()
}

// Matches reports whether the ref resolves to the given identity, checking
// every alias so a caller holding any one of them can still address the
// entity.
func (r Ref) Matches(id string) bool {
	if id == "" {
		return false
	}
	return r.ID == id || r.MongoID == id || r.MatchID == id
}
