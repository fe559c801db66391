package identity

import "testing"

func TestCanonicalFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		ref  Ref
		want string
	}{
		{"prefers id", Ref{ID: "a", MongoID: "b", MatchID: "c"}, "a"},
		{"falls back to _id", Ref{MongoID: "b", MatchID: "c"}, "b"},
		{"falls back to matchId", Ref{MatchID: "c"}, "c"},
		{"empty when unset", Ref{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.Canonical(); got != tt.want {
				t.Errorf("Canonical() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	if !Equal(Ref{ID: "x"}, Ref{MongoID: "x"}) {
		t.Error("refs with the same identity in different aliases should be equal")
	}
	if Equal(Ref{}, Ref{}) {
		t.Error("two empty refs must not compare equal")
	}
	if Equal(Ref{ID: "x"}, Ref{ID: "y"}) {
		t.Error("different identities must not compare equal")
	}
}

func TestMatchesChecksEveryAlias(t *testing.T) {
	ref := Ref{MongoID: "abc", MatchID: "m1"}
	if !ref.Matches("abc") {
		t.Error("expected match on _id alias")
	}
	if !ref.Matches("m1") {
		t.Error("expected match on matchId alias")
	}
	if ref.Matches("") {
		t.Error("empty id must never match")
	}
}
