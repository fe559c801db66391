// internal/match/models.go

package match

import (
	"time"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
)

// Role is the sender of a message relative to the viewer.
type Role string

const (
	RoleSelf  Role = "self"
	RoleOther Role = "other"
)

// Message is a chat message normalized for local state.
type Message struct {
	ID        string
	Text      string
	Sender    Role
	Timestamp time.Time
	Read      bool

	// Pending marks an optimistic send not yet confirmed by the backend;
	// Failed marks a send that errored and can be retried.
	Pending bool
	Failed  bool
}

// Match is a confirmed mutual like. Never deleted locally; unmatching is a
// backend operation outside this client.
type Match struct {
	ID          string
	User        api.Profile
	MatchedAt   time.Time
	Messages    []Message
	LastMessage *Message
}

// FromWire normalizes a backend match payload. The counterpart is resolved
// from the "user" field when present, otherwise from the "users" pair by
// excluding the viewer.
func FromWire(w api.Match, viewerID string) *Match {
	m := &Match{ID: w.Canonical()}

	switch {
	case w.User != nil:
		m.User = *w.User
	case len(w.Users) > 0:
		m.User = w.Users[0]
		for _, u := range w.Users {
			if u.Canonical() != viewerID {
				m.User = u
				break
			}
		}
	}

	switch {
	case w.CreatedAt != nil:
		m.MatchedAt = *w.CreatedAt
	case w.MatchedAt != nil:
		m.MatchedAt = *w.MatchedAt
	default:
		m.MatchedAt = time.Now()
	}

	for _, wm := range w.Messages {
		m.Messages = append(m.Messages, MessageFromWire(wm, viewerID))
	}
	if n := len(m.Messages); n > 0 {
		last := m.Messages[n-1]
		m.LastMessage = &last
	}
	return m
}

// MessageFromWire normalizes a backend message. Sender role is taken from the
// literal "user"/"match" roles the history endpoint emits, or derived by
// comparing the sender identity to the viewer for real-time payloads.
func MessageFromWire(w api.Message, viewerID string) Message {
	role := RoleOther
	switch w.Sender {
	case "user", "self":
		role = RoleSelf
	case "match", "other", "":
		if w.SenderID != "" && w.SenderID == viewerID {
			role = RoleSelf
		}
	default:
		// sender carries a raw user id on some payloads
		if w.Sender == viewerID {
			role = RoleSelf
		}
	}

	ts := w.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return Message{
		ID:        w.Canonical(),
		Text:      w.Text,
		Sender:    role,
		Timestamp: ts,
		Read:      w.IsRead,
	}
}
