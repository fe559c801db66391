// internal/match/store.go
// Session-scoped store of confirmed matches and their message streams

package match

import (
	"log"
	"sync"
)

// Store is the authoritative list of matches for the session. Insertion is
// idempotent by canonical identity, so out-of-order match confirmations from
// the backend cannot produce duplicates.
type Store struct {
	mu      sync.RWMutex
	matches []*Match
}

func NewStore() *Store {
	return &Store{}
}

// Insert adds m unless an entry with the same identity already exists.
// Returns true when the match was added.
func (s *Store) Insert(m *Match) bool {
	if m == nil || m.ID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(m.ID) != nil {
		return false
	}
	cp := *m
	cp.Messages = append([]Message(nil), m.Messages...)
	s.matches = append(s.matches, &cp)
	return true
}

// ReplaceAll hydrates the store from a full match-history fetch, replacing
// any previous contents.
func (s *Store) ReplaceAll(ms []*Match) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.matches = s.matches[:0]
	seen := make(map[string]bool, len(ms))
	for _, m := range ms {
		if m == nil || m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		cp := *m
		cp.Messages = append([]Message(nil), m.Messages...)
		s.matches = append(s.matches, &cp)
	}
}

// AppendMessage appends to the match's message stream, skipping identities
// already present, and refreshes the last-message summary. Unknown match ids
// are a logged no-op.
func (s *Store) AppendMessage(matchID string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.find(matchID)
	if m == nil {
		log.Printf("match store: append to unknown match %s", matchID)
		return false
	}
	if msg.ID != "" {
		for i := range m.Messages {
			if m.Messages[i].ID == msg.ID {
				return false
			}
		}
	}
	m.Messages = append(m.Messages, msg)
	last := msg
	m.LastMessage = &last
	return true
}

// SetMessages replaces the match's entire message stream (bulk history load)
// and recomputes the last-message summary.
func (s *Store) SetMessages(matchID string, msgs []Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.find(matchID)
	if m == nil {
		log.Printf("match store: set messages on unknown match %s", matchID)
		return false
	}
	m.Messages = append(m.Messages[:0:0], msgs...)
	if n := len(m.Messages); n > 0 {
		last := m.Messages[n-1]
		m.LastMessage = &last
	} else {
		m.LastMessage = nil
	}
	return true
}

// ReplaceMessage swaps the message with oldID for msg, keeping its position.
// Used to reconcile an optimistic send with the server-assigned message.
func (s *Store) ReplaceMessage(matchID, oldID string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.find(matchID)
	if m == nil {
		return false
	}
	for i := range m.Messages {
		if m.Messages[i].ID == oldID {
			m.Messages[i] = msg
			if i == len(m.Messages)-1 {
				last := msg
				m.LastMessage = &last
			}
			return true
		}
	}
	return false
}

// UpdateMessage applies fn to the message with the given id. Returns false
// when the match or message is absent.
func (s *Store) UpdateMessage(matchID, messageID string, fn func(*Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.find(matchID)
	if m == nil {
		return false
	}
	for i := range m.Messages {
		if m.Messages[i].ID == messageID {
			fn(&m.Messages[i])
			if m.LastMessage != nil && m.LastMessage.ID == messageID {
				last := m.Messages[i]
				m.LastMessage = &last
			}
			return true
		}
	}
	return false
}

// MarkRead flips the read flag of the referenced message. Idempotent;
// unknown identities are a no-op (the message may simply not be loaded yet).
func (s *Store) MarkRead(matchID, messageID string) bool {
	return s.UpdateMessage(matchID, messageID, func(msg *Message) {
		msg.Read = true
	})
}

// DeleteMessage removes the referenced message. No-op when absent.
func (s *Store) DeleteMessage(matchID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.find(matchID)
	if m == nil {
		return false
	}
	for i := range m.Messages {
		if m.Messages[i].ID == messageID {
			m.Messages = append(m.Messages[:i], m.Messages[i+1:]...)
			if n := len(m.Messages); n > 0 {
				last := m.Messages[n-1]
				m.LastMessage = &last
			} else {
				m.LastMessage = nil
			}
			return true
		}
	}
	return false
}

// Get returns a snapshot copy of the match, so callers can never mutate the
// store's internal slices in place.
func (s *Store) Get(matchID string) (Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.find(matchID)
	if m == nil {
		return Match{}, false
	}
	return snapshot(m), true
}

// All returns snapshot copies of every match in insertion order.
func (s *Store) All() []Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, snapshot(m))
	}
	return out
}

// MatchedUserIDs returns the canonical identities of every matched
// counterpart. Feeds the profile feed's match filter.
func (s *Store) MatchedUserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.matches))
	for _, m := range s.matches {
		if id := m.User.Canonical(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len reports the number of matches.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

// Reset drops all state. Called on logout so nothing leaks into the next
// session.
func (s *Store) Reset() {
	s.mu.Lock()
	s.matches = nil
	s.mu.Unlock()
}

// find locates a match by id. Alias identities are already collapsed to the
// canonical one by FromWire before insertion. Caller holds the lock.
func (s *Store) find(matchID string) *Match {
	for _, m := range s.matches {
		if m.ID == matchID {
			return m
		}
	}
	return nil
}

func snapshot(m *Match) Match {
	cp := *m
	cp.Messages = append([]Message(nil), m.Messages...)
	if m.LastMessage != nil {
		last := *m.LastMessage
		cp.LastMessage = &last
	}
	return cp
}
