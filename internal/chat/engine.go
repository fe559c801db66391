// internal/chat/engine.go
// Message merge engine: reconciles REST-loaded history with live events for
// the one open conversation.

package chat

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
	"github.com/nikkjaat/cafemeetups-client/internal/common/errs"
	"github.com/nikkjaat/cafemeetups-client/internal/match"
	"github.com/nikkjaat/cafemeetups-client/internal/realtime"
	"github.com/nikkjaat/cafemeetups-client/internal/telemetry"
)

// State is the engine's conversation lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoadingHistory
	StateLive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingHistory:
		return "loadingHistory"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// API is the slice of the REST client the engine needs.
type API interface {
	Messages(ctx context.Context, matchID string) ([]api.Message, error)
	SendMessage(ctx context.Context, matchID, text string) (*api.Message, error)
}

// Channel is the slice of the real-time client the engine needs.
type Channel interface {
	On(event string, fn realtime.Handler)
	JoinMatch(matchID string) error
	Leave()
	Typing(matchID string) error
	StopTyping(matchID string) error
	DeleteMessage(matchID, messageID string) error
}

// Engine drives one open conversation at a time: idle → loadingHistory →
// live → idle. While live, channel events mutate the open match's message
// stream through the match store; events for any other match are dropped
// (reopening a match reloads history, which makes queued state moot).
type Engine struct {
	api     API
	matches *match.Store
	channel Channel
	viewer  func() string

	typingExpiry time.Duration

	mu     sync.Mutex
	state  State
	open   string
	gen    uint64
	typing map[string]*time.Timer
}

// NewEngine wires the engine and registers its channel handlers. Handlers are
// registered exactly once; the channel keeps them across reconnects.
func NewEngine(a API, ms *match.Store, ch Channel, viewer func() string, typingExpiry time.Duration) *Engine {
	if typingExpiry <= 0 {
		typingExpiry = time.Second
	}
	e := &Engine{
		api:          a,
		matches:      ms,
		channel:      ch,
		viewer:       viewer,
		typingExpiry: typingExpiry,
		typing:       map[string]*time.Timer{},
	}

	ch.On(realtime.EventNewMessage, e.handleNewMessage)
	ch.On(realtime.EventMessageSeen, e.handleSeen)
	ch.On(realtime.EventMessageDeleted, e.handleDeleted)
	ch.On(realtime.EventUserTyping, func(data json.RawMessage) { e.handleTyping(data, true) })
	ch.On(realtime.EventUserStopTyping, func(data json.RawMessage) { e.handleTyping(data, false) })

	return e
}

// Open selects a conversation: loads its full history, hands it to the match
// store, joins the real-time room, and goes live. Opening another match while
// a load is in flight discards the stale result.
func (e *Engine) Open(ctx context.Context, matchID string) error {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.state = StateLoadingHistory
	e.open = matchID
	e.clearTypingLocked()
	e.mu.Unlock()

	wire, err := e.api.Messages(ctx, matchID)

	msgs := make([]match.Message, 0, len(wire))
	for _, w := range wire {
		msgs = append(msgs, match.MessageFromWire(w, e.viewer()))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		log.Printf("chat: discarding stale history load for match %s", matchID)
		return nil
	}
	if err != nil {
		e.state = StateIdle
		e.open = ""
		return err
	}

	// The store write and room join happen under the same generation check;
	// a newer Open cannot interleave and end up scoped to a stale room.
	e.matches.SetMessages(matchID, msgs)
	if err := e.channel.JoinMatch(matchID); err != nil {
		log.Printf("chat: join-match for %s failed: %v", matchID, err)
	}
	e.state = StateLive
	return nil
}

// Close leaves the open conversation and returns to idle. Safe to call when
// nothing is open.
func (e *Engine) Close() {
	e.mu.Lock()
	e.gen++
	e.state = StateIdle
	e.open = ""
	e.clearTypingLocked()
	e.mu.Unlock()

	e.channel.Leave()
}

// State reports the engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// OpenMatch returns the id of the open conversation, empty when idle.
func (e *Engine) OpenMatch() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// Send appends an optimistic message to the open conversation and posts it to
// the backend. On success the provisional entry is replaced by the
// server-assigned message. On failure the entry stays, flagged failed and
// retryable via Resend, and a TransientError is returned.
func (e *Engine) Send(ctx context.Context, text string) (match.Message, error) {
	e.mu.Lock()
	matchID := e.open
	live := e.state == StateLive
	e.mu.Unlock()

	if !live {
		return match.Message{}, errs.Validation("no open conversation")
	}

	provisional := match.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    match.RoleSelf,
		Timestamp: time.Now(),
		Read:      true,
		Pending:   true,
	}
	e.matches.AppendMessage(matchID, provisional)

	wire, err := e.api.SendMessage(ctx, matchID, text)
	if err != nil {
		e.matches.UpdateMessage(matchID, provisional.ID, func(m *match.Message) {
			m.Pending = false
			m.Failed = true
		})
		telemetry.RecordTransient("send-message")
		return provisional, errs.Transient("send message to "+matchID, err)
	}

	confirmed := e.confirmMessage(*wire, provisional)
	e.matches.ReplaceMessage(matchID, provisional.ID, confirmed)
	telemetry.RecordMessage("sent")
	return confirmed, nil
}

// Resend retries a previously failed send without re-navigating.
func (e *Engine) Resend(ctx context.Context, messageID string) error {
	e.mu.Lock()
	matchID := e.open
	live := e.state == StateLive
	e.mu.Unlock()

	if !live {
		return errs.Validation("no open conversation")
	}

	m, ok := e.matches.Get(matchID)
	if !ok {
		return errs.NotFound("match", matchID)
	}
	var failed *match.Message
	for i := range m.Messages {
		if m.Messages[i].ID == messageID && m.Messages[i].Failed {
			failed = &m.Messages[i]
			break
		}
	}
	if failed == nil {
		return errs.NotFound("failed message", messageID)
	}

	wire, err := e.api.SendMessage(ctx, matchID, failed.Text)
	if err != nil {
		telemetry.RecordTransient("send-message")
		return errs.Transient("resend message "+messageID, err)
	}

	confirmed := e.confirmMessage(*wire, *failed)
	e.matches.ReplaceMessage(matchID, messageID, confirmed)
	telemetry.RecordMessage("sent")
	return nil
}

// Delete removes the viewer's message locally and asks the backend to delete
// it for the counterpart.
func (e *Engine) Delete(ctx context.Context, messageID string) error {
	e.mu.Lock()
	matchID := e.open
	live := e.state == StateLive
	e.mu.Unlock()

	if !live {
		return errs.Validation("no open conversation")
	}

	e.matches.DeleteMessage(matchID, messageID)
	return e.channel.DeleteMessage(matchID, messageID)
}

// Typing emits a typing signal for the open conversation.
func (e *Engine) Typing() {
	if id := e.OpenMatch(); id != "" {
		if err := e.channel.Typing(id); err != nil {
			log.Printf("chat: typing emit failed: %v", err)
		}
	}
}

// StopTyping emits a stop-typing signal for the open conversation.
func (e *Engine) StopTyping() {
	if id := e.OpenMatch(); id != "" {
		if err := e.channel.StopTyping(id); err != nil {
			log.Printf("chat: stop-typing emit failed: %v", err)
		}
	}
}

// TypingPeers lists counterparts currently typing in the open conversation.
func (e *Engine) TypingPeers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.typing))
	for id := range e.typing {
		ids = append(ids, id)
	}
	return ids
}

// Reset closes any open conversation. Called on logout.
func (e *Engine) Reset() {
	e.Close()
}

// confirmMessage adopts the server-assigned message while preserving the
// optimistic entry's identity when the backend omits one.
func (e *Engine) confirmMessage(wire api.Message, provisional match.Message) match.Message {
	confirmed := match.MessageFromWire(wire, e.viewer())
	confirmed.Sender = match.RoleSelf
	confirmed.Read = true
	if confirmed.ID == "" {
		confirmed.ID = provisional.ID
	}
	if confirmed.Text == "" {
		confirmed.Text = provisional.Text
	}
	return confirmed
}

func (e *Engine) handleNewMessage(data json.RawMessage) {
	var ev realtime.MessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("chat: malformed new-message event: %v", err)
		return
	}

	e.mu.Lock()
	open := e.open
	live := e.state == StateLive
	e.mu.Unlock()

	if !live || ev.MatchID != open {
		log.Printf("chat: dropping new-message for closed match %s", ev.MatchID)
		return
	}

	msg := match.MessageFromWire(ev.Message, e.viewer())
	// AppendMessage deduplicates by identity, so an event echoing an
	// optimistic send the viewer already holds is a no-op.
	if e.matches.AppendMessage(ev.MatchID, msg) && msg.Sender == match.RoleOther {
		telemetry.RecordMessage("received")
	}
}

func (e *Engine) handleSeen(data json.RawMessage) {
	var ev realtime.SeenEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("chat: malformed message-seen event: %v", err)
		return
	}

	e.mu.Lock()
	open := e.open
	live := e.state == StateLive
	e.mu.Unlock()

	if !live || ev.MatchID != open {
		return
	}

	// Unknown ids are fine: the message may simply not be loaded yet.
	if !e.matches.MarkRead(ev.MatchID, ev.MessageID) {
		log.Printf("chat: message-seen for unknown message %s", ev.MessageID)
	}
}

func (e *Engine) handleDeleted(data json.RawMessage) {
	var ev realtime.DeletedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("chat: malformed message-deleted event: %v", err)
		return
	}

	e.mu.Lock()
	open := e.open
	live := e.state == StateLive
	e.mu.Unlock()

	if !live || ev.MatchID != open {
		return
	}

	if !e.matches.DeleteMessage(ev.MatchID, ev.MessageID) {
		log.Printf("chat: message-deleted for unknown message %s", ev.MessageID)
	}
}

// handleTyping maintains the ephemeral typing set. A typing signal expires on
// its own after typingExpiry as a safety net against missed stop events.
func (e *Engine) handleTyping(data json.RawMessage, active bool) {
	var ev realtime.TypingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("chat: malformed typing event: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateLive || ev.MatchID != e.open {
		return
	}

	if timer, exists := e.typing[ev.UserID]; exists {
		timer.Stop()
		delete(e.typing, ev.UserID)
	}
	if !active {
		return
	}

	userID := ev.UserID
	e.typing[userID] = time.AfterFunc(e.typingExpiry, func() {
		e.mu.Lock()
		delete(e.typing, userID)
		e.mu.Unlock()
	})
}

// clearTypingLocked stops all expiry timers. Caller holds the lock.
func (e *Engine) clearTypingLocked() {
	for id, timer := range e.typing {
		timer.Stop()
		delete(e.typing, id)
	}
}
