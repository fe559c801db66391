// internal/realtime/events.go
// Event names and payloads on the real-time channel

package realtime

import (
	"encoding/json"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
)

// Events consumed from the channel.
const (
	EventNewMessage     = "new-message"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
	EventMessageSeen    = "message-seen"
	EventMessageDeleted = "message-deleted"
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
)

// Events emitted to the channel.
const (
	EventJoinMatch   = "join-match"
	EventSendMessage = "send-message"
	EventTyping      = "typing"
	EventStopTyping  = "stop-typing"
	EventDeleteMsg   = "delete-message"
)

// Event is the wire frame: a named event with a JSON payload.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// MessageEvent is the payload of new-message.
type MessageEvent struct {
	MatchID string      `json:"matchId"`
	Message api.Message `json:"message"`
}

// SeenEvent is the payload of message-seen.
type SeenEvent struct {
	MatchID   string `json:"matchId"`
	MessageID string `json:"messageId"`
}

// DeletedEvent is the payload of message-deleted.
type DeletedEvent struct {
	MatchID   string `json:"matchId"`
	MessageID string `json:"messageId"`
}

// TypingEvent is the payload of user-typing and user-stop-typing.
type TypingEvent struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
}

// PresenceEvent is the payload of user-online and user-offline.
type PresenceEvent struct {
	UserID string `json:"userId"`
}
