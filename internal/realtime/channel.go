// internal/realtime/channel.go
// Real-time channel client: connect, dispatch, emit, reconnect

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nikkjaat/cafemeetups-client/internal/common/errs"
	"github.com/nikkjaat/cafemeetups-client/internal/telemetry"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	maxBackoff = 30 * time.Second
)

// Handler receives the raw payload of a named event.
type Handler func(data json.RawMessage)

// Channel is the client side of the real-time connection. Its lifetime is
// tied to the authenticated session: Connect on login, Disconnect on logout.
// Handlers are registered once at wiring time and survive reconnects, so a
// re-established connection never duplicates subscriptions.
type Channel struct {
	url     string
	tokenFn func() string
	dialer  *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	send     chan []byte
	closed   bool
	handlers map[string][]Handler
	room     string
	online   map[string]bool
}

func NewChannel(url string, tokenFn func() string) *Channel {
	c := &Channel{
		url:      url,
		tokenFn:  tokenFn,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		handlers: map[string][]Handler{},
		online:   map[string]bool{},
	}

	// Presence is maintained by the channel itself.
	c.On(EventUserOnline, func(data json.RawMessage) {
		var ev PresenceEvent
		if err := json.Unmarshal(data, &ev); err == nil && ev.UserID != "" {
			c.mu.Lock()
			c.online[ev.UserID] = true
			c.mu.Unlock()
		}
	})
	c.On(EventUserOffline, func(data json.RawMessage) {
		var ev PresenceEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			c.mu.Lock()
			delete(c.online, ev.UserID)
			c.mu.Unlock()
		}
	})

	return c
}

// On registers a handler for a named event.
func (c *Channel) On(event string, fn Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], fn)
	c.mu.Unlock()
}

// Connect dials the channel and starts the read/write pumps. A no-op when
// already connected.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.mu.Unlock()

	return c.dial(ctx)
}

func (c *Channel) dial(ctx context.Context) error {
	header := http.Header{}
	if token := c.tokenFn(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return errs.Network("channel connect", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	send := make(chan []byte, 256)
	c.send = send
	room := c.room
	c.mu.Unlock()

	go c.writePump(conn, send)
	go c.readPump(conn)

	// Re-join the open conversation after a reconnect.
	if room != "" {
		c.Emit(EventJoinMatch, map[string]string{"matchId": room})
	}
	return nil
}

// Disconnect tears the connection down. Called on logout; no reconnect is
// attempted afterwards.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.room = ""
	c.online = map[string]bool{}
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
}

// Emit sends a named event with the given payload.
func (c *Channel) Emit(event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Event{Name: event, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	send := c.send
	c.mu.Unlock()

	if conn == nil {
		return errs.Network("emit "+event, errors.New("channel not connected"))
	}

	select {
	case send <- frame:
		return nil
	default:
		return errs.Network("emit "+event, errors.New("send buffer full"))
	}
}

// JoinMatch scopes the channel to a conversation. The room is remembered so
// a reconnect re-joins it transparently.
func (c *Channel) JoinMatch(matchID string) error {
	c.mu.Lock()
	c.room = matchID
	c.mu.Unlock()
	return c.Emit(EventJoinMatch, map[string]string{"matchId": matchID})
}

// Leave clears the joined conversation.
func (c *Channel) Leave() {
	c.mu.Lock()
	c.room = ""
	c.mu.Unlock()
}

// Room returns the currently joined conversation, empty when none.
func (c *Channel) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// SendMessage pushes a chat message over the channel.
func (c *Channel) SendMessage(matchID, text string) error {
	return c.Emit(EventSendMessage, map[string]string{"matchId": matchID, "text": text})
}

// Typing signals that the viewer is typing in the given conversation.
func (c *Channel) Typing(matchID string) error {
	return c.Emit(EventTyping, map[string]string{"matchId": matchID})
}

// StopTyping signals the viewer stopped typing.
func (c *Channel) StopTyping(matchID string) error {
	return c.Emit(EventStopTyping, map[string]string{"matchId": matchID})
}

// DeleteMessage asks the backend to delete a message.
func (c *Channel) DeleteMessage(matchID, messageID string) error {
	return c.Emit(EventDeleteMsg, map[string]string{"matchId": matchID, "messageId": messageID})
}

// IsOnline reports whether the given user has an active presence.
func (c *Channel) IsOnline(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online[userID]
}

// OnlineUsers returns the ids of all users currently online.
func (c *Channel) OnlineUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.online))
	for id := range c.online {
		ids = append(ids, id)
	}
	return ids
}

func (c *Channel) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("channel: read error: %v", err)
			}
			break
		}
		c.dispatch(data)
	}

	c.mu.Lock()
	stale := c.conn != conn
	closed := c.closed
	if !stale {
		c.conn = nil
	}
	c.mu.Unlock()

	if !closed && !stale {
		go c.reconnect()
	}
}

func (c *Channel) writePump(conn *websocket.Conn, send chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Channel) dispatch(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("channel: malformed event: %v", err)
		return
	}

	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[ev.Name]...)
	c.mu.Unlock()

	if len(handlers) == 0 {
		log.Printf("channel: no handler for event %q", ev.Name)
		return
	}
	for _, fn := range handlers {
		fn(ev.Data)
	}
}

// reconnect re-establishes the connection with exponential backoff until it
// succeeds or the channel is disconnected.
func (c *Channel) reconnect() {
	backoff := time.Second

	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		telemetry.RecordReconnect()
		log.Printf("channel: reconnecting in %s", backoff)
		time.Sleep(backoff)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.dial(ctx)
		cancel()
		if err == nil {
			return
		}
		log.Printf("channel: reconnect failed: %v", err)

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
