package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsBackend is a bare websocket endpoint for channel tests: it records every
// frame a client emits and can push events back.
type wsBackend struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*websocket.Conn]bool
	received []Event
}

func newWSBackend() *wsBackend {
	return &wsBackend{conns: map[*websocket.Conn]bool{}}
}

func (b *wsBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	b.mu.Lock()
	b.conns[conn] = true
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.conns, conn)
			b.mu.Unlock()
			conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev Event
			if json.Unmarshal(data, &ev) == nil {
				b.mu.Lock()
				b.received = append(b.received, ev)
				b.mu.Unlock()
			}
		}
	}()
}

func (b *wsBackend) push(t *testing.T, event string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	frame, err := json.Marshal(Event{Name: event, Data: data})
	if err != nil {
		t.Fatal(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			t.Errorf("push: %v", err)
		}
	}
}

func (b *wsBackend) connCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *wsBackend) events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.received...)
}

// dropAll severs every connection, forcing clients into their reconnect path.
func (b *wsBackend) dropAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		conn.Close()
		delete(b.conns, conn)
	}
}
