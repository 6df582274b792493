package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
)

// envelope is the wire format of one broadcast frame.
type envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

// Hub broadcasts lifecycle events to connected dashboard sockets. Delivery
// is at-most-once: a client that cannot keep up is dropped, never buffered,
// and the session core is never blocked on a slow dashboard.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Publish fans an event out to every connected client. Write failures evict
// the client on the spot.
func (h *Hub) Publish(event string, payload interface{}) {
	frame, err := json.Marshal(envelope{Event: event, Payload: payload, SentAt: time.Now()})
	if err != nil {
		log.Print(nil).WithError(err).Warn("Failed to encode realtime frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			_ = conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Serve owns one dashboard socket for its lifetime. The read loop exists
// only to detect disconnects; inbound frames are discarded.
func (h *Hub) Serve(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	count := len(h.conns)
	h.mu.Unlock()
	log.Print(nil).WithField("clients", count).Info("Dashboard client connected")

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount reports the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
