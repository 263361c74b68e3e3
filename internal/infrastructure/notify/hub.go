// Package notify pushes session lifecycle events to connected clients over
// WebSockets, one subscription per session.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hms/hospital-auth/internal/core/domain"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type message struct {
	data []byte
	// final closes the connection once written.
	final bool
}

// Client is one subscriber for a session's events.
type Client struct {
	SessionID string
	send      chan message
}

// Hub fans session events out to the clients watching that session.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

// Register subscribes a new client to sessionID.
func (h *Hub) Register(sessionID string) *Client {
	c := &Client{SessionID: sessionID, send: make(chan message, sendBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*Client]struct{})
	}
	h.clients[sessionID][c] = struct{}{}
	return c
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.clients[c.SessionID]
	if !ok {
		return
	}
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.clients, c.SessionID)
	}
	close(c.send)
}

// Notify implements ports.SessionNotifier. It never blocks; a client whose
// buffer is full misses the event.
func (h *Hub) Notify(ev domain.SessionEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode session event")
		return
	}
	msg := message{
		data:  data,
		final: ev.Type == domain.SessionEventExpired || ev.Type == domain.SessionEventEnded,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[ev.SessionID] {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("session_id", ev.SessionID).Str("event", string(ev.Type)).Msg("session event dropped, client too slow")
		}
	}
}

// ClientCount returns the number of connected clients across all sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.clients {
		n += len(subs)
	}
	return n
}

// Serve registers conn for sessionID and pumps events to it until the
// client goes away or the session ends. It blocks.
func (h *Hub) Serve(conn *websocket.Conn, sessionID string) {
	c := h.Register(sessionID)
	done := make(chan struct{})

	go func() {
		defer close(done)
		h.readPump(conn)
	}()
	h.writePump(conn, c, done)
	h.Unregister(c)
	_ = conn.Close()
}

// readPump discards client frames; it exists to process control frames and
// notice the client disconnecting.
func (h *Hub) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *Client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				return
			}
			if msg.final {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
