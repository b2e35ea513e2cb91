package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

// writeTimeout bounds a single event push so one stuck client can't
// stall the broadcast loop.
const writeTimeout = 2 * time.Second

// SettingsEvent notifies connected extension contexts that a section
// changed, so an open options page or chatbot can refresh.
type SettingsEvent struct {
	Type    string `json:"type"`
	Section string `json:"section"`
}

// EventHub fans settings-change events out to WebSocket subscribers.
type EventHub struct {
	mu   sync.Mutex
	subs map[*websocket.Conn]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[*websocket.Conn]struct{})}
}

// HandleWS upgrades the request and keeps the connection subscribed
// until the client goes away. Clients only listen; incoming frames are
// drained and discarded.
func (h *EventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Extension pages connect from extension-scheme origins.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Debug().Err(err).Msg("websocket accept failed")
		return
	}

	h.add(conn)
	defer h.remove(conn)

	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// Broadcast pushes a settings_changed event for section to every
// subscriber. Connections that fail to accept the write are dropped.
func (h *EventHub) Broadcast(section string) {
	data, err := json.Marshal(SettingsEvent{Type: "settings_changed", Section: section})
	if err != nil {
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.subs))
	for c := range h.subs {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			log.Debug().Err(err).Msg("dropping websocket subscriber")
			h.remove(c)
			_ = c.Close(websocket.StatusGoingAway, "write failed")
		}
	}
}

// Subscribers reports the current subscriber count.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *EventHub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[c] = struct{}{}
}

func (h *EventHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, c)
}
