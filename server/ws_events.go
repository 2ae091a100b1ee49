package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"compconv/logger"
)

// LoaderEvent is one lifecycle notification from the audio loader, pushed
// to UI clients over the websocket.
type LoaderEvent struct {
	Type    string `json:"type"` // loading, loaded, error
	TrackID string `json:"trackId"`
	URL     string `json:"url,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EventHub broadcasts loader events to every connected websocket client.
type EventHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is served from a different origin in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish sends the event to every client, dropping clients whose
// connection fails.
func (h *EventHub) Publish(event LoaderEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			logger.Warn("dropping websocket client", logger.ErrorField(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// HandleWS answers GET /ws/loader.
func (h *EventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	logger.Debug("websocket client connected", logger.String("remote", conn.RemoteAddr().String()))

	// Read loop only to observe the close.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects every client.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
