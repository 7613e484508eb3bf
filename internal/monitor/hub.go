package monitor

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans payloads out to every connected websocket client.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{}), log: log}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and keeps the client registered until it disconnects.
// initial, when non-nil, is sent right after the upgrade.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial []byte) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	if initial != nil {
		if err := write(conn, initial); err != nil {
			h.dropLocked(conn)
			h.mu.Unlock()
			return nil
		}
	}
	h.mu.Unlock()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("stream client connected")

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				h.dropLocked(conn)
				h.mu.Unlock()
				return
			}
		}
	}()
	return nil
}

// Broadcast writes msg to every client, dropping the ones that fail.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := write(conn, msg); err != nil {
			h.log.Debug().Err(err).Msg("drop stream client")
			h.dropLocked(conn)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		h.dropLocked(conn)
	}
}

func (h *Hub) dropLocked(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	_ = conn.Close()
}

func write(conn *websocket.Conn, msg []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}
