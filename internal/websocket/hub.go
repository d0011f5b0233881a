package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/rmib"
)

// Client is one connected page. Writes are serialized because a
// gorilla connection supports a single concurrent writer.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Send writes v to the client.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return WriteTyped(c.conn, v)
}

// Hub fans session output out to every connected page. It implements
// rmib.Presenter.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

// Register adds a connection and returns its client handle.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := &Client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Debug().Int("clients", n).Msg("Client registered")
	return c
}

// Unregister removes a client. The caller closes the connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Render broadcasts the view.
func (h *Hub) Render(v rmib.View) {
	h.Broadcast(ViewResponse{Event: EventView, View: v})
}

// Notify broadcasts a notice.
func (h *Hub) Notify(n rmib.Notice) {
	h.Broadcast(NoticeResponse{Event: EventNotice, Notice: n})
}

// Broadcast sends v to every client. Clients that fail are dropped.
func (h *Hub) Broadcast(v interface{}) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.Send(v); err != nil {
			h.log.Warn().Err(err).Msg("Broadcast failed, dropping client")
			h.Unregister(c)
			c.conn.Close()
		}
	}
}
