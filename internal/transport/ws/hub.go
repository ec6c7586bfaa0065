// internal/transport/ws/hub.go
package ws

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"

	"astrolive/internal/events"
	"astrolive/internal/metrics"
)

var (
	ErrUnknownAddress = errors.New("no connection for address")
	ErrSendBufferFull = errors.New("connection send buffer full")
)

// Message is the frame exchanged in both directions.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub owns the live connections, keyed by their transport address.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

var _ events.Sender = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.With("component", "websocket-hub"),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.address] = c
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	h.logger.Info("websocket client connected", "address", c.address, "account_id", c.accountID, "total_clients", total)
}

// unregister removes c and closes its send channel. It reports whether c was still registered.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	if _, ok := h.clients[c.address]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, c.address)
	close(c.send)
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Dec()
	h.logger.Info("websocket client disconnected", "address", c.address, "account_id", c.accountID, "total_clients", total)
	return true
}

// Send queues one event for the connection at address. It never blocks: a
// client that cannot keep up loses the event.
func (h *Hub) Send(address, event string, payload any) error {
	frame, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[address]
	if !ok {
		return ErrUnknownAddress
	}
	select {
	case c.send <- frame:
		return nil
	default:
		h.logger.Warn("send buffer full, dropping event", "address", address, "event", event)
		return ErrSendBufferFull
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client. Frames already queued are flushed
// before each connection is closed.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	count := len(h.clients)
	for address, c := range h.clients {
		delete(h.clients, address)
		close(c.send)
		metrics.WSConnections.Dec()
	}
	h.mu.Unlock()

	h.logger.Info("closed all websocket clients", "count", count)
}
