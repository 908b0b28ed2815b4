package simulator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vigil/internal/presence/models"
)

// writeTimeout bounds a single websocket write. A client that cannot
// drain within it is dropped rather than allowed to stall the hub.
const writeTimeout = 5 * time.Second

// Client is one registered websocket consumer. Writes are serialized by
// a per-client mutex because broadcasts and request replies race.
type Client struct {
	conn       *websocket.Conn
	adminID    string
	remoteAddr string

	writeMu sync.Mutex

	filterMu sync.Mutex
	filter   models.Filter
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, adminID string) *Client {
	return &Client{
		conn:       conn,
		adminID:    adminID,
		remoteAddr: conn.RemoteAddr().String(),
	}
}

// AdminID returns the authenticated admin behind this client.
func (c *Client) AdminID() string { return c.adminID }

// SetFilter records the client's active user-list filter. Subsequent
// users_update fan-outs are rendered through it.
func (c *Client) SetFilter(f models.Filter) {
	c.filterMu.Lock()
	c.filter = f
	c.filterMu.Unlock()
}

// Filter returns the client's active user-list filter.
func (c *Client) Filter() models.Filter {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()
	return c.filter
}

// Send writes one raw frame with the write deadline applied.
func (c *Client) Send(raw []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// SendEnvelope encodes a payload into the wire envelope and sends it.
func (c *Client) SendEnvelope(msgType string, payload any) error {
	raw, err := models.EncodeEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return c.Send(raw)
}

// Close tears down the underlying connection. Safe to call more than once.
func (c *Client) Close() {
	c.conn.Close()
}

// Hub tracks the registered websocket clients and fans presence events
// out to them. It is local to one process; the simulator runs as a
// single instance so no cross-instance relay is needed.
type Hub struct {
	log     *slog.Logger
	metrics *Metrics

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		log:     log,
		metrics: metrics,
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a client to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetConnectedClients(count)
	}
	h.log.Debug("client registered", "admin_id", c.adminID, "clients", count)
}

// Unregister removes a client. Unknown clients are a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if h.metrics != nil {
		h.metrics.SetConnectedClients(count)
	}
	h.log.Debug("client unregistered", "admin_id", c.adminID, "clients", count)
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes the payload once and sends it to every client.
// Clients whose write fails are dropped after the send loop so the
// registry lock is never held across an unregister.
func (h *Hub) Broadcast(msgType string, payload any) {
	raw, err := models.EncodeEnvelope(msgType, payload)
	if err != nil {
		h.log.Error("failed to encode broadcast", "type", msgType, "error", err)
		return
	}

	var failed []*Client
	h.mu.RLock()
	for c := range h.clients {
		if err := c.Send(raw); err != nil {
			h.log.Warn("broadcast write failed", "type", msgType, "admin_id", c.adminID, "error", err)
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	h.drop(failed)
	if h.metrics != nil {
		h.metrics.IncEventsBroadcast(msgType)
	}
}

// FanOut sends a per-client payload built from each client's filter.
// Used for users_update, where every client sees its own filtered view.
func (h *Hub) FanOut(msgType string, build func(models.Filter) (any, error)) {
	var failed []*Client
	h.mu.RLock()
	for c := range h.clients {
		payload, err := build(c.Filter())
		if err != nil {
			h.log.Error("failed to build fan-out payload", "type", msgType, "error", err)
			continue
		}
		if err := c.SendEnvelope(msgType, payload); err != nil {
			h.log.Warn("fan-out write failed", "type", msgType, "admin_id", c.adminID, "error", err)
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	h.drop(failed)
	if h.metrics != nil {
		h.metrics.IncEventsBroadcast(msgType)
	}
}

// CloseAll severs every registered connection. Clients observe an abnormal
// close, exactly as if the process had been killed.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	if h.metrics != nil {
		h.metrics.SetConnectedClients(0)
	}
	if len(clients) > 0 {
		h.log.Info("closed all clients", "count", len(clients))
	}
}

func (h *Hub) drop(failed []*Client) {
	for _, c := range failed {
		h.Unregister(c)
		c.Close()
	}
}
