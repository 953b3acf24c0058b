package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minerdash/minerdash/server/internal/dashboard"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// DefaultComputeTimeout bounds one snapshot computation.
	DefaultComputeTimeout = 10 * time.Second
)

// Event names.
const (
	EventSnapshot = "snapshot"
	EventRefresh  = "refresh"
	EventError    = "error"
)

// Source produces the snapshot sent to clients.
type Source interface {
	Snapshot(ctx context.Context) dashboard.Snapshot
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string              `json:"event"`
	Data  *dashboard.Snapshot `json:"data,omitempty"`
	Error string              `json:"error,omitempty"`
}

// request is a client frame.
type request struct {
	Event string `json:"event"`
}

// Options configures a Hub.
type Options struct {
	// ComputeTimeout bounds each snapshot. Zero means DefaultComputeTimeout.
	ComputeTimeout time.Duration
	// AllowedOrigins restricts the Origin header of upgrade requests.
	// Empty accepts every origin.
	AllowedOrigins []string
}

// Hub manages WebSocket clients. A client receives a snapshot when it
// connects and one more each time it sends a refresh frame; the hub never
// pushes on its own.
type Hub struct {
	src      Source
	log      *slog.Logger
	timeout  time.Duration
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub reading from src. A nil logger discards output.
func New(src Source, logger *slog.Logger, opts Options) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = DefaultComputeTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		src:     src,
		log:     logger,
		timeout: opts.ComputeTimeout,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()
	h.deliver(c, h.snapshotMessage())
	h.readPump(c) // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close aborts in-flight computations and closes every connection.
func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// deliver queues data for c. A client whose buffer is full is disconnected.
func (h *Hub) deliver(c *client, data []byte) {
	if data == nil {
		return
	}
	h.mu.RLock()
	_, ok := h.clients[c]
	full := false
	if ok {
		select {
		case c.send <- data:
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	if full {
		h.log.Warn("ws: client send buffer full, disconnecting", "remote", c.conn.RemoteAddr().String())
		h.unregister(c)
	}
}

func (h *Hub) snapshotMessage() []byte {
	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()

	snap := h.src.Snapshot(ctx)
	data, err := json.Marshal(Message{Event: EventSnapshot, Data: &snap})
	if err != nil {
		h.log.Error("ws: marshal snapshot", "err", err)
		return nil
	}
	return data
}

func errorMessage(msg string) []byte {
	data, _ := json.Marshal(Message{Event: EventError, Error: msg})
	return data
}

// readPump handles client frames: a refresh recomputes the snapshot, pong
// frames extend the read deadline. Blocks until the connection closes.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var req request
		if err := json.Unmarshal(frame, &req); err != nil {
			h.deliver(c, errorMessage("malformed frame"))
			continue
		}
		switch req.Event {
		case EventRefresh:
			h.deliver(c, h.snapshotMessage())
		default:
			h.deliver(c, errorMessage("unknown event "+req.Event))
		}
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
