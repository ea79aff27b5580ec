package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/metage/metage/pkg/metabolic"
	"github.com/metage/metage/pkg/types"
	"github.com/metage/metage/server/internal/estimator"
	"github.com/metage/metage/server/internal/metrics"
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
)

const (
	EventResult = "result"
	EventError  = "error"

	// MalformedMessage is the error text for frames that are not an estimate request.
	MalformedMessage = "malformed message"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origins are not checked here; restrict them at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients in reply to every frame.
type Message struct {
	Event string                  `json:"event"`
	Data  *types.EstimateResponse `json:"data,omitempty"`
	Error string                  `json:"error,omitempty"`
}

// Hub manages live estimate sessions. Every text frame a client sends is
// treated as a form submit and answered with a result or error event.
type Hub struct {
	svc       estimator.Estimator
	readLimit int64
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that answers estimate frames using svc. readLimit caps
// the size of a single inbound frame. m and logger may be nil.
func New(svc estimator.Estimator, readLimit int64, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		svc:       svc,
		readLimit: readLimit,
		metrics:   m,
		logger:    logger,
		clients:   make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client
// until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	h.logger.Debug("ws: client connected", "session", c.id, "remote", r.RemoteAddr)
	go c.writePump()
	h.readPump(r.Context(), c) // blocks until connection closes
	h.logger.Debug("ws: client disconnected", "session", c.id)
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.metrics.SetWSClients(len(h.clients))
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.metrics.SetWSClients(len(h.clients))
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.metrics.SetWSClients(0)
	h.mu.Unlock()
}

// reply queues msg for c. A client whose outgoing buffer is full is
// disconnected.
func (h *Hub) reply(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("ws: encode reply", "session", c.id, "err", err)
		return
	}

	h.mu.RLock()
	_, live := h.clients[c]
	full := false
	if live {
		select {
		case c.send <- data:
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	if full {
		h.logger.Warn("ws: send buffer full, dropping client", "session", c.id)
		h.unregister(c)
	}
}

// handle answers one inbound frame.
func (h *Hub) handle(ctx context.Context, c *client, frame []byte) {
	var req types.EstimateRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		h.logger.Info("ws: malformed message", "session", c.id, "err", err)
		h.reply(c, Message{Event: EventError, Error: MalformedMessage})
		return
	}

	res, err := h.svc.Estimate(ctx, estimator.TransportWS, req.Form().Input())
	switch {
	case errors.Is(err, metabolic.ErrInvalidInput):
		h.reply(c, Message{Event: EventError, Error: metabolic.InvalidInputMessage})
	case err != nil:
		h.logger.Error("ws: estimate failed", "session", c.id, "err", err)
		h.reply(c, Message{Event: EventError, Error: "internal error"})
	default:
		resp := types.NewEstimateResponse(res)
		h.reply(c, Message{Event: EventResult, Data: &resp})
	}
}

// readPump reads frames from the connection, answering text frames and
// processing control messages (pong, close). Blocks until the connection
// closes.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(h.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("ws: read error", "session", c.id, "err", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.handle(ctx, c, frame)
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
				// Hub is shutting down or dropped the client.
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
