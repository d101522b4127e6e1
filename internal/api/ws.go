package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/dayreport/internal/config"
	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/phrazzld/dayreport/internal/events"
	"github.com/sourcegraph/conc"
)

// Version is reported by the get-info message.
var Version = "dev"

const (
	writeWait       = 10 * time.Second
	subscriberQueue = 64
	replyQueue      = 16
)

// Inbound message types.
const (
	msgPing             = "ping"
	msgStartTask        = "start-task"
	msgGetTask          = "get-task"
	msgOpenFileLocation = "open-file-location"
	msgGetInfo          = "get-info"
)

// Outbound message types.
const (
	msgConnected   = "connected"
	msgPong        = "pong"
	msgTaskStarted = "task-started"
	msgTask        = "task"
	msgSuccess     = "success"
	msgInfo        = "info"
	msgError       = "error"
)

// closeReasonBackedUp is sent when a client fell too far behind the bus.
const closeReasonBackedUp = "Subscriber backed up"

// Subscribable is the notification bus as seen by the transport.
type Subscribable interface {
	Subscribe(s events.Subscriber) (unsubscribe func())
}

// inboundMessage is a client request. Either Type or Action names it.
type inboundMessage struct {
	Type     string          `json:"type"`
	Action   string          `json:"action"`
	Data     json.RawMessage `json:"data"`
	TaskID   string          `json:"taskId"`
	FilePath string          `json:"filePath"`
}

func (m inboundMessage) kind() string {
	if m.Type != "" {
		return m.Type
	}
	return m.Action
}

// outboundMessage is a direct reply to one client. Bus events are sent as
// events.Event instead.
type outboundMessage struct {
	Type         string       `json:"type"`
	Message      string       `json:"message,omitempty"`
	ConnectionID string       `json:"connectionId,omitempty"`
	Port         int          `json:"port,omitempty"`
	TaskID       string       `json:"taskId,omitempty"`
	Task         *domain.Task `json:"task,omitempty"`
	Data         any          `json:"data,omitempty"`
	Timestamp    int64        `json:"timestamp,omitempty"`
}

// InfoData is the payload of the info reply.
type InfoData struct {
	Version   string `json:"version"`
	Platform  string `json:"platform"`
	Port      int    `json:"port"`
	Timestamp int64  `json:"timestamp"`
}

// WSHandler upgrades subscriber connections, forwards every bus event to
// them and answers their requests. Connections are bounded in number and
// message size, and evicted when they stop answering pings.
type WSHandler struct {
	tasks    TaskService
	reveal   Revealer
	bus      Subscribable
	cfg      config.TransportConfig
	port     int
	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time

	// subscriberBuffer is the number of bus events queued per client.
	subscriberBuffer int

	mu      sync.Mutex
	clients map[string]*wsClient
	closing bool
	wg      conc.WaitGroup
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(
	tasks TaskService,
	revealer Revealer,
	bus Subscribable,
	cfg config.TransportConfig,
	port int,
	logger *slog.Logger,
) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &WSHandler{
		tasks:   tasks,
		reveal:  revealer,
		bus:     bus,
		cfg:     cfg,
		port:    port,
		logger:  logger.With("component", "ws_handler"),
		now:     time.Now,
		clients: make(map[string]*wsClient),

		subscriberBuffer: subscriberQueue,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin admits non-browser clients, and browsers whose origin is
// allow-listed. An empty allow-list admits everyone.
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, origin)
}

// Connections returns the number of live subscriber connections.
func (h *WSHandler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP handles GET /ws.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	c := newWSClient(h, conn)
	if reason := h.register(c); reason != "" {
		code := websocket.ClosePolicyViolation
		if h.isClosing() {
			code = websocket.CloseGoingAway
		}
		h.logger.Warn("rejecting websocket connection", "reason", reason, "remote_addr", r.RemoteAddr)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

// register admits c and starts serving it, or returns why it was refused.
func (h *WSHandler) register(c *wsClient) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return "Server shutting down"
	}
	if len(h.clients) >= h.cfg.MaxConnections {
		return "Connection limit exceeded"
	}
	h.clients[c.id] = c
	h.wg.Go(c.run)

	h.logger.Info("websocket connected",
		"connection_id", c.id,
		"remote_addr", c.conn.RemoteAddr().String(),
		"connections", len(h.clients),
		"max_connections", h.cfg.MaxConnections)
	return ""
}

func (h *WSHandler) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket disconnected", "connection_id", c.id, "connections", n)
}

func (h *WSHandler) isClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

// Close refuses new connections, sends every client a going-away close frame
// and waits for them to finish or for ctx to end.
func (h *WSHandler) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown(websocket.CloseGoingAway, "Server shutting down")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, c := range clients {
			_ = c.conn.Close()
		}
		return ctx.Err()
	}
}

// wsClient is one subscriber connection. The reader goroutine handles
// requests; a single writer goroutine owns every write except control
// frames.
type wsClient struct {
	id     string
	h      *WSHandler
	conn   *websocket.Conn
	sub    *events.ChannelSubscriber
	out    chan outboundMessage
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func newWSClient(h *WSHandler, conn *websocket.Conn) *wsClient {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	return &wsClient{
		id:     id,
		h:      h,
		conn:   conn,
		sub:    events.NewChannelSubscriber(h.subscriberBuffer),
		out:    make(chan outboundMessage, replyQueue),
		ctx:    ctx,
		cancel: cancel,
		logger: h.logger.With("connection_id", id),
	}
}

func (c *wsClient) run() {
	defer c.h.unregister(c)
	defer c.conn.Close()

	unsubscribe := c.h.bus.Subscribe(c.sub)
	defer unsubscribe()
	defer c.sub.Close()

	var writer conc.WaitGroup
	writer.Go(c.writeLoop)

	c.reply(outboundMessage{
		Type:         msgConnected,
		Message:      "Connected",
		ConnectionID: c.id,
		Port:         c.h.port,
		Timestamp:    c.h.now().UnixMilli(),
	})

	c.readLoop()
	c.cancel()
	writer.Wait()
}

// pongWait is how long a client may stay silent to pings before eviction.
func (c *wsClient) pongWait() time.Duration {
	return 2 * c.h.cfg.PingInterval
}

func (c *wsClient) readLoop() {
	c.conn.SetReadLimit(c.h.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				c.logger.Warn("message size exceeds limit", "limit", c.h.cfg.MaxMessageBytes)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(c.h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.out:
			err = c.write(msg)
		case ev, ok := <-c.sub.Events():
			if !ok {
				return
			}
			err = c.write(ev)
		case <-c.sub.Overflowed():
			// Events were dropped; the client must re-sync with get-task.
			c.logger.Warn("subscriber backed up, closing connection")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, closeReasonBackedUp),
				time.Now().Add(writeWait))
			_ = c.conn.Close()
			return
		case <-ticker.C:
			err = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
		if err != nil {
			c.logger.Debug("websocket write failed", "error", err)
			// Unblocks the reader.
			_ = c.conn.Close()
			return
		}
	}
}

func (c *wsClient) write(v any) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// reply queues a direct response for the writer.
func (c *wsClient) reply(msg outboundMessage) {
	select {
	case c.out <- msg:
	case <-c.ctx.Done():
	}
}

func (c *wsClient) replyError(message string) {
	c.reply(outboundMessage{Type: msgError, Message: message, Timestamp: c.h.now().UnixMilli()})
}

// shutdown sends a close frame and gives the peer a moment to answer it.
func (c *wsClient) shutdown(code int, reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	_ = c.conn.SetReadDeadline(time.Now().Add(time.Second))
}

func (c *wsClient) handle(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.replyError("Invalid message format")
		return
	}

	ctx := c.ctx
	switch kind := msg.kind(); kind {
	case msgPing:
		c.reply(outboundMessage{Type: msgPong, Timestamp: c.h.now().UnixMilli()})

	case msgStartTask:
		var req domain.Request
		if len(msg.Data) == 0 || json.Unmarshal(msg.Data, &req) != nil {
			c.replyError("Invalid request: task data must be an object")
			return
		}
		snap, err := c.h.tasks.Submit(ctx, req)
		if err != nil {
			c.logger.Warn("start-task rejected", "error", err)
			c.replyError(GetSafeErrorMessage(err))
			return
		}
		c.reply(outboundMessage{Type: msgTaskStarted, TaskID: snap.ID, Task: &snap, Message: "Task accepted"})

	case msgGetTask:
		snap, err := c.h.tasks.Get(msg.TaskID)
		if err != nil {
			c.replyError(GetSafeErrorMessage(err))
			return
		}
		c.reply(outboundMessage{Type: msgTask, TaskID: snap.ID, Task: &snap})

	case msgOpenFileLocation:
		res, err := c.h.reveal.Reveal(ctx, msg.FilePath)
		if errors.Is(err, domain.ErrValidation) {
			c.replyError("Invalid file path")
			return
		}
		if err != nil {
			c.logger.Warn("open-file-location failed", "error", err)
			c.replyError("Failed to open file location")
			return
		}
		c.reply(outboundMessage{Type: msgSuccess, Message: "File location opened", Data: res})

	case msgGetInfo:
		now := c.h.now().UnixMilli()
		c.reply(outboundMessage{Type: msgInfo, Data: InfoData{
			Version:   Version,
			Platform:  runtime.GOOS,
			Port:      c.h.port,
			Timestamp: now,
		}})

	default:
		c.replyError("Unknown message type: " + kind)
	}
}
