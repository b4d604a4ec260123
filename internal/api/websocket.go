package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/config"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/logging"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/scan"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 64
)

// Event channels. New clients are subscribed to both.
const (
	EventSnapshot  = "snapshot"
	EventHeartbeat = "heartbeat"
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Heartbeat is the payload of a heartbeat event. It tells clients the
// stream is alive while the sequence number stands still.
type Heartbeat struct {
	Seq     uint64       `json:"seq"`
	RunMode scan.RunMode `json:"run_mode"`
	Paused  bool         `json:"paused"`
}

// SnapshotSource returns the latest published snapshot.
type SnapshotSource interface {
	Latest() *control.Snapshot
}

// Hub manages WebSocket connections and pushes snapshot events.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	src     SnapshotSource
	clock   clockwork.Clock
	clients map[*WSClient]struct{}
	mu      sync.RWMutex

	// owned by the push loop
	lastSeq  uint64
	primed   bool
	lastSent time.Time
}

// WSClient is one connected WebSocket peer.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex // guards subscriptions and closed
	subscriptions map[string]struct{}
	closed        bool
}

// Origins are enforced by the CORS middleware ahead of the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, src SnapshotSource, clock clockwork.Clock) *Hub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		src:     src,
		clock:   clock,
		clients: make(map[*WSClient]struct{}),
	}
}

func (h *Hub) pushInterval() time.Duration {
	if h.cfg.PushInterval <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(h.cfg.PushInterval) * time.Millisecond
}

func (h *Hub) heartbeatInterval() time.Duration {
	if h.cfg.HeartbeatInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(h.cfg.HeartbeatInterval) * time.Second
}

// Run pushes events until the context is cancelled, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.pushInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.Chan():
			h.Push()
		}
	}
}

// Push sends a snapshot event when the sequence number moved since the
// last push, or a heartbeat event once the heartbeat interval elapsed
// without one. It returns the event sent, or "" for none.
func (h *Hub) Push() string {
	snap := h.src.Latest()
	now := h.clock.Now()

	if snap != nil && (!h.primed || snap.Seq != h.lastSeq) {
		h.Broadcast(EventSnapshot, snap)
		h.lastSeq, h.primed, h.lastSent = snap.Seq, true, now
		return EventSnapshot
	}

	if now.Sub(h.lastSent) < h.heartbeatInterval() {
		return ""
	}
	hb := Heartbeat{}
	if snap != nil {
		hb = Heartbeat{Seq: snap.Seq, RunMode: snap.RunMode, Paused: snap.Paused}
	}
	h.Broadcast(EventHeartbeat, hb)
	h.lastSent = now
	return EventHeartbeat
}

// Register adds a client to the hub and sends it the current snapshot.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())

	if snap := h.src.Latest(); snap != nil {
		if data, err := h.encode(EventSnapshot, snap); err == nil {
			client.trySend(data)
		}
	}
}

// Unregister removes a client from the hub. Safe to call more than once.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		client.detach()
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

func (h *Hub) encode(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: h.clock.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
}

// Broadcast sends an event to all clients subscribed to the given channel.
// The hub lock is released before per-client subscription checks so the
// hub and client locks are never held together.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := h.encode(channel, payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll drops every client. Each writePump sees its send channel
// close, writes a close frame and exits.
func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.detach()
	}
}

func newWSClient(h *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{
			EventSnapshot:  {},
			EventHeartbeat: {},
		},
	}
}

// wsTimings holds the per-connection limits derived from config.
type wsTimings struct {
	readLimit int64
	ping      time.Duration
	writeWait time.Duration
}

func timingsOf(cfg config.WebSocketConfig) wsTimings {
	t := wsTimings{
		readLimit: int64(cfg.MaxMessageSize),
		ping:      time.Duration(cfg.PingInterval) * time.Second,
		writeWait: time.Duration(cfg.PongTimeout) * time.Second,
	}
	if t.readLimit <= 0 {
		t.readLimit = 8192
	}
	if t.ping <= 0 {
		t.ping = 30 * time.Second
	}
	if t.writeWait <= 0 {
		t.writeWait = 10 * time.Second
	}
	return t
}

// idle is how long a connection may stay silent before the read fails.
func (t wsTimings) idle() time.Time {
	return time.Now().Add(t.ping + t.writeWait)
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn)
	go client.writePump(s.wsCfg)
	s.hub.Register(client)
	go client.readPump(s.wsCfg)
}

// readPump dispatches client requests until the connection fails.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	t := timingsOf(cfg)
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(t.readLimit)
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(t.idle()) })

	for {
		//nolint:errcheck // a failed deadline surfaces as a read error
		c.conn.SetReadDeadline(t.idle())
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		c.handleMessage(message)
	}
}

// writePump owns all writes on the connection. It exits when the send
// channel closes or a write fails.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	t := timingsOf(cfg)
	ping := time.NewTicker(t.ping)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		var err error
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			err = write(websocket.TextMessage, message)
		case <-ping.C:
			err = write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.updateSubscriptions(msg, true)
	case WSTypeUnsubscribe:
		c.updateSubscriptions(msg, false)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// updateSubscriptions adds or removes the channels named in msg.
func (c *WSClient) updateSubscriptions(msg WSMessage, add bool) {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return
	}

	var sub WSSubscribePayload
	if err := json.Unmarshal(payloadBytes, &sub); err != nil {
		c.sendError(msg.ID, "invalid subscription payload")
		return
	}
	for _, ch := range sub.Channels {
		if ch != EventSnapshot && ch != EventHeartbeat {
			c.sendError(msg.ID, "unknown channel: "+ch)
			return
		}
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if add {
		key = "subscribed"
	}
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

// trySend queues data without blocking. Messages to a slow or detached
// client are dropped.
func (c *WSClient) trySend(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// detach closes the send channel once. trySend holds the read lock while
// sending so the close never races a send.
func (c *WSClient) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// isSubscribed reports whether the client wants events on channel.
func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// sendResponse queues a reply to a client request.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: c.hub.clock.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		c.hub.logger.Error("failed to marshal websocket reply", "error", err)
		return
	}
	c.trySend(data)
}

// sendError queues an error reply.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
