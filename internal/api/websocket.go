package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/config"
	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/logging"
)

// WebSocket constants.
const (
	WSTypeJoin     = "join"
	WSTypeLeave    = "leave"
	WSTypePing     = "ping"
	WSTypePong     = "pong"
	WSTypeEvent    = "event"
	WSTypeResponse = "response"
	WSTypeError    = "error"

	// TopicNotifications is the broadcast topic every authenticated
	// client may join. Execution topics are joined by execution ID and
	// require ownership of the underlying task.
	TopicNotifications = "notifications"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Topic     string `json:"topic,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSJoinPayload is the payload for join/leave messages.
type WSJoinPayload struct {
	Topics []string `json:"topics"`
}

// JoinAuthorizer decides whether a user may join a topic.
// A non-nil error refuses the join; the reason is not disclosed to the
// client, so absent and foreign topics are indistinguishable.
type JoinAuthorizer func(ctx context.Context, userID, topic string) error

// Hub manages WebSocket connections and fans events out to topic members.
//
// It implements execution.EventPublisher: the tracker publishes
// execution_update and log_update events keyed by execution ID, and the
// hub delivers them to every client that has joined that topic.
//
// Thread Safety: all methods are safe for concurrent use.
type Hub struct {
	cfg       config.WebSocketConfig
	logger    *logging.Logger
	authorize JoinAuthorizer
	clients   map[*WSClient]struct{}
	mu        sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]struct{}
	mu     sync.RWMutex
	// Identity propagated from the WebSocket ticket.
	userID   string
	username string
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, authorize JoinAuthorizer) *Hub {
	return &Hub{
		cfg:       cfg,
		logger:    logger,
		authorize: authorize,
		clients:   make(map[*WSClient]struct{}),
	}
}

// Run starts the hub's main loop. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "user_id", client.userID, "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Publish sends an event to all clients that have joined the given topic.
// Lock ordering: hub lock is acquired first, then released before
// per-client membership checks, so hub and client locks are never held
// simultaneously.
func (h *Hub) Publish(topic, event string, payload any) {
	msg := WSMessage{
		Type:      WSTypeEvent,
		Topic:     topic,
		EventType: event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal event message", "error", err)
		return
	}

	// Snapshot client list under hub lock, then release before sending
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sentCount := 0
	for _, client := range clients {
		if client.hasJoined(topic) {
			client.trySend(data)
			sentCount++
		}
	}
	if sentCount > 0 {
		h.logger.Debug("event published", "topic", topic, "event", event, "recipients", sentCount)
	}
}

// BroadcastAll sends an event to every connected client regardless of
// topic membership. Used for system-wide announcements such as engine
// availability changes.
func (h *Hub) BroadcastAll(event string, payload any) {
	msg := WSMessage{
		Type:      WSTypeEvent,
		EventType: event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
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
		client.trySend(data)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// authorizeJoin decides whether a user may join an event topic.
//
// The notifications topic is open to every authenticated client. Any
// other topic is treated as an execution ID; the join is allowed only
// when the execution's task belongs to the caller. Every failure mode
// refuses with the same error, so a foreign execution looks identical
// to one that does not exist.
func (s *Server) authorizeJoin(ctx context.Context, userID, topic string) error {
	if topic == TopicNotifications {
		return nil
	}
	if s.executions == nil {
		return errors.New("topic not available")
	}

	exec, err := s.executions.GetByID(ctx, topic)
	if err != nil {
		return errors.New("topic not available")
	}
	if _, err := s.tasks.Get(ctx, userID, exec.TaskID); err != nil {
		return errors.New("topic not available")
	}
	return nil
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
// Authentication is via ticket query parameter (obtained from POST /api/ws/ticket);
// bearer headers cannot be set on browser WebSocket connections.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeForbidden(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		topics:   make(map[string]struct{}),
		userID:   entry.userID,
		username: entry.username,
	}

	s.hub.Register(client)

	// Start read/write pumps
	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
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
	case WSTypeJoin:
		c.handleJoin(msg)
	case WSTypeLeave:
		c.handleLeave(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleJoin adds topics to the client's membership list after
// authorizing each one.
func (c *WSClient) handleJoin(msg WSMessage) {
	topics, ok := c.parseTopics(msg)
	if !ok {
		return
	}

	joined := make([]string, 0, len(topics))
	refused := make([]string, 0)
	for _, topic := range topics {
		if c.hub.authorize != nil {
			if err := c.hub.authorize(context.Background(), c.userID, topic); err != nil {
				refused = append(refused, topic)
				continue
			}
		}
		c.mu.Lock()
		c.topics[topic] = struct{}{}
		c.mu.Unlock()
		joined = append(joined, topic)
	}

	c.hub.logger.Debug("websocket join",
		"user_id", c.userID,
		"joined", joined,
		"refused", len(refused),
	)

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"joined":  joined,
		"refused": refused,
	})
}

// handleLeave removes topics from the client's membership list.
func (c *WSClient) handleLeave(msg WSMessage) {
	topics, ok := c.parseTopics(msg)
	if !ok {
		return
	}

	c.mu.Lock()
	for _, topic := range topics {
		delete(c.topics, topic)
	}
	c.mu.Unlock()

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"left": topics,
	})
}

// parseTopics extracts the topic list from a join/leave payload.
func (c *WSClient) parseTopics(msg WSMessage) ([]string, bool) {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return nil, false
	}

	var join WSJoinPayload
	if err := json.Unmarshal(payloadBytes, &join); err != nil {
		c.sendError(msg.ID, "invalid join payload")
		return nil, false
	}
	if len(join.Topics) == 0 {
		c.sendError(msg.ID, "topics list is required")
		return nil, false
	}
	return join.Topics, true
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during
// publish) and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// hasJoined checks if the client has joined a topic.
func (c *WSClient) hasJoined(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[topic]
	return ok
}

// sendResponse sends a response message to the client.
// Routes through trySend to safely handle closed channels during shutdown.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
