// Package realtime streams activity, rating and alert events to dashboard
// clients over WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/infrastructure/metrics"
)

// normalCloseCodes are WebSocket close codes that indicate an expected disconnect.
var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

// MessageType is the "type" field of a stream message.
type MessageType string

const (
	MessageNewActivity        MessageType = "new_activity"
	MessageRatingChanged      MessageType = "rating_changed"
	MessageAchievementGranted MessageType = "achievement_granted"
	MessageAlertRaised        MessageType = "alert_raised"
)

// Message is one frame sent to clients.
type Message struct {
	Type    MessageType    `json:"type"`
	Payload map[string]any `json:"payload"`
}

// messageTypes maps bus events onto stream messages. Events not listed are
// not streamed.
var messageTypes = map[shared.EventType]MessageType{
	shared.EventActivityGenerated:  MessageNewActivity,
	shared.EventRatingChanged:      MessageRatingChanged,
	shared.EventAchievementGranted: MessageAchievementGranted,
	shared.EventAlertRaised:        MessageAlertRaised,
}

// MessageFor converts a bus event into a stream message.
func MessageFor(event shared.Event) (*Message, bool) {
	typ, ok := messageTypes[event.EventType()]
	if !ok {
		return nil, false
	}

	payload := event.Payload()
	if payload == nil {
		payload = map[string]any{}
	}
	if id := event.AggregateID(); id != "" {
		if _, set := payload["student_id"]; !set {
			payload["student_id"] = id
		}
	}
	return &Message{Type: typ, Payload: payload}, true
}

// Subscription filters what a client receives. The zero value receives
// everything.
type Subscription struct {
	Types      []MessageType `json:"types"`
	StudentIDs []string      `json:"student_ids"`
}

// Client represents a WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	sub  Subscription
}

// Options configures a Hub.
type Options struct {
	// MaxClients caps concurrent connections.
	MaxClients int

	// AllowedOrigins lists browser origins accepted besides the same host.
	// A single "*" accepts any origin.
	AllowedOrigins []string
}

// DefaultOptions returns the hub defaults.
func DefaultOptions() Options {
	return Options{MaxClients: 1000}
}

// Hub manages all WebSocket connections.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	done       chan struct{}
	maxClients int

	totalMessages atomic.Int64
	totalClients  atomic.Int64
}

// NewHub creates a new WebSocket hub.
func NewHub(opts Options, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxClients <= 0 {
		opts.MaxClients = DefaultOptions().MaxClients
	}

	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With("component", "realtime"),
		done:       make(chan struct{}),
		maxClients: opts.MaxClients,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if origin == "http://"+r.Host || origin == "https://"+r.Host {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			metrics.StreamClients.Set(0)
			h.logger.Info("realtime hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.totalClients.Add(1)
			metrics.StreamClients.Set(float64(n))
			h.logger.Debug("client connected", "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.StreamClients.Set(float64(n))
			h.logger.Debug("client disconnected", "total", n)

		case msg := <-h.broadcast:
			h.totalMessages.Add(1)
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("failed to encode stream message", "type", msg.Type, "error", err)
				continue
			}

			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				if !client.wants(msg) {
					continue
				}
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
					}
				}
				n := len(h.clients)
				h.mu.Unlock()
				metrics.StreamClients.Set(float64(n))
				h.logger.Warn("dropped slow clients", "count", len(slow))
			}
		}
	}
}

// wants checks the message against the client's subscription.
func (c *Client) wants(msg *Message) bool {
	c.mu.RLock()
	sub := c.sub
	c.mu.RUnlock()

	if len(sub.Types) > 0 && !slices.Contains(sub.Types, msg.Type) {
		return false
	}
	if len(sub.StudentIDs) > 0 {
		id, _ := msg.Payload["student_id"].(string)
		if !slices.Contains(sub.StudentIDs, id) {
			return false
		}
	}
	return true
}

// Broadcast queues a message for all matching clients. Drops it when the
// queue is full.
func (h *Hub) Broadcast(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", msg.Type)
	}
}

// Handle is an event bus handler that streams supported events.
func (h *Hub) Handle(event shared.Event) error {
	if msg, ok := MessageFor(event); ok {
		h.Broadcast(msg)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns hub statistics.
func (h *Hub) Stats() map[string]any {
	return map[string]any{
		"connected_clients": h.ClientCount(),
		"total_messages":    h.totalMessages.Load(),
		"total_clients":     h.totalClients.Load(),
	}
}

// HandleWebSocket upgrades HTTP to WebSocket.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	if h.ClientCount() >= h.maxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump reads subscription updates and keeps the read deadline fresh.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.logger.Debug("websocket read error", "error", err)
			}
			return
		}

		var sub Subscription
		if err := json.Unmarshal(message, &sub); err == nil {
			c.mu.Lock()
			c.sub = sub
			c.mu.Unlock()
		}
	}
}

// writePump writes queued messages and pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
