package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"orgchat-backend/internal/database"
	"orgchat-backend/internal/domain"
	"orgchat-backend/pkg/constants"
	"orgchat-backend/pkg/logger"
	"orgchat-backend/pkg/metrics"
)

// PendingCallSource hands out the caller's ringing invite when its recipient
// attaches to their private channel. Consuming removes the record so a
// reconnect loop rings once.
type PendingCallSource interface {
	ConsumePendingCall(ctx context.Context, recipientID uuid.UUID) (*domain.PendingCall, error)
}

// Envelope is the wire frame delivered to channel subscribers
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Hub fans Redis Pub/Sub traffic out to WebSocket subscribers. Clients attach
// to a named channel; the hub holds one Redis subscription per channel with at
// least one local subscriber and drops it when the last one detaches.
type Hub struct {
	// Registered clients per channel name
	channels map[string]map[*Client]bool

	// Cancel functions for channel subscriptions
	subscriptionCancels map[string]context.CancelFunc

	redisClient *database.RedisClient

	authorizer *ChannelAuthorizer

	pendingCalls PendingCallSource

	metrics *metrics.Metrics

	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *channelMessage

	// Concurrency limit for WebSocket connections
	maxConnections int
	semaphore      chan struct{}
}

// Client represents one WebSocket subscriber on one channel
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	userID  uuid.UUID
	channel string
	ctx     context.Context
	cancel  context.CancelFunc
}

type channelMessage struct {
	channel string
	payload []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return false
		}
		for _, allowed := range allowedOrigins() {
			if origin == allowed {
				return true
			}
		}
		return false
	},
}

func allowedOrigins() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"http://localhost:3000"}
	}
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// NewHub creates a new realtime hub
func NewHub(redisClient *database.RedisClient, authorizer *ChannelAuthorizer, pendingCalls PendingCallSource, m *metrics.Metrics) *Hub {
	maxConns := 1000
	if val := os.Getenv("WS_MAX_CONNECTIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			maxConns = n
		}
	}

	hub := &Hub{
		channels:            make(map[string]map[*Client]bool),
		subscriptionCancels: make(map[string]context.CancelFunc),
		redisClient:         redisClient,
		authorizer:          authorizer,
		pendingCalls:        pendingCalls,
		metrics:             m,
		register:            make(chan *Client),
		unregister:          make(chan *Client),
		broadcast:           make(chan *channelMessage, 256),
		maxConnections:      maxConns,
		semaphore:           make(chan struct{}, maxConns),
	}

	go hub.run()

	return hub
}

// run handles hub operations
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.channels[client.channel] == nil {
				h.channels[client.channel] = make(map[*Client]bool)

				ctx, cancel := context.WithCancel(context.Background())
				h.subscriptionCancels[client.channel] = cancel

				go h.subscribeToChannel(ctx, client.channel)
			}
			h.channels[client.channel][client] = true
			h.mu.Unlock()

			if h.metrics != nil {
				h.metrics.IncrementWebSocketConnections()
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.channels[client.channel]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					client.cancel()

					if len(clients) == 0 {
						if cancel, ok := h.subscriptionCancels[client.channel]; ok {
							cancel()
							delete(h.subscriptionCancels, client.channel)
						}
						delete(h.channels, client.channel)
					}

					if h.metrics != nil {
						h.metrics.DecrementWebSocketConnections()
					}
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			// Write lock: slow clients are evicted from the map here
			h.mu.Lock()
			if clients, ok := h.channels[message.channel]; ok {
				for client := range clients {
					select {
					case client.send <- message.payload:
					default:
						close(client.send)
						delete(clients, client)
						client.cancel()
						if h.metrics != nil {
							h.metrics.DecrementWebSocketConnections()
						}
					}
				}
				if len(clients) == 0 {
					if cancel, ok := h.subscriptionCancels[message.channel]; ok {
						cancel()
						delete(h.subscriptionCancels, message.channel)
					}
					delete(h.channels, message.channel)
				}
			}
			h.mu.Unlock()

			if h.metrics != nil {
				h.metrics.RecordWebSocketMessage(ChannelKind(message.channel))
			}
		}
	}
}

// subscribeToChannel bridges one Redis Pub/Sub channel into the hub
func (h *Hub) subscribeToChannel(ctx context.Context, channel string) {
	pubsub := h.redisClient.SafeSubscribe(ctx, brokerTopic(channel))
	if pubsub == nil {
		logger.Error("Cannot subscribe while Redis is degraded",
			zap.String("channel", channel))
		return
	}
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		logger.Error("Failed to subscribe to Redis channel",
			zap.String("channel", channel),
			zap.Error(err))
		return
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			if msg == nil {
				continue
			}
			// Drop frames that are not a valid envelope
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Event == "" {
				logger.Warn("Discarding malformed broker message",
					zap.String("channel", channel),
					zap.Error(err))
				continue
			}

			h.broadcast <- &channelMessage{
				channel: channel,
				payload: []byte(msg.Payload),
			}
		}
	}
}

// brokerTopic maps a client-facing channel name to its Redis Pub/Sub topic
func brokerTopic(channel string) string {
	return "channel:" + channel
}

// ServeWS upgrades an authorized request to a WebSocket subscription on one
// channel, given as the channel query parameter
func (h *Hub) ServeWS(c *gin.Context) {
	// The slot is held for the connection's lifetime; readPump releases it
	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server at capacity, please try again later"})
		return
	}

	channel := c.Query("channel")
	if channel == "" {
		<-h.semaphore
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel required"})
		return
	}

	userIDVal, exists := c.Get("user_id")
	if !exists {
		<-h.semaphore
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		<-h.semaphore
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user_id"})
		return
	}

	if err := h.authorizer.Authorize(c.Request.Context(), channel, userID); err != nil {
		<-h.semaphore
		logger.Warn("Channel subscription denied",
			zap.String("channel", channel),
			zap.String("user_id", userID.String()))
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden channel"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-h.semaphore
		logger.Warn("WebSocket upgrade failed",
			zap.String("channel", channel),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		userID:  userID,
		channel: channel,
		ctx:     ctx,
		cancel:  cancel,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	// A recipient attaching to their own private channel may have missed an
	// invite while disconnected; replay it once.
	if channel == constants.UserChannelPrefix+userID.String() {
		go h.deliverPendingCall(client)
	}
}

// deliverPendingCall replays a ringing invite to a freshly attached client
func (h *Hub) deliverPendingCall(client *Client) {
	ctx, cancel := context.WithTimeout(client.ctx, 5*time.Second)
	defer cancel()

	pending, err := h.pendingCalls.ConsumePendingCall(ctx, client.userID)
	if err != nil {
		logger.Warn("Failed to read pending call on attach",
			zap.String("user_id", client.userID.String()),
			zap.Error(err))
		return
	}
	if pending == nil {
		return
	}

	data, err := json.Marshal(map[string]interface{}{
		"caller_id":       pending.CallerID,
		"caller_name":     pending.CallerName,
		"offer":           pending.Offer,
		"conversation_id": pending.ConversationID,
		"call_type":       pending.CallType,
	})
	if err != nil {
		return
	}
	payload, err := json.Marshal(&Envelope{
		Event:     constants.EventCallInvite,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}

	select {
	case client.send <- payload:
	case <-client.ctx.Done():
	}
}

// readPump drains the client connection. Subscribers do not send application
// frames; reads only service control frames and detect disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		<-c.hub.semaphore
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket connection closed",
					zap.String("channel", c.channel),
					zap.String("user_id", c.userID.String()),
					zap.Error(err))
			}
			break
		}
	}
}

// writePump writes messages to WebSocket
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
