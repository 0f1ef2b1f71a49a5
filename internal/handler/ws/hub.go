package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nutritrack-signaling/internal/domain"
	"nutritrack-signaling/internal/presence"
	"nutritrack-signaling/pkg/config"
	"nutritrack-signaling/pkg/constants"
	"nutritrack-signaling/pkg/logger"
	"nutritrack-signaling/pkg/metrics"
)

// Refresher is implemented by registries whose entries expire unless the
// owning connection keeps them alive
type Refresher interface {
	Refresh(ctx context.Context, userID uuid.UUID, h presence.Handle) (bool, error)
}

// busMessage travels between gateway nodes on signaling:node:<nodeID>
type busMessage struct {
	Kind   string          `json:"kind"` // deliver, replace
	Handle presence.Handle `json:"handle"`
	Frame  json.RawMessage `json:"frame,omitempty"`
}

const (
	busKindDeliver = "deliver"
	busKindReplace = "replace"
)

func nodeChannel(nodeID string) string {
	return fmt.Sprintf("signaling:node:%s", nodeID)
}

// SignalingHub owns the live connections of this node and resolves users to
// connections through the presence registry. Connections owned by other
// nodes are reached over Redis Pub/Sub when a Redis client is configured.
type SignalingHub struct {
	registry    presence.Registry
	nodeID      string
	redisClient *redis.Client
	metrics     *metrics.Metrics
	cfg         config.WebSocketConfig

	dispatcher *dispatcher

	mu      sync.RWMutex
	clients map[presence.Handle]*SignalingClient

	// semaphore limits concurrent connections
	semaphore chan struct{}
}

// NewSignalingHub creates a new signaling hub. redisClient may be nil for a
// single-node deployment.
func NewSignalingHub(registry presence.Registry, nodeID string, redisClient *redis.Client, cfg config.WebSocketConfig, m *metrics.Metrics) *SignalingHub {
	return &SignalingHub{
		registry:    registry,
		nodeID:      nodeID,
		redisClient: redisClient,
		metrics:     m,
		cfg:         cfg,
		clients:     make(map[presence.Handle]*SignalingClient),
		semaphore:   make(chan struct{}, cfg.MaxConnections),
	}
}

// Send delivers event to the connection userID is registered under.
// It returns false if the user is unreachable; that is not an error.
func (h *SignalingHub) Send(ctx context.Context, userID uuid.UUID, event string, data interface{}) bool {
	delivered := h.send(ctx, userID, event, data)
	h.metrics.RecordDelivery(event, delivered)
	if delivered {
		h.metrics.RecordWebSocketEvent(event, "out")
	} else {
		logger.Debug("Signal not delivered: user unreachable",
			zap.String("event", event),
			zap.String("user_id", userID.String()))
	}
	return delivered
}

func (h *SignalingHub) send(ctx context.Context, userID uuid.UUID, event string, data interface{}) bool {
	handle, ok, err := h.registry.Lookup(ctx, userID)
	if err != nil {
		logger.Error("Presence lookup failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	frame, err := encodeFrame(event, data)
	if err != nil {
		logger.Error("Failed to encode frame", zap.String("event", event), zap.Error(err))
		return false
	}

	if node := handle.Node(); node != h.nodeID {
		return h.publish(ctx, node, &busMessage{Kind: busKindDeliver, Handle: handle, Frame: frame})
	}

	client := h.client(handle)
	if client == nil {
		// Registered by a connection of this node that no longer exists.
		return false
	}
	return client.enqueue(frame)
}

func (h *SignalingHub) client(handle presence.Handle) *SignalingClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[handle]
}

// attach adds a new connection; it has no user until register-user
func (h *SignalingHub) attach(c *SignalingClient) {
	h.mu.Lock()
	h.clients[c.handle] = c
	h.mu.Unlock()
	h.metrics.WebSocketConnected()
}

// detach removes a terminated connection and its presence entry. The entry
// is only removed while it still names this connection.
func (h *SignalingHub) detach(c *SignalingClient) {
	h.mu.Lock()
	_, ok := h.clients[c.handle]
	delete(h.clients, c.handle)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.metrics.WebSocketDisconnected()

	userID := c.UserID()
	if userID == uuid.Nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.PersistenceTimeout)
	defer cancel()

	removed, err := h.registry.Unregister(ctx, userID, c.handle)
	if err != nil {
		c.log.Error("Failed to unregister presence", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	if removed {
		h.metrics.RecordPresence("unregistered")
		c.log.Info("User disconnected", zap.String("user_id", userID.String()))
	} else {
		h.metrics.RecordPresence("stale")
		c.log.Debug("Stale connection closed; newer registration kept")
	}
}

// register maps userID to c. A prior different handle of the same user is
// told it was replaced and closed.
func (h *SignalingHub) register(ctx context.Context, c *SignalingClient, userID uuid.UUID) error {
	if prevUser := c.UserID(); prevUser != uuid.Nil && prevUser != userID {
		// Same connection re-registering as someone else.
		if _, err := h.registry.Unregister(ctx, prevUser, c.handle); err != nil {
			return err
		}
	}

	prev, err := h.registry.Register(ctx, userID, c.handle)
	if err != nil {
		return err
	}
	c.setUserID(userID)

	if prev == "" || prev == c.handle {
		h.metrics.RecordPresence("registered")
		return nil
	}

	h.metrics.RecordPresence("replaced")
	c.log.Info("Registration replaced an older connection",
		zap.String("user_id", userID.String()),
		zap.String("previous_handle", string(prev)))
	h.replace(ctx, prev)
	return nil
}

// replace closes an orphaned handle wherever it lives
func (h *SignalingHub) replace(ctx context.Context, handle presence.Handle) {
	if node := handle.Node(); node != h.nodeID {
		h.publish(ctx, node, &busMessage{Kind: busKindReplace, Handle: handle})
		return
	}
	if old := h.client(handle); old != nil {
		old.emit(domain.EventSessionReplaced, &sessionReplacedPayload{Reason: "registered from another connection"})
		old.close(constants.CloseSessionReplaced, "session replaced")
	}
}

// refresh keeps the presence entry of c alive for registries with a TTL
func (h *SignalingHub) refresh(c *SignalingClient) {
	r, ok := h.registry.(Refresher)
	if !ok {
		return
	}
	userID := c.UserID()
	if userID == uuid.Nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, constants.PersistenceTimeout)
	defer cancel()
	if _, err := r.Refresh(ctx, userID, c.handle); err != nil {
		c.log.Warn("Failed to refresh presence", zap.Error(err))
	}
}

func (h *SignalingHub) publish(ctx context.Context, node string, msg *busMessage) bool {
	if h.redisClient == nil || node == "" {
		return false
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to encode bus message", zap.Error(err))
		return false
	}

	receivers, err := h.redisClient.Publish(ctx, nodeChannel(node), payload).Result()
	if err != nil {
		logger.Error("Failed to publish to gateway node",
			zap.String("node_id", node),
			zap.Error(err))
		return false
	}
	return receivers > 0
}

// Run consumes messages addressed to this node until ctx is done.
// Without a Redis client it just waits for ctx.
func (h *SignalingHub) Run(ctx context.Context) error {
	if h.redisClient == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := h.redisClient.Subscribe(ctx, nodeChannel(h.nodeID))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to node channel: %w", err)
	}

	logger.Info("Gateway node subscribed", zap.String("node_id", h.nodeID))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.handleBusMessage(ctx, msg.Payload)
		}
	}
}

func (h *SignalingHub) handleBusMessage(ctx context.Context, payload string) {
	var msg busMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		logger.Warn("Invalid bus message", zap.Error(err))
		return
	}

	switch msg.Kind {
	case busKindDeliver:
		if c := h.client(msg.Handle); c != nil {
			c.enqueue(msg.Frame)
		}
	case busKindReplace:
		h.replace(ctx, msg.Handle)
	default:
		logger.Warn("Unknown bus message kind", zap.String("kind", msg.Kind))
	}
}

// ConnectionCount returns the number of live connections on this node
func (h *SignalingHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every live connection of this node
func (h *SignalingHub) Shutdown() {
	h.mu.RLock()
	clients := make([]*SignalingClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
	logger.Info("Signaling hub shut down", zap.Int("connections", len(clients)))
}

// acquire takes a connection slot without blocking
func (h *SignalingHub) acquire() bool {
	select {
	case h.semaphore <- struct{}{}:
		return true
	default:
		return false
	}
}

func (h *SignalingHub) release() {
	<-h.semaphore
}

func newConnID() string {
	return uuid.NewString()
}
