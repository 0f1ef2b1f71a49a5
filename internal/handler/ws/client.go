package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nutritrack-signaling/internal/domain"
	"nutritrack-signaling/internal/presence"
	apperrors "nutritrack-signaling/pkg/errors"
)

// SignalingClient is one live gateway connection
type SignalingClient struct {
	hub     *SignalingHub
	conn    *websocket.Conn
	handle  presence.Handle
	limiter *rate.Limiter
	log     *zap.Logger

	// authUserID is the token subject, uuid.Nil when authentication is disabled
	authUserID uuid.UUID

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	send      chan []byte
	closed    bool
	closeCode int
	closeText string
	userID    uuid.UUID
}

// UserID returns the user this connection is registered under, or uuid.Nil
func (c *SignalingClient) UserID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *SignalingClient) setUserID(userID uuid.UUID) (prev uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, c.userID = c.userID, userID
	return prev
}

// enqueue queues frame for the write pump without blocking. It returns false
// if the connection is closing or its buffer is full.
func (c *SignalingClient) enqueue(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.log.Warn("Send buffer full, dropping connection")
		c.hub.metrics.RecordWebSocketError("slow_consumer")
		go c.close(websocket.ClosePolicyViolation, "send buffer full")
		return false
	}
}

// close stops the write pump, which sends a close frame with code and text.
// Only the first call has an effect.
func (c *SignalingClient) close(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.closeText = text
	close(c.send)
}

// readPump processes inbound frames one at a time, in arrival order
func (c *SignalingClient) readPump() {
	defer func() {
		c.close(websocket.CloseNormalClosure, "")
		c.hub.detach(c)
		c.cancel()
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	pongWait := cfg.PingInterval * 10 / 9

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.refresh(c)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("WebSocket connection closed unexpectedly", zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.hub.metrics.RecordWebSocketError("rate_limited")
			c.sendError(string(apperrors.ErrCodeRateLimitExceeded), "Too many signaling events")
			continue
		}

		c.hub.dispatcher.dispatch(c, message)
	}
}

// writePump is the only writer of the connection
func (c *SignalingClient) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	writeWait := c.hub.cfg.WriteTimeout
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.mu.RLock()
				code, text := c.closeCode, c.closeText
				c.mu.RUnlock()
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// emit sends an event to this connection only
func (c *SignalingClient) emit(event string, data interface{}) bool {
	frame, err := encodeFrame(event, data)
	if err != nil {
		c.log.Error("Failed to encode frame", zap.String("event", event), zap.Error(err))
		return false
	}
	ok := c.enqueue(frame)
	if ok {
		c.hub.metrics.RecordWebSocketEvent(event, "out")
	}
	return ok
}

func (c *SignalingClient) sendError(code, message string) {
	c.emit(domain.EventError, &domain.ErrorPayload{Code: code, Message: message})
}
