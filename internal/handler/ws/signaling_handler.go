package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nutritrack-signaling/internal/domain"
	"nutritrack-signaling/internal/presence"
	"nutritrack-signaling/internal/service/call"
	apperrors "nutritrack-signaling/pkg/errors"
	"nutritrack-signaling/pkg/logger"
)

// CallCoordinator drives the call lifecycle for call-user, accept-call,
// decline-call and end-call
type CallCoordinator interface {
	Initiate(ctx context.Context, input *call.InitiateInput) (*call.InitiateOutput, error)
	Accept(ctx context.Context, input *call.PairInput) (*call.TransitionOutput, error)
	Decline(ctx context.Context, input *call.PairInput) (*call.TransitionOutput, error)
	End(ctx context.Context, input *call.PairInput) (*call.TransitionOutput, error)
}

// SignalingHandler upgrades HTTP requests to signaling connections
type SignalingHandler struct {
	hub      *SignalingHub
	upgrader websocket.Upgrader
}

// NewSignalingHandler wires the hub to the call coordinator. An empty
// allowedOrigins list accepts any origin.
func NewSignalingHandler(hub *SignalingHub, calls CallCoordinator, allowedOrigins []string) *SignalingHandler {
	hub.dispatcher = &dispatcher{hub: hub, calls: calls}

	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &SignalingHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
	}
}

// ServeWS handles GET /v1/calls/ws/signaling
func (h *SignalingHandler) ServeWS(c *gin.Context) {
	hub := h.hub
	if !hub.acquire() {
		hub.metrics.RecordConnectionRejected()
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", hub.cfg.MaxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server at capacity, please try again later"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.release()
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	// Set by the auth middleware when authentication is enabled.
	var authUserID uuid.UUID
	if v, ok := c.Get("user_id"); ok {
		authUserID, _ = v.(uuid.UUID)
	}

	handle := presence.NewHandle(hub.nodeID, newConnID())
	ctx, cancel := context.WithCancel(context.Background())
	client := &SignalingClient{
		hub:        hub,
		conn:       conn,
		handle:     handle,
		limiter:    rate.NewLimiter(rate.Limit(hub.cfg.EventsPerSec), hub.cfg.EventBurst),
		log:        logger.With(zap.String("conn_id", string(handle))),
		authUserID: authUserID,
		ctx:        ctx,
		cancel:     cancel,
		send:       make(chan []byte, hub.cfg.SendBuffer),
	}

	hub.attach(client)
	client.log.Debug("Signaling connection opened")

	go client.writePump()
	go func() {
		defer hub.release()
		client.readPump()
	}()
}

// dispatcher routes inbound frames of one connection. It runs on that
// connection's read goroutine, so a connection's events are applied in order.
type dispatcher struct {
	hub   *SignalingHub
	calls CallCoordinator
}

func (d *dispatcher) dispatch(c *SignalingClient, message []byte) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
		d.hub.metrics.RecordWebSocketError("malformed_frame")
		c.sendError(string(apperrors.ErrCodeInvalidInput), "Frame must be {\"event\", \"data\"}")
		return
	}
	d.hub.metrics.RecordWebSocketEvent(frame.Event, "in")

	var err error
	switch frame.Event {
	case domain.EventRegisterUser:
		err = d.registerUser(c, frame.Data)
	case domain.EventCallUser:
		err = d.callUser(c, frame.Data)
	case domain.EventAcceptCall, domain.EventDeclineCall, domain.EventEndCall:
		err = d.transition(c, frame.Event, frame.Data)
	case domain.EventOffer:
		err = d.relayOffer(c, frame.Data)
	case domain.EventAnswer:
		err = d.relayAnswer(c, frame.Data)
	case domain.EventCandidate:
		err = d.relayCandidate(c, frame.Data)
	default:
		err = apperrors.UnknownEventError(frame.Event)
	}

	if err != nil {
		d.reject(c, frame.Event, err)
	}
}

// reject reports a failed event to the sender. Identity resolution failures
// leave no trace on the wire.
func (d *dispatcher) reject(c *SignalingClient, event string, err error) {
	appErr := apperrors.GetAppError(err)
	switch appErr.Code {
	case apperrors.ErrCodeUserNotFound, apperrors.ErrCodeServiceUnavail:
		c.log.Warn("Signaling event dropped", zap.String("event", event), zap.Error(err))
		return
	case apperrors.ErrCodeInternal, apperrors.ErrCodeDatabase:
		c.log.Error("Signaling event failed", zap.String("event", event), zap.Error(err))
		c.sendError(string(appErr.Code), "Internal server error")
		return
	}

	d.hub.metrics.RecordWebSocketError(string(appErr.Code))
	c.log.Debug("Signaling event rejected", zap.String("event", event), zap.Error(err))
	c.sendError(string(appErr.Code), appErr.Message)
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return apperrors.MissingFieldError("data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.InvalidInputError("Invalid event data")
	}
	return nil
}

// sender returns the registered user of c or NOT_REGISTERED
func sender(c *SignalingClient) (uuid.UUID, error) {
	userID := c.UserID()
	if userID == uuid.Nil {
		return uuid.Nil, apperrors.NotRegisteredError()
	}
	return userID, nil
}

func (d *dispatcher) registerUser(c *SignalingClient, data json.RawMessage) error {
	var req registerUserRequest
	if len(data) > 0 {
		if err := decode(data, &req); err != nil {
			return err
		}
	}

	if req.UserID == uuid.Nil {
		req.UserID = c.authUserID
	}
	if req.UserID == uuid.Nil {
		return apperrors.MissingFieldError("userId")
	}
	if c.authUserID != uuid.Nil && req.UserID != c.authUserID {
		return apperrors.ForbiddenError("Cannot register as another user")
	}

	if err := d.hub.register(c.ctx, c, req.UserID); err != nil {
		c.log.Error("Failed to register presence", zap.Error(err))
		return apperrors.ServiceUnavailableError("presence registry unavailable")
	}

	c.log.Info("User registered", zap.String("user_id", req.UserID.String()))
	c.emit(domain.EventRegistered, &registeredPayload{UserID: req.UserID})
	return nil
}

func (d *dispatcher) callUser(c *SignalingClient, data json.RawMessage) error {
	from, err := sender(c)
	if err != nil {
		return err
	}

	var req callUserRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.CallerID == uuid.Nil {
		req.CallerID = from
	}
	if req.CallerID != from {
		return apperrors.ForbiddenError("callerId must be the registered user")
	}
	if req.ReceiverID == uuid.Nil {
		return apperrors.MissingFieldError("receiverId")
	}

	_, err = d.calls.Initiate(c.ctx, &call.InitiateInput{
		CallerID:   req.CallerID,
		ReceiverID: req.ReceiverID,
		CallType:   req.CallType,
	})
	return err
}

func (d *dispatcher) transition(c *SignalingClient, event string, data json.RawMessage) error {
	from, err := sender(c)
	if err != nil {
		return err
	}

	var req callPairRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.CallerID == uuid.Nil || req.ReceiverID == uuid.Nil {
		return apperrors.ValidationError("callerId and receiverId are required")
	}
	if from != req.CallerID && from != req.ReceiverID {
		return apperrors.ForbiddenError("Not a party to this call")
	}

	input := &call.PairInput{CallerID: req.CallerID, ReceiverID: req.ReceiverID}
	switch event {
	case domain.EventAcceptCall:
		_, err = d.calls.Accept(c.ctx, input)
	case domain.EventDeclineCall:
		_, err = d.calls.Decline(c.ctx, input)
	default:
		_, err = d.calls.End(c.ctx, input)
	}
	return err
}

// Relay events are forwarded as-is and never logged.

func (d *dispatcher) relayOffer(c *SignalingClient, data json.RawMessage) error {
	from, err := sender(c)
	if err != nil {
		return err
	}
	var req offerRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.To == uuid.Nil {
		return apperrors.MissingFieldError("to")
	}
	d.hub.Send(c.ctx, req.To, domain.EventReceiveOffer, &sdpRelay{SDP: req.SDP, From: from})
	return nil
}

func (d *dispatcher) relayAnswer(c *SignalingClient, data json.RawMessage) error {
	from, err := sender(c)
	if err != nil {
		return err
	}
	var req answerRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.To == uuid.Nil {
		return apperrors.MissingFieldError("to")
	}
	d.hub.Send(c.ctx, req.To, domain.EventReceiveAnswer, &sdpRelay{SDP: req.SDP, From: from})
	return nil
}

func (d *dispatcher) relayCandidate(c *SignalingClient, data json.RawMessage) error {
	from, err := sender(c)
	if err != nil {
		return err
	}
	var req candidateRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.To == uuid.Nil {
		return apperrors.MissingFieldError("to")
	}
	d.hub.Send(c.ctx, req.To, domain.EventReceiveCandidate, &candidateRelay{Candidate: req.Candidate, From: from})
	return nil
}
