package ws

import (
	"encoding/json"

	"github.com/google/uuid"

	"nutritrack-signaling/internal/domain"
)

// Frame is the wire envelope of every inbound signaling message
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: data})
}

type registerUserRequest struct {
	UserID uuid.UUID `json:"userId"`
}

type callUserRequest struct {
	CallerID   uuid.UUID       `json:"callerId"`
	ReceiverID uuid.UUID       `json:"receiverId"`
	CallType   domain.CallType `json:"callType"`
}

type callPairRequest struct {
	CallerID   uuid.UUID `json:"callerId"`
	ReceiverID uuid.UUID `json:"receiverId"`
}

// Relay payloads are opaque: sdp and candidate are forwarded untouched.

type offerRequest struct {
	SDP  json.RawMessage `json:"sdp"`
	To   uuid.UUID       `json:"to"`
	From uuid.UUID       `json:"from,omitempty"`
}

type answerRequest struct {
	SDP json.RawMessage `json:"sdp"`
	To  uuid.UUID       `json:"to"`
}

type candidateRequest struct {
	Candidate json.RawMessage `json:"candidate"`
	To        uuid.UUID       `json:"to"`
}

type sdpRelay struct {
	SDP  json.RawMessage `json:"sdp"`
	From uuid.UUID       `json:"from"`
}

type candidateRelay struct {
	Candidate json.RawMessage `json:"candidate"`
	From      uuid.UUID       `json:"from"`
}

type registeredPayload struct {
	UserID uuid.UUID `json:"userId"`
}

type sessionReplacedPayload struct {
	Reason string `json:"reason"`
}
