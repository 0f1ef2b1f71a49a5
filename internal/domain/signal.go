package domain

import "github.com/google/uuid"

// Inbound signaling events
const (
	EventRegisterUser = "register-user"
	EventCallUser     = "call-user"
	EventAcceptCall   = "accept-call"
	EventDeclineCall  = "decline-call"
	EventEndCall      = "end-call"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventCandidate    = "candidate"
)

// Outbound signaling events
const (
	EventIncomingCall     = "incoming-call"
	EventCallAccepted     = "call-accepted"
	EventCallDeclined     = "call-declined"
	EventCallEnded        = "call-ended"
	EventReceiveOffer     = "receiveOffer"
	EventReceiveAnswer    = "receiveAnswer"
	EventReceiveCandidate = "receiveCandidate"
	EventSessionReplaced  = "session-replaced"
	EventRegistered       = "registered"
	EventError            = "error"
)

// IncomingCallPayload is pushed to the receiver of a new call
type IncomingCallPayload struct {
	CallerID      uuid.UUID `json:"callerId"`
	CallerName    string    `json:"callerName"`
	CallType      CallType  `json:"callType"`
	CallID        uuid.UUID `json:"callId"`
	RoomReference string    `json:"roomReference"`
}

// CallStatusPayload accompanies call-accepted, call-declined and call-ended.
// CallID is omitted when no matching record was found.
type CallStatusPayload struct {
	CallerID        uuid.UUID  `json:"callerId"`
	ReceiverID      uuid.UUID  `json:"receiverId"`
	CallID          *uuid.UUID `json:"callId,omitempty"`
	DurationSeconds *int       `json:"durationSeconds,omitempty"`
}

// ErrorPayload reports a rejected inbound frame to its sender
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
