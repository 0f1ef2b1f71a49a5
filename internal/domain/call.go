package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallType is the media kind requested by the caller
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// Valid reports whether t is audio or video
func (t CallType) Valid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

// CallStatus is the lifecycle state of a call record.
// Values are persisted and must stay stable.
type CallStatus string

const (
	CallStatusCalling  CallStatus = "calling"
	CallStatusAccepted CallStatus = "accepted"
	CallStatusDeclined CallStatus = "declined"
	CallStatusMissed   CallStatus = "missed"
	CallStatusEnded    CallStatus = "ended"
)

// Terminal reports whether no further transition is possible from s
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusDeclined, CallStatusMissed, CallStatusEnded:
		return true
	}
	return false
}

// Call is one append-only call attempt between two users
type Call struct {
	CallID          uuid.UUID  `json:"call_id" db:"call_id"`
	CallerID        uuid.UUID  `json:"caller_id" db:"caller_id"`
	ReceiverID      uuid.UUID  `json:"receiver_id" db:"receiver_id"`
	CallType        CallType   `json:"call_type" db:"call_type"`
	Status          CallStatus `json:"status" db:"status"`
	RoomReference   string     `json:"room_reference" db:"room_reference"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds int        `json:"duration_seconds" db:"duration_seconds"`
}

// CallUpdate describes a guarded status transition. The update applies only
// while the stored status is one of From.
type CallUpdate struct {
	From            []CallStatus
	Status          CallStatus
	EndedAt         *time.Time
	DurationSeconds *int
}

// DurationSeconds returns whole seconds between startedAt and endedAt, never negative
func DurationSeconds(startedAt, endedAt time.Time) int {
	d := endedAt.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
