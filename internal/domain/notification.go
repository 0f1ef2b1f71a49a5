package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification types
const (
	NotificationTypeMissedCall = "missed_call"
	NotificationTypeSystem     = "system"
)

// Notification is a persistent per-user alert, mutated only by read acknowledgement
type Notification struct {
	NotificationID uuid.UUID              `json:"notification_id" db:"notification_id"`
	UserID         uuid.UUID              `json:"user_id" db:"user_id"`
	Type           string                 `json:"type" db:"type"`
	Title          string                 `json:"title" db:"title"`
	Message        string                 `json:"message" db:"message"`
	Data           map[string]interface{} `json:"data,omitempty" db:"data"`
	IsRead         bool                   `json:"is_read" db:"is_read"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
	ReadAt         *time.Time             `json:"read_at,omitempty" db:"read_at"`
}

// NotificationCreate represents data needed to create a notification
type NotificationCreate struct {
	UserID  uuid.UUID
	Type    string
	Title   string
	Message string
	Data    map[string]interface{}
}

// NotificationListResponse represents paginated notification list
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
	TotalCount    int            `json:"total_count"`
	HasMore       bool           `json:"has_more"`
}
