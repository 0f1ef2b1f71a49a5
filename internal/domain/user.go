package domain

import "github.com/google/uuid"

// Identity is the display information of a party that can call or be called.
// Owned by the dashboard's admin records; read-only here.
type Identity struct {
	UserID      uuid.UUID `json:"user_id" db:"id"`
	DisplayName string    `json:"display_name" db:"full_name"`
}
