package cockroach

import "errors"

var (
	// ErrCallNotFound is returned when no call row matches
	ErrCallNotFound = errors.New("call not found")
	// ErrNotificationNotFound is returned when no notification row matches the owner
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrUserNotFound is returned when an identity cannot be resolved
	ErrUserNotFound = errors.New("user not found")
)
