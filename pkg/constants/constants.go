// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// PersistenceTimeout bounds a single call-record or notification write
	// issued while handling a signaling event
	PersistenceTimeout = 5 * time.Second

	// PushTimeout bounds a missed-call push fan-out
	PushTimeout = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// WebSocket close codes in the private 4000-4999 range
const (
	// CloseSessionReplaced tells a client its handle was superseded by a newer registration
	CloseSessionReplaced = 4001
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute

	// HealthCheckPeriod is the interval between database health checks
	HealthCheckPeriod = 1 * time.Minute
)

// Push notification constants
const (
	// PushTokenExpiry is how long an unrefreshed device token set is kept
	PushTokenExpiry = 30 * 24 * time.Hour
)

// Pagination limits
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
