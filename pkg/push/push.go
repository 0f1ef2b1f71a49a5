package push

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutritrack-signaling/pkg/logger"
	"nutritrack-signaling/pkg/metrics"
)

// Provider defines interface for sending push notifications
type Provider interface {
	Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error)
}

// SendResult contains the result of a push notification send operation
type SendResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
	Errors        []error
}

// Notification represents a push notification
type Notification struct {
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	Priority    string            `json:"priority,omitempty"` // high, normal
	Sound       string            `json:"sound,omitempty"`
	Badge       *int              `json:"badge,omitempty"`
	Category    string            `json:"category,omitempty"`
	ClickAction string            `json:"click_action,omitempty"`
}

// MissedCallData contains data for a missed-call push
type MissedCallData struct {
	CallID     uuid.UUID
	CallerID   uuid.UUID
	CallerName string
	CallType   string
	Timestamp  int64
}

// TokenType represents the type of push notification token
type TokenType string

const (
	TokenTypeFCM  TokenType = "fcm"  // Firebase Cloud Messaging
	TokenTypeAPNs TokenType = "apns" // Apple Push Notification Service
	TokenTypeWeb  TokenType = "web"  // Web Push via FCM
)

// Valid reports whether t is a known token type
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeFCM, TokenTypeAPNs, TokenTypeWeb:
		return true
	}
	return false
}

// Token represents a push notification token for a user
type Token struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	Type      TokenType `json:"type"`
	DeviceID  string    `json:"device_id,omitempty"`
	Platform  string    `json:"platform,omitempty"` // ios, android, web
	Active    bool      `json:"active"`
	CreatedAt int64     `json:"created_at"`
	UpdatedAt int64     `json:"updated_at"`
}

// TokenRepository defines interface for storing and retrieving push tokens
type TokenRepository interface {
	Store(ctx context.Context, token *Token) error
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*Token, error)
	GetByToken(ctx context.Context, token string) (*Token, error)
	Update(ctx context.Context, token *Token) error
	MarkInactive(ctx context.Context, token string) error
}

// Service handles push notification operations
type Service struct {
	provider Provider
	repo     TokenRepository
	metrics  *metrics.Metrics
}

// NewService creates a new push notification service
func NewService(provider Provider, repo TokenRepository, m *metrics.Metrics) *Service {
	return &Service{
		provider: provider,
		repo:     repo,
		metrics:  m,
	}
}

// RegisterToken registers a device token for a user, reactivating it if already known
func (s *Service) RegisterToken(ctx context.Context, token *Token) error {
	existing, err := s.repo.GetByToken(ctx, token.Token)
	if err != nil {
		return fmt.Errorf("failed to look up token: %w", err)
	}
	if existing != nil {
		existing.UserID = token.UserID
		existing.Type = token.Type
		existing.Active = true
		existing.DeviceID = token.DeviceID
		existing.Platform = token.Platform
		token.ID = existing.ID
		return s.repo.Update(ctx, existing)
	}

	token.Active = true
	return s.repo.Store(ctx, token)
}

// SendMissedCallNotification pushes a missed-call alert to every active device of userID
func (s *Service) SendMissedCallNotification(ctx context.Context, data *MissedCallData, userID uuid.UUID) error {
	notification := &Notification{
		Title:    "Missed call",
		Body:     fmt.Sprintf("Missed %s call from %s", data.CallType, data.CallerName),
		Priority: "high",
		Sound:    "default",
		Category: "MISSED_CALL",
		Data: map[string]string{
			"type":        "missed_call",
			"call_id":     data.CallID.String(),
			"caller_id":   data.CallerID.String(),
			"caller_name": data.CallerName,
			"call_type":   data.CallType,
			"timestamp":   fmt.Sprintf("%d", data.Timestamp),
		},
	}

	return s.send(ctx, "missed_call", notification, userID)
}

func (s *Service) send(ctx context.Context, notifType string, notification *Notification, userID uuid.UUID) error {
	tokens, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		s.metrics.RecordPushNotificationFailure(notifType, "token_lookup")
		return fmt.Errorf("failed to get push tokens: %w", err)
	}

	var active []string
	for _, token := range tokens {
		if token.Active {
			active = append(active, token.Token)
		}
	}

	if len(active) == 0 {
		logger.Debug("No active push tokens for user",
			zap.String("user_id", userID.String()))
		return nil
	}

	result, err := s.provider.Send(ctx, notification, active)
	if err != nil {
		s.metrics.RecordPushNotificationFailure(notifType, "provider")
		return fmt.Errorf("failed to send %s notification: %w", notifType, err)
	}

	s.metrics.RecordPushNotification(notifType)
	logger.Info("Push notification sent",
		zap.String("type", notifType),
		zap.String("user_id", userID.String()),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount),
		zap.Int("invalid_tokens", len(result.InvalidTokens)))

	if len(result.InvalidTokens) > 0 {
		s.metrics.RecordPushNotificationFailure(notifType, "invalid_token")
		s.handleInvalidTokens(ctx, result.InvalidTokens)
	}

	return nil
}

// handleInvalidTokens marks invalid tokens as inactive
func (s *Service) handleInvalidTokens(ctx context.Context, invalidTokens []string) {
	for _, token := range invalidTokens {
		if err := s.repo.MarkInactive(ctx, token); err != nil {
			logger.Warn("Failed to mark token as inactive",
				zap.String("token_prefix", maskPushToken(token)),
				zap.Error(err))
		}
	}
}

// maskPushToken shows only the first and last 8 characters of a token
func maskPushToken(token string) string {
	if len(token) <= 16 {
		return "********"
	}
	return token[:8] + "..." + token[len(token)-8:]
}

// MockProvider records notifications instead of sending them
type MockProvider struct {
	mu   sync.Mutex
	Sent []*Notification
	// InvalidTokens are reported back as invalid on every send
	InvalidTokens map[string]bool
}

// Send implements Provider interface
func (m *MockProvider) Send(_ context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, notification)
	m.mu.Unlock()

	logger.Debug("MockProvider: sending notification",
		zap.String("title", notification.Title),
		zap.Int("token_count", len(tokens)))

	result := &SendResult{}
	for _, t := range tokens {
		if m.InvalidTokens[t] {
			result.FailureCount++
			result.InvalidTokens = append(result.InvalidTokens, t)
			continue
		}
		result.SuccessCount++
	}
	return result, nil
}

// SentCount returns how many notifications were sent
func (m *MockProvider) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
