package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutritrack-signaling/internal/domain"
	"nutritrack-signaling/internal/repository/cockroach"
	"nutritrack-signaling/pkg/constants"
	apperrors "nutritrack-signaling/pkg/errors"
	"nutritrack-signaling/pkg/logger"
	"nutritrack-signaling/pkg/push"
)

// Repository persists notifications
type Repository interface {
	Create(ctx context.Context, notification *domain.NotificationCreate) (*domain.Notification, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Notification, int, error)
	GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// PushSender delivers device push notifications
type PushSender interface {
	SendMissedCallNotification(ctx context.Context, data *push.MissedCallData, userID uuid.UUID) error
}

// Service handles notification business logic
type Service struct {
	repo Repository
	push PushSender

	// in-flight push deliveries
	wg sync.WaitGroup
}

// NewService creates a new notification service. pushSender may be nil.
func NewService(repo Repository, pushSender PushSender) *Service {
	return &Service{
		repo: repo,
		push: pushSender,
	}
}

// CreateNotificationInput represents input for creating a notification
type CreateNotificationInput struct {
	UserID  uuid.UUID
	Type    string
	Title   string
	Message string
	Data    map[string]interface{}
}

// MissedCallInput describes a call whose receiver was unreachable
type MissedCallInput struct {
	CallID     uuid.UUID
	CallerID   uuid.UUID
	CallerName string
	ReceiverID uuid.UUID
	CallType   domain.CallType
	At         time.Time
}

// Create creates a new notification
func (s *Service) Create(ctx context.Context, input *CreateNotificationInput) (*domain.Notification, error) {
	notification, err := s.repo.Create(ctx, &domain.NotificationCreate{
		UserID:  input.UserID,
		Type:    input.Type,
		Title:   input.Title,
		Message: input.Message,
		Data:    input.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return notification, nil
}

// CreateMissedCall stores exactly one missed-call entry for the receiver and
// then pushes it to the receiver's devices in the background.
func (s *Service) CreateMissedCall(ctx context.Context, input *MissedCallInput) (*domain.Notification, error) {
	notification, err := s.Create(ctx, &CreateNotificationInput{
		UserID:  input.ReceiverID,
		Type:    domain.NotificationTypeMissedCall,
		Title:   "Missed call",
		Message: MissedCallMessage(input.CallerName, input.CallType),
		Data: map[string]interface{}{
			"call_id":     input.CallID.String(),
			"caller_id":   input.CallerID.String(),
			"caller_name": input.CallerName,
			"call_type":   string(input.CallType),
		},
	})
	if err != nil {
		return nil, err
	}

	if s.push != nil {
		s.dispatchPush(ctx, input)
	}

	return notification, nil
}

// MissedCallMessage renders the human-readable missed-call text
func MissedCallMessage(callerName string, callType domain.CallType) string {
	return fmt.Sprintf("Missed %s call from %s", callType, callerName)
}

func (s *Service) dispatchPush(ctx context.Context, input *MissedCallInput) {
	data := &push.MissedCallData{
		CallID:     input.CallID,
		CallerID:   input.CallerID,
		CallerName: input.CallerName,
		CallType:   string(input.CallType),
		Timestamp:  input.At.Unix(),
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.PushTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		if err := s.push.SendMissedCallNotification(pushCtx, data, input.ReceiverID); err != nil {
			logger.Warn("Missed call push failed",
				zap.String("call_id", input.CallID.String()),
				zap.String("receiver_id", input.ReceiverID.String()),
				zap.Error(err))
		}
	}()
}

// Wait blocks until background push deliveries have finished
func (s *Service) Wait() {
	s.wg.Wait()
}

// GetNotifications retrieves notifications for a user
func (s *Service) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) (*domain.NotificationListResponse, error) {
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}

	notifications, totalCount, err := s.repo.GetByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}

	unreadCount, err := s.repo.GetUnreadCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread count: %w", err)
	}

	return &domain.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unreadCount,
		TotalCount:    totalCount,
		HasMore:       (offset + len(notifications)) < totalCount,
	}, nil
}

// GetUnreadCount returns how many notifications userID has not acknowledged
func (s *Service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.repo.GetUnreadCount(ctx, userID)
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	return count, nil
}

// MarkAsRead acknowledges one notification owned by userID
func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	if err := s.repo.MarkAsRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, cockroach.ErrNotificationNotFound) {
			return apperrors.NotificationNotFoundError()
		}
		return apperrors.DatabaseError(err)
	}
	return nil
}

// MarkAllAsRead acknowledges every unread notification of userID
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	return n, nil
}
