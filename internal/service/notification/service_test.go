package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nutritrack-signaling/internal/domain"
	"nutritrack-signaling/internal/repository/cockroach"
	apperrors "nutritrack-signaling/pkg/errors"
	"nutritrack-signaling/pkg/push"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, n *domain.NotificationCreate) (*domain.Notification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Notification, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Notification), args.Int(1), args.Error(2)
}

func (m *MockRepository) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

func (m *MockRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) SendMissedCallNotification(ctx context.Context, data *push.MissedCallData, userID uuid.UUID) error {
	args := m.Called(ctx, data, userID)
	return args.Error(0)
}

func TestCreateMissedCall(t *testing.T) {
	repo := new(MockRepository)
	pusher := new(MockPushSender)
	svc := NewService(repo, pusher)
	ctx := context.Background()

	input := &MissedCallInput{
		CallID:     uuid.New(),
		CallerID:   uuid.New(),
		CallerName: "Nurse Lina",
		ReceiverID: uuid.New(),
		CallType:   domain.CallTypeAudio,
		At:         time.Now(),
	}

	repo.On("Create", ctx, mock.MatchedBy(func(n *domain.NotificationCreate) bool {
		return n.UserID == input.ReceiverID &&
			n.Type == domain.NotificationTypeMissedCall &&
			n.Title == "Missed call" &&
			n.Message == "Missed audio call from Nurse Lina"
	})).Return(&domain.Notification{NotificationID: uuid.New(), UserID: input.ReceiverID}, nil).Once()
	pusher.On("SendMissedCallNotification", mock.Anything, mock.MatchedBy(func(d *push.MissedCallData) bool {
		return d.CallID == input.CallID && d.CallerName == "Nurse Lina" && d.CallType == "audio"
	}), input.ReceiverID).Return(nil).Once()

	n, err := svc.CreateMissedCall(ctx, input)
	svc.Wait()

	require.NoError(t, err)
	assert.Equal(t, input.ReceiverID, n.UserID)
	repo.AssertExpectations(t)
	pusher.AssertExpectations(t)
}

func TestCreateMissedCall_PushFailureIsIgnored(t *testing.T) {
	repo := new(MockRepository)
	pusher := new(MockPushSender)
	svc := NewService(repo, pusher)
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(&domain.Notification{}, nil)
	pusher.On("SendMissedCallNotification", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("fcm unavailable"))

	_, err := svc.CreateMissedCall(ctx, &MissedCallInput{CallType: domain.CallTypeVideo, At: time.Now()})
	svc.Wait()

	assert.NoError(t, err)
}

func TestCreateMissedCall_StoreFailureSkipsPush(t *testing.T) {
	repo := new(MockRepository)
	pusher := new(MockPushSender)
	svc := NewService(repo, pusher)
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db down"))

	_, err := svc.CreateMissedCall(ctx, &MissedCallInput{CallType: domain.CallTypeVideo, At: time.Now()})
	svc.Wait()

	assert.Error(t, err)
	pusher.AssertNotCalled(t, "SendMissedCallNotification", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetNotifications(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("GetByUserID", ctx, userID, 20, 0).Return([]domain.Notification{{}, {}}, 5, nil)
	repo.On("GetUnreadCount", ctx, userID).Return(3, nil)

	resp, err := svc.GetNotifications(ctx, userID, 0, 0)

	require.NoError(t, err)
	assert.Len(t, resp.Notifications, 2)
	assert.Equal(t, 5, resp.TotalCount)
	assert.Equal(t, 3, resp.UnreadCount)
	assert.True(t, resp.HasMore)
}

func TestMarkAsRead_NotFound(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil)
	ctx := context.Background()
	id, userID := uuid.New(), uuid.New()

	repo.On("MarkAsRead", ctx, id, userID).Return(cockroach.ErrNotificationNotFound)

	err := svc.MarkAsRead(ctx, id, userID)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationNotFound))
}

func TestMarkAllAsRead(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("MarkAllAsRead", ctx, userID).Return(int64(4), nil)

	n, err := svc.MarkAllAsRead(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestMissedCallMessage(t *testing.T) {
	assert.Equal(t, "Missed video call from Dr. Okafor", MissedCallMessage("Dr. Okafor", domain.CallTypeVideo))
}
