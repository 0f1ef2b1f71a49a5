package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nutritrack-signaling/internal/domain"
	apperrors "nutritrack-signaling/pkg/errors"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) (*domain.NotificationListResponse, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationListResponse), args.Error(1)
}

func (m *MockService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockService) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

func (m *MockService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func setupRouter(svc *MockService, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	})
	r.GET("/v1/notifications", h.GetNotifications)
	r.GET("/v1/notifications/count", h.GetNotificationCount)
	r.POST("/v1/notifications/:id/read", h.MarkAsRead)
	r.POST("/v1/notifications/read-all", h.MarkAllAsRead)
	return r
}

func TestGetNotifications(t *testing.T) {
	svc := new(MockService)
	userID := uuid.New()
	list := &domain.NotificationListResponse{
		Notifications: []domain.Notification{{
			NotificationID: uuid.New(),
			UserID:         userID,
			Type:           domain.NotificationTypeMissedCall,
			Title:          "Missed call",
			Message:        "Missed video call from Ana",
		}},
		UnreadCount: 1,
		TotalCount:  1,
	}
	svc.On("GetNotifications", mock.Anything, userID, 20, 0).Return(list, nil)

	w := httptest.NewRecorder()
	setupRouter(svc, userID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/notifications", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data domain.NotificationListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Notifications, 1)
	assert.Equal(t, "Missed video call from Ana", body.Data.Notifications[0].Message)
	svc.AssertExpectations(t)
}

func TestGetNotificationCount(t *testing.T) {
	svc := new(MockService)
	userID := uuid.New()
	svc.On("GetUnreadCount", mock.Anything, userID).Return(3, nil)

	w := httptest.NewRecorder()
	setupRouter(svc, userID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/notifications/count", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unread_count":3`)
}

func TestMarkAsRead(t *testing.T) {
	userID, notificationID := uuid.New(), uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := new(MockService)
		svc.On("MarkAsRead", mock.Anything, notificationID, userID).Return(nil)

		w := httptest.NewRecorder()
		setupRouter(svc, userID).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/notifications/"+notificationID.String()+"/read", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("not owned", func(t *testing.T) {
		svc := new(MockService)
		svc.On("MarkAsRead", mock.Anything, notificationID, userID).Return(apperrors.NotificationNotFoundError())

		w := httptest.NewRecorder()
		setupRouter(svc, userID).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/notifications/"+notificationID.String()+"/read", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "NOTIFICATION_NOT_FOUND")
	})

	t.Run("invalid id", func(t *testing.T) {
		w := httptest.NewRecorder()
		setupRouter(new(MockService), userID).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/notifications/xyz/read", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMarkAllAsRead(t *testing.T) {
	svc := new(MockService)
	userID := uuid.New()
	svc.On("MarkAllAsRead", mock.Anything, userID).Return(int64(4), nil)

	w := httptest.NewRecorder()
	setupRouter(svc, userID).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/notifications/read-all", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"updated":4`)
}
