package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"nutritrack-signaling/pkg/push"
)

type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) RegisterToken(ctx context.Context, token *push.Token) error {
	return m.Called(ctx, token).Error(0)
}

func post(t *testing.T, svc *MockRegistrar, userID uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/v1/push/tokens", func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}, NewHandler(svc).RegisterToken)

	payload, err := json.Marshal(body)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/push/tokens", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterToken(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name       string
		body       map[string]string
		serviceErr error
		wantStatus int
	}{
		{
			name:       "fcm token",
			body:       map[string]string{"token": "fcm-token-1", "type": "fcm", "platform": "android"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing token",
			body:       map[string]string{"type": "fcm"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown type",
			body:       map[string]string{"token": "t", "type": "sms"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown platform",
			body:       map[string]string{"token": "t", "type": "apns", "platform": "symbian"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store failure",
			body:       map[string]string{"token": "t", "type": "web"},
			serviceErr: errors.New("redis down"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRegistrar)
			svc.On("RegisterToken", mock.Anything, mock.MatchedBy(func(tok *push.Token) bool {
				return tok.UserID == userID && tok.Active
			})).Return(tt.serviceErr).Maybe()

			w := post(t, svc, userID, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
