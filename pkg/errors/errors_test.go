package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := CallNotFoundError()
	assert.Equal(t, "CALL_NOT_FOUND: Call not found", err.Error())

	wrapped := DatabaseError(stderrors.New("connection refused"))
	assert.Contains(t, wrapped.Error(), "caused by: connection refused")
	assert.Equal(t, http.StatusInternalServerError, wrapped.StatusCode)
}

func TestGetAppError_UnwrapsChain(t *testing.T) {
	inner := UserNotFoundError()
	err := fmt.Errorf("resolve caller: %w", inner)

	assert.True(t, IsAppError(err))
	assert.Same(t, inner, GetAppError(err))
	assert.True(t, HasCode(err, ErrCodeUserNotFound))
	assert.False(t, HasCode(err, ErrCodeCallNotFound))
}

func TestGetAppError_PlainError(t *testing.T) {
	appErr := GetAppError(stderrors.New("boom"))

	assert.Equal(t, ErrCodeInternal, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	assert.EqualError(t, stderrors.Unwrap(appErr), "boom")
}

func TestWithDetails(t *testing.T) {
	err := ValidationError("bad call type").WithDetails(map[string]string{"call_type": "fax"})

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, map[string]string{"call_type": "fax"}, err.Details)
}
