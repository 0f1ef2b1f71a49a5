package call

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nutritrack-signaling/internal/domain"
	"nutritrack-signaling/internal/service/call"
	"nutritrack-signaling/pkg/pagination"
	"nutritrack-signaling/pkg/response"
)

// Service is the read side of the call coordinator
type Service interface {
	GetCall(ctx context.Context, userID, callID uuid.UUID) (*domain.Call, error)
	GetHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*call.HistoryOutput, error)
}

// Handler handles call history HTTP requests
type Handler struct {
	callService Service
}

// NewHandler creates a new call handler
func NewHandler(callService Service) *Handler {
	return &Handler{
		callService: callService,
	}
}

// GetHistory lists the calls the user placed or received
// GET /v1/calls/history
func (h *Handler) GetHistory(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return
	}

	page, err := pagination.Parse(c.Query("limit"), c.Query("offset"))
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	history, err := h.callService.GetHistory(c.Request.Context(), userID, page.Limit, page.Offset)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, history)
}

// GetCall retrieves one call record
// GET /v1/calls/:id
func (h *Handler) GetCall(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call ID")
		return
	}

	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return
	}

	record, err := h.callService.GetCall(c.Request.Context(), userID, callID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, record)
}
