package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	chatService "skillswap-backend/internal/service/chat"
	"skillswap-backend/pkg/response"
)

// Handler handles chat HTTP requests
type Handler struct {
	relay *chatService.Relay
}

// NewHandler creates a new chat handler
func NewHandler(relay *chatService.Relay) *Handler {
	return &Handler{relay: relay}
}

// GetMessages returns a room's persisted history. The caller must be a
// party to the request and not blocked either way, the same checks the
// realtime relay applies on send.
// GET /api/requests/:id/messages
func (h *Handler) GetMessages(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid request ID")
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

	messages, err := h.relay.History(c.Request.Context(), userID, requestID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"messages": messages})
}
