package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"skillswap-backend/internal/domain"
	"skillswap-backend/pkg/response"
)

// OnlineUserStore lists users flagged online in the persistence store
type OnlineUserStore interface {
	GetOnlineUsers(ctx context.Context) ([]*domain.OnlineUser, error)
}

// Handler handles user HTTP requests
type Handler struct {
	users OnlineUserStore
}

// NewHandler creates a new user handler
func NewHandler(users OnlineUserStore) *Handler {
	return &Handler{users: users}
}

// GetOnlineUsers lists users currently online
// GET /api/users/online
func (h *Handler) GetOnlineUsers(c *gin.Context) {
	users, err := h.users.GetOnlineUsers(c.Request.Context())
	if err != nil {
		response.InternalError(c, "Failed to get online users")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"users": users})
}
