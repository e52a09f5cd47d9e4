package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orgchat-backend/pkg/response"
)

// AuthHandler exposes channel authorization as an HTTP endpoint for clients
// that negotiate their broker subscription before opening the socket
type AuthHandler struct {
	authorizer *ChannelAuthorizer
}

// NewAuthHandler creates a new channel auth handler
func NewAuthHandler(authorizer *ChannelAuthorizer) *AuthHandler {
	return &AuthHandler{authorizer: authorizer}
}

type channelAuthRequest struct {
	Channel string `json:"channel" binding:"required"`
}

// Authorize handles POST /v1/realtime/auth
func (h *AuthHandler) Authorize(c *gin.Context) {
	var req channelAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "channel is required")
		return
	}

	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "authentication required")
		return
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "invalid user context")
		return
	}

	if err := h.authorizer.Authorize(c.Request.Context(), req.Channel, userID); err != nil {
		response.Forbidden(c, "channel access denied")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"channel": req.Channel,
		"user_id": userID,
	})
}
