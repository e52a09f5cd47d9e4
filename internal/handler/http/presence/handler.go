package presence

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	presencesvc "orgchat-backend/internal/service/presence"
	"orgchat-backend/pkg/response"
)

// Handler handles presence HTTP requests
type Handler struct {
	presenceService *presencesvc.Service
}

// NewHandler creates a new presence handler
func NewHandler(presenceService *presencesvc.Service) *Handler {
	return &Handler{
		presenceService: presenceService,
	}
}

// Heartbeat refreshes the caller's online window
// POST /v1/presence/heartbeat
func (h *Handler) Heartbeat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.presenceService.Heartbeat(c.Request.Context(), userID); err != nil {
		response.InternalError(c, "Failed to record heartbeat")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"online": true})
}

// Offline marks the caller offline immediately
// POST /v1/presence/offline
func (h *Handler) Offline(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.presenceService.SetOffline(c.Request.Context(), userID); err != nil {
		response.InternalError(c, "Failed to set offline")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"online": false})
}

// GetStatus reports another user's presence
// GET /v1/presence/:user_id
func (h *Handler) GetStatus(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	status, err := h.presenceService.GetStatus(c.Request.Context(), targetID)
	if err != nil {
		response.InternalError(c, "Failed to check presence")
		return
	}

	response.Success(c, http.StatusOK, status)
}

// GetOnline lists currently online users
// GET /v1/presence/online
func (h *Handler) GetOnline(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	users, err := h.presenceService.GetOnlineUsers(c.Request.Context())
	if err != nil {
		response.InternalError(c, "Failed to list online users")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return uuid.Nil, false
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return uuid.Nil, false
	}
	return userID, true
}
