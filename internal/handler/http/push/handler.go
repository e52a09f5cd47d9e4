package push

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"orgchat-backend/pkg/logger"
	"orgchat-backend/pkg/push"
	"orgchat-backend/pkg/response"
)

// Handler handles push token HTTP requests
type Handler struct {
	pushService *push.Service
}

// NewHandler creates a new push token handler
func NewHandler(pushService *push.Service) *Handler {
	return &Handler{
		pushService: pushService,
	}
}

// RegisterTokenRequest represents request to register a push token
type RegisterTokenRequest struct {
	Token    string         `json:"token" binding:"required"`
	Type     push.TokenType `json:"type" binding:"required,oneof=fcm apns web"`
	DeviceID string         `json:"device_id"`
	Platform string         `json:"platform"` // ios, android, web
}

// RegisterToken registers a device token for the authenticated user
// POST /v1/push/tokens
func (h *Handler) RegisterToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if req.Platform != "" && req.Platform != "ios" && req.Platform != "android" && req.Platform != "web" {
		response.ValidationError(c, "Invalid platform. Must be 'ios', 'android', or 'web'")
		return
	}

	now := time.Now().Unix()
	token := &push.Token{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     req.Token,
		Type:      req.Type,
		DeviceID:  req.DeviceID,
		Platform:  req.Platform,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.pushService.RegisterToken(c.Request.Context(), token); err != nil {
		logger.Error("Failed to register push token",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		response.InternalError(c, "Failed to register token")
		return
	}

	logger.Info("Push token registered",
		zap.String("user_id", userID.String()),
		zap.String("token_type", string(req.Type)),
		zap.String("platform", req.Platform))

	response.Success(c, http.StatusOK, gin.H{
		"token_id": token.ID,
	})
}

// UnregisterTokenRequest represents request to unregister a push token
type UnregisterTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// UnregisterToken removes one device token for the authenticated user
// DELETE /v1/push/tokens
func (h *Handler) UnregisterToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UnregisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.pushService.UnregisterToken(c.Request.Context(), userID, req.Token); err != nil {
		logger.Error("Failed to unregister push token",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		response.InternalError(c, "Failed to unregister token")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Token unregistered successfully",
	})
}

// UnregisterAllTokens removes every device token for the authenticated user
// DELETE /v1/push/tokens/all
func (h *Handler) UnregisterAllTokens(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.pushService.UnregisterAllTokens(c.Request.Context(), userID); err != nil {
		logger.Error("Failed to unregister all push tokens",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		response.InternalError(c, "Failed to unregister tokens")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "All tokens unregistered successfully",
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
