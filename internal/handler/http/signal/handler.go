package signal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"orgchat-backend/internal/domain"
	signalsvc "orgchat-backend/internal/service/signal"
	"orgchat-backend/pkg/logger"
	"orgchat-backend/pkg/metrics"
	"orgchat-backend/pkg/response"
)

// Handler handles call signaling HTTP requests. The /v1/calls/signal wire
// format, including its error strings, is a compatibility contract with
// deployed clients and must not change shape.
type Handler struct {
	signalService *signalsvc.Service
	store         signalsvc.CallStore
	metrics       *metrics.Metrics
}

// NewHandler creates a new signal handler
func NewHandler(signalService *signalsvc.Service, store signalsvc.CallStore, m *metrics.Metrics) *Handler {
	return &Handler{
		signalService: signalService,
		store:         store,
		metrics:       m,
	}
}

// Signal relays one call signaling event
// POST /v1/calls/signal
func (h *Handler) Signal(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non authentifié"})
		return
	}
	senderID, ok := userIDVal.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non authentifié"})
		return
	}

	var req domain.SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrMissingFields.Error()})
		return
	}

	event, err := domain.ParseSignal(&req)
	if err != nil {
		var unknown *domain.UnknownEventError
		switch {
		case errors.As(err, &unknown), errors.Is(err, domain.ErrMissingFields):
			if h.metrics != nil {
				h.metrics.RecordSignalFailure(req.Event, "validation")
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrMissingFields.Error()})
		}
		return
	}

	if err := h.signalService.Dispatch(c.Request.Context(), senderID, event); err != nil {
		logger.Error("Signal dispatch failed",
			zap.String("event", event.Kind()),
			zap.String("sender_id", senderID.String()),
			zap.Error(err))
		if h.metrics != nil {
			h.metrics.RecordSignalFailure(event.Kind(), "store")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur de signalisation"})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSignalEvent(event.Kind())
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PendingCall returns and consumes the caller's ringing invite, if any
// GET /v1/calls/pending
func (h *Handler) PendingCall(c *gin.Context) {
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

	pending, err := h.store.GetPendingCall(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "Failed to read pending call")
		return
	}
	if pending == nil {
		response.Success(c, http.StatusOK, gin.H{"pending": nil})
		return
	}

	// Consumed on read so a polling client rings once
	if err := h.store.DeletePendingCall(c.Request.Context(), userID); err != nil {
		logger.Warn("Failed to consume pending call",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}

	response.Success(c, http.StatusOK, gin.H{
		"pending": gin.H{
			"caller_id":       pending.CallerID,
			"caller_name":     pending.CallerName,
			"offer":           pending.Offer,
			"conversation_id": pending.ConversationID,
			"call_type":       pending.CallType,
		},
	})
}

// CallState reports whether the caller is currently in a call, and with whom
// GET /v1/calls/state
func (h *Handler) CallState(c *gin.Context) {
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

	state, err := h.store.GetCallState(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "Failed to read call state")
		return
	}
	if state == nil {
		response.Success(c, http.StatusOK, gin.H{"in_call": false})
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"in_call":         true,
		"conversation_id": state.ConversationID,
		"peer_id":         state.PeerID,
	})
}
