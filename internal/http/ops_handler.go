package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/samuelgsrmgc/geminibot/internal/repository"
)

// Pinger verifica conectividad del almacenamiento para el healthcheck.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler mantiene dependencias para los endpoints de operación.
type OpsHandler struct {
	logger        *zap.Logger
	conversations repository.ConversationRepository
	pinger        Pinger
	pageSize      int
}

// NewOpsHandler crea una instancia de OpsHandler con dependencias
// necesarias.
func NewOpsHandler(logger *zap.Logger, conversations repository.ConversationRepository, pinger Pinger, pageSize int) *OpsHandler {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &OpsHandler{
		logger:        logger,
		conversations: conversations,
		pinger:        pinger,
		pageSize:      pageSize,
	}
}

// Health maneja GET /healthz.
func (h *OpsHandler) Health(c *gin.Context) {
	if h.pinger != nil {
		if err := h.pinger.Ping(c.Request.Context()); err != nil {
			h.logger.Error("storage ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListConversations maneja GET /ops/users/:user_id/conversations.
func (h *OpsHandler) ListConversations(c *gin.Context) {
	userID := c.Param("user_id")
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}

	items, err := h.conversations.List(c.Request.Context(), userID, page, h.pageSize)
	if err != nil {
		h.logger.Error("list conversations failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"page": page, "conversations": items})
}

// DeleteConversation maneja DELETE /ops/users/:user_id/conversations/:id.
func (h *OpsHandler) DeleteConversation(c *gin.Context) {
	userID := c.Param("user_id")
	conversationID := c.Param("id")

	err := h.conversations.Delete(c.Request.Context(), userID, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		h.logger.Error("delete conversation failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": conversationID})
}
