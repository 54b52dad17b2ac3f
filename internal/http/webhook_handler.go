package http

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/samuelgsrmgc/geminibot/internal/domain"
)

// ActionHandler es el contrato del controlador visto desde el
// transporte: una acción entrante por usuario, un payload de respuesta.
type ActionHandler interface {
	Handle(ctx context.Context, userID string, action domain.Action) (domain.Reply, error)
}

// WebhookHandler mantiene dependencias para el endpoint de updates de
// la plataforma de mensajería.
type WebhookHandler struct {
	logger     *zap.Logger
	controller ActionHandler
}

// NewWebhookHandler crea una instancia de WebhookHandler con
// dependencias necesarias.
func NewWebhookHandler(logger *zap.Logger, controller ActionHandler) *WebhookHandler {
	return &WebhookHandler{logger: logger, controller: controller}
}

type webhookRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Command  string `json:"command"`
	Button   string `json:"button"`
	Text     string `json:"text"`
	PhotoB64 string `json:"photo_b64"`
}

// HandleUpdate maneja POST /webhook: traduce el update entrante a una
// acción del controlador y devuelve su payload de respuesta.
func (h *WebhookHandler) HandleUpdate(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid webhook request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	action, ok := req.toAction()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of command, button, text or photo_b64 is required"})
		return
	}

	reply, err := h.controller.Handle(c.Request.Context(), req.UserID, action)
	if err != nil {
		h.logger.Error("handle action failed",
			zap.String("user_id", req.UserID),
			zap.String("kind", string(action.Kind)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not handle update"})
		return
	}

	c.JSON(http.StatusOK, reply)
}

func (r webhookRequest) toAction() (domain.Action, bool) {
	command := strings.TrimSpace(r.Command)
	button := strings.TrimSpace(r.Button)
	text := strings.TrimSpace(r.Text)
	photo := strings.TrimSpace(r.PhotoB64)

	set := 0
	for _, v := range []string{command, button, text, photo} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return domain.Action{}, false
	}

	switch {
	case command != "":
		return domain.CommandAction(strings.TrimPrefix(command, "/")), true
	case button != "":
		return domain.ButtonAction(button), true
	case text != "":
		return domain.TextAction(r.Text), true
	default:
		blob, err := base64.StdEncoding.DecodeString(photo)
		if err != nil || len(blob) == 0 {
			return domain.Action{}, false
		}
		return domain.PhotoAction(blob), true
	}
}
