package handlers

import (
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pawhaven/pawhaven/internal/services"
	"github.com/pawhaven/pawhaven/pkg/logger"
	"github.com/pawhaven/pawhaven/pkg/telegram"
)

// WebhookHandler receives inbound bot callbacks.
type WebhookHandler struct {
	telegram *services.TelegramService
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(telegramService *services.TelegramService) (*WebhookHandler, error) {
	if telegramService == nil {
		return nil, goerrors.New("webhook handler: telegram service is required")
	}
	return &WebhookHandler{telegram: telegramService}, nil
}

// Telegram handles Bot API webhook posts. The endpoint always acknowledges
// with {"ok": true}: Telegram retries non-2xx responses indefinitely, and a
// malformed or unknown update is not worth a retry storm.
func (h *WebhookHandler) Telegram(c *gin.Context) {
	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		logger.WithModule("webhooks").Debug("ignoring malformed telegram update", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if err := h.telegram.HandleUpdate(requestContext(c), update); err != nil {
		logger.WithModule("webhooks").Warn("telegram update failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
