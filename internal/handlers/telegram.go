package handlers

import (
	goerrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawhaven/pawhaven/internal/middleware"
	"github.com/pawhaven/pawhaven/internal/services"
	"github.com/pawhaven/pawhaven/pkg/errors"
	"github.com/pawhaven/pawhaven/pkg/response"
)

// TelegramHandler exposes the Telegram account-linking endpoint.
type TelegramHandler struct {
	telegram *services.TelegramService
	botName  string
}

// NewTelegramHandler constructs a TelegramHandler. botName is used to build
// the t.me deep link and may be empty.
func NewTelegramHandler(telegramService *services.TelegramService, botName string) (*TelegramHandler, error) {
	if telegramService == nil {
		return nil, goerrors.New("telegram handler: telegram service is required")
	}
	return &TelegramHandler{telegram: telegramService, botName: botName}, nil
}

// BeginLink issues a fresh link token for the caller.
func (h *TelegramHandler) BeginLink(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	token, err := h.telegram.BeginLink(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{"token": token}
	if h.botName != "" {
		payload["deep_link"] = fmt.Sprintf("https://t.me/%s?start=%s", h.botName, token)
	}
	response.Success(c, http.StatusOK, payload)
}
