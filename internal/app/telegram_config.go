package app

import (
	"strings"

	"github.com/pawhaven/pawhaven/pkg/telegram"
)

// ClientSettings converts the telegram section into bot client settings.
func (c TelegramConfig) ClientSettings() telegram.Settings {
	return telegram.Settings{
		Enabled:  c.Enabled,
		BotToken: strings.TrimSpace(c.BotToken),
		APIBase:  strings.TrimSpace(c.APIBase),
		Timeout:  c.Timeout,
	}
}
