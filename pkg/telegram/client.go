package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrDisabled signals that Telegram delivery is disabled via configuration.
var ErrDisabled = errors.New("telegram: delivery disabled")

const defaultAPIBase = "https://api.telegram.org"

// Settings capture the runtime configuration for the Telegram bot client.
type Settings struct {
	Enabled  bool
	BotToken string
	APIBase  string
	Timeout  time.Duration
}

// Sender delivers messages to a Telegram chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Client is a minimal Telegram Bot API client covering sendMessage.
type Client struct {
	cfg        Settings
	httpClient *http.Client
}

// NewClient validates settings and constructs a bot client.
func NewClient(cfg Settings) (*Client, error) {
	if cfg.Enabled && cfg.BotToken == "" {
		return nil, errors.New("telegram: bot token is required when enabled")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SendMessage posts a text message to the supplied chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}

	payload, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.cfg.APIBase, c.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: sendMessage returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
