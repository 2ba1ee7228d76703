package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/models"
	"github.com/pawhaven/pawhaven/pkg/crypto"
	apperrors "github.com/pawhaven/pawhaven/pkg/errors"
	"github.com/pawhaven/pawhaven/pkg/logger"
	"github.com/pawhaven/pawhaven/pkg/telegram"
)

const telegramLinkTokenBytes = 24

// TelegramService links user accounts to Telegram chats via the bot webhook.
type TelegramService struct {
	db     *gorm.DB
	prefs  *PreferenceService
	sender telegram.Sender
	log    *zap.Logger
}

// NewTelegramService constructs a TelegramService. The sender is optional;
// without it link confirmations are simply not sent back to the chat.
func NewTelegramService(db *gorm.DB, prefs *PreferenceService, sender telegram.Sender) (*TelegramService, error) {
	if db == nil {
		return nil, errors.New("telegram service: db is required")
	}
	if prefs == nil {
		return nil, errors.New("telegram service: preference service is required")
	}
	return &TelegramService{
		db:     db,
		prefs:  prefs,
		sender: sender,
		log:    logger.WithModule("telegram"),
	}, nil
}

// BeginLink issues a fresh deep-link token for the user. Sending
// "/start <token>" to the bot completes the link.
func (s *TelegramService) BeginLink(ctx context.Context, userID string) (string, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("telegram service: user id is required")
	}

	token, err := crypto.GenerateToken(telegramLinkTokenBytes)
	if err != nil {
		return "", fmt.Errorf("telegram service: generate token: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("telegram_link_token", token)
	if result.Error != nil {
		return "", fmt.Errorf("telegram service: store token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", apperrors.ErrNotFound
	}
	return token, nil
}

// HandleUpdate processes one webhook payload. Anything that is not a valid
// "/start <token>" link message is silently ignored; the webhook endpoint
// always acknowledges.
func (s *TelegramService) HandleUpdate(ctx context.Context, update telegram.Update) error {
	ctx = ensureContext(ctx)
	if update.Message == nil {
		return nil
	}
	token := update.Message.StartToken()
	if token == "" {
		return nil
	}

	var user models.User
	if err := s.db.WithContext(ctx).
		First(&user, "telegram_link_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Debug("ignoring start message with unknown token")
			return nil
		}
		return fmt.Errorf("telegram service: find user: %w", err)
	}

	chatID := update.Message.Chat.ID
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"telegram_chat_id":    chatID,
		"telegram_link_token": "",
	}).Error; err != nil {
		return fmt.Errorf("telegram service: link chat: %w", err)
	}

	if err := s.prefs.EnableTelegram(ctx, user.ID); err != nil {
		return err
	}

	s.log.Info("telegram chat linked",
		zap.String("user_id", user.ID),
		zap.Int64("chat_id", chatID),
	)

	if s.sender != nil {
		confirmation := fmt.Sprintf("Hi %s! Your Telegram account is now linked to Pawhaven.", user.Name)
		if err := s.sender.SendMessage(ctx, chatID, confirmation); err != nil && !errors.Is(err, telegram.ErrDisabled) {
			s.log.Warn("link confirmation failed", zap.Error(err))
		}
	}
	return nil
}
