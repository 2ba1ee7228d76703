package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/models"
)

// PreferenceService resolves per-channel notification enablement for users.
type PreferenceService struct {
	db *gorm.DB
}

// NewPreferenceService constructs a PreferenceService.
func NewPreferenceService(db *gorm.DB) (*PreferenceService, error) {
	if db == nil {
		return nil, errors.New("preference service: db is required")
	}
	return &PreferenceService{db: db}, nil
}

// Resolve returns the channel triple for a (user, type) pair. When no explicit
// preference row exists the compiled-in defaults for the type apply.
func (s *PreferenceService) Resolve(ctx context.Context, userID string, notificationType models.NotificationType) (models.ChannelFlags, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.ChannelFlags{}, errors.New("preference service: user id is required")
	}

	var row models.NotificationPreference
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, string(notificationType)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DefaultChannelFlags(notificationType), nil
		}
		return models.ChannelFlags{}, fmt.Errorf("preference service: resolve: %w", err)
	}

	return row.Flags(), nil
}

// Set upserts an explicit preference row for a (user, type) pair.
func (s *PreferenceService) Set(ctx context.Context, userID string, notificationType models.NotificationType, flags models.ChannelFlags) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("preference service: user id is required")
	}
	if !models.KnownNotificationType(notificationType) {
		return fmt.Errorf("preference service: unknown notification type %q", notificationType)
	}

	return s.upsert(s.db.WithContext(ctx), userID, notificationType, func(row *models.NotificationPreference) {
		row.EmailEnabled = flags.EmailEnabled
		row.InAppEnabled = flags.InAppEnabled
		row.TelegramEnabled = flags.TelegramEnabled
	})
}

// EnableTelegram turns on the telegram channel for every notification type
// except email verification, leaving the other channel flags untouched.
// Types without an explicit row are materialised from their defaults first so
// resolution results do not change for the untouched channels.
func (s *PreferenceService) EnableTelegram(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("preference service: user id is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, notificationType := range models.AllNotificationTypes() {
			if notificationType == models.TypeEmailVerification {
				continue
			}
			if err := s.upsert(tx, userID, notificationType, func(row *models.NotificationPreference) {
				row.TelegramEnabled = true
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PreferenceService) upsert(tx *gorm.DB, userID string, notificationType models.NotificationType, mutate func(*models.NotificationPreference)) error {
	var row models.NotificationPreference
	err := tx.
		Where("user_id = ? AND type = ?", userID, string(notificationType)).
		First(&row).Error
	switch {
	case err == nil:
		mutate(&row)
		if saveErr := tx.Save(&row).Error; saveErr != nil {
			return fmt.Errorf("preference service: update preference: %w", saveErr)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		defaults := models.DefaultChannelFlags(notificationType)
		row = models.NotificationPreference{
			UserID:          userID,
			Type:            string(notificationType),
			EmailEnabled:    defaults.EmailEnabled,
			InAppEnabled:    defaults.InAppEnabled,
			TelegramEnabled: defaults.TelegramEnabled,
		}
		mutate(&row)
		if createErr := tx.Create(&row).Error; createErr != nil {
			return fmt.Errorf("preference service: create preference: %w", createErr)
		}
		return nil
	default:
		return fmt.Errorf("preference service: load preference: %w", err)
	}
}
