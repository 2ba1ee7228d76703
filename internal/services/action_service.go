package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawhaven/pawhaven/internal/models"
	apperrors "github.com/pawhaven/pawhaven/pkg/errors"
)

// ExecuteActionInput identifies a notification action invocation.
type ExecuteActionInput struct {
	NotificationID string
	ActionName     string
	ActingUserID   string
}

// ActionResult carries the refreshed UI state after an action executes.
type ActionResult struct {
	UnreadBellCount int64           `json:"unread_bell_count"`
	Notification    NotificationDTO `json:"notification"`
}

// ActionService executes admin actions embedded in notification payloads.
// Execution performs the target mutation, marks the notification read, and
// disables the descriptor so it cannot run twice.
type ActionService struct {
	db            *gorm.DB
	notifications *NotificationService
	now           func() time.Time
}

// NewActionService constructs an ActionService.
func NewActionService(db *gorm.DB, notifications *NotificationService) (*ActionService, error) {
	if db == nil {
		return nil, errors.New("action service: db is required")
	}
	if notifications == nil {
		return nil, errors.New("action service: notification service is required")
	}
	return &ActionService{db: db, notifications: notifications, now: time.Now}, nil
}

// Execute runs the named action on the notification. Only admins may execute
// actions; unauthorized callers get ErrForbidden and no state changes.
func (s *ActionService) Execute(ctx context.Context, input ExecuteActionInput) (*ActionResult, error) {
	ctx = ensureContext(ctx)

	notificationID := strings.TrimSpace(input.NotificationID)
	actionName := strings.TrimSpace(input.ActionName)
	actingUserID := strings.TrimSpace(input.ActingUserID)
	if notificationID == "" || actionName == "" || actingUserID == "" {
		return nil, apperrors.ErrBadRequest
	}

	var actor models.User
	if err := s.db.WithContext(ctx).First(&actor, "id = ?", actingUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrForbidden
		}
		return nil, fmt.Errorf("action service: load actor: %w", err)
	}
	if !actor.IsAdmin {
		return nil, apperrors.ErrForbidden
	}

	var notification models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", notificationID, actingUserID).
			First(&notification).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("action service: load notification: %w", err)
		}

		descriptor, err := notification.Action()
		if err != nil {
			if errors.Is(err, models.ErrNoAction) {
				return ErrNoExecutableAction
			}
			return fmt.Errorf("action service: decode action: %w", err)
		}
		if descriptor.Kind != actionName {
			return apperrors.NewBadRequest(fmt.Sprintf("unknown action %q", actionName))
		}
		if descriptor.Disabled {
			return ErrActionDisabled
		}

		if err := s.perform(tx, descriptor); err != nil {
			return err
		}

		descriptor.Disabled = true
		if err := notification.SetAction(descriptor); err != nil {
			return fmt.Errorf("action service: disable action: %w", err)
		}
		now := s.now().UTC()
		notification.ReadAt = &now

		if err := tx.Model(&notification).Updates(map[string]any{
			"data":    notification.Data,
			"read_at": now,
		}).Error; err != nil {
			return fmt.Errorf("action service: update notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	unread, err := s.notifications.UnreadBellCount(ctx, actingUserID)
	if err != nil {
		return nil, err
	}

	return &ActionResult{
		UnreadBellCount: unread,
		Notification:    mapNotification(notification),
	}, nil
}

func (s *ActionService) perform(tx *gorm.DB, descriptor *models.ActionDescriptor) error {
	switch descriptor.Kind {
	case models.ActionUnapproveCity:
		return unapproveCity(tx, descriptor.CityID)
	default:
		return apperrors.NewBadRequest(fmt.Sprintf("unsupported action kind %q", descriptor.Kind))
	}
}

func unapproveCity(tx *gorm.DB, cityID string) error {
	cityID = strings.TrimSpace(cityID)
	if cityID == "" {
		return apperrors.NewBadRequest("action is missing its target city")
	}

	var city models.City
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&city, "id = ?", cityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("action service: load city: %w", err)
	}

	if err := tx.Model(&city).Update("approved_at", nil).Error; err != nil {
		return fmt.Errorf("action service: unapprove city: %w", err)
	}
	return nil
}
