package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/models"
	apperrors "github.com/pawhaven/pawhaven/pkg/errors"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        string                    `json:"id"`
	UserID    string                    `json:"user_id"`
	Type      string                    `json:"type,omitempty"`
	Message   string                    `json:"message"`
	Link      string                    `json:"link,omitempty"`
	Channel   string                    `json:"channel"`
	Data      map[string]any            `json:"data,omitempty"`
	Actions   []models.ActionDescriptor `json:"actions"`
	IsRead    bool                      `json:"is_read"`
	CreatedAt time.Time                 `json:"created_at"`
	ReadAt    *time.Time                `json:"read_at,omitempty"`
	Raw       *models.Notification      `json:"-"`
}

// BellView is the unified bell payload: unread count plus in-app rows.
type BellView struct {
	UnreadBellCount   int64             `json:"unread_bell_count"`
	BellNotifications []NotificationDTO `json:"bell_notifications"`
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID string
	Limit  int
	Offset int
}

// NotificationService manages the notification store and its read models.
type NotificationService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, now: time.Now}, nil
}

// ListForUser returns all notifications for the user ordered by recency,
// regardless of channel tag. This is the legacy unfiltered listing.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return mapNotificationRows(rows), nil
}

// UnifiedBell returns the bell read model: only rows tagged channel=in_app,
// newest first, plus the unread count over the same filter.
func (s *NotificationService) UnifiedBell(ctx context.Context, userID string) (*BellView, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	var rows []models.Notification
	if err := s.bellScope(ctx, userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list bell notifications: %w", err)
	}

	unread, err := s.UnreadBellCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &BellView{
		UnreadBellCount:   unread,
		BellNotifications: mapNotificationRows(rows),
	}, nil
}

// UnreadBellCount counts unread in-app rows for the user.
func (s *NotificationService) UnreadBellCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := s.bellScope(ensureContext(ctx), userID).
		Where("read_at IS NULL").
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// MarkRead sets the read timestamp on a single notification owned by the user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	if notification.ReadAt == nil {
		now := s.now().UTC()
		if err := s.db.WithContext(ctx).Model(&notification).
			Update("read_at", now).Error; err != nil {
			return nil, fmt.Errorf("notification service: mark read: %w", err)
		}
		notification.ReadAt = &now
	}

	dto := mapNotification(notification)
	return &dto, nil
}

// MarkAllRead marks every unread notification for the user as read, across
// all channel tags. This backs the legacy mark-as-read endpoint.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("notification service: user id is required")
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", s.now().UTC()).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}
	return nil
}

// MarkAllBellRead marks unread in-app rows as read. Email-tagged rows keep
// their read state untouched.
func (s *NotificationService) MarkAllBellRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("notification service: user id is required")
	}

	if err := s.bellScope(ctx, userID).
		Where("read_at IS NULL").
		Update("read_at", s.now().UTC()).Error; err != nil {
		return fmt.Errorf("notification service: mark bell read: %w", err)
	}
	return nil
}

func (s *NotificationService) bellScope(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Where(datatypes.JSONQuery("data").Equals(models.ChannelInApp, "channel"))
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Message:   row.Message,
		Link:      row.Link,
		Channel:   row.Channel(),
		Data:      decodeJSON(row.Data),
		Actions:   []models.ActionDescriptor{},
		IsRead:    row.IsRead(),
		CreatedAt: row.CreatedAt,
		ReadAt:    row.ReadAt,
		Raw:       &row,
	}
	if action, err := row.Action(); err == nil {
		dto.Actions = append(dto.Actions, *action)
	}
	return dto
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
