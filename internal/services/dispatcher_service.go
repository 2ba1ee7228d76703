package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/models"
	apperrors "github.com/pawhaven/pawhaven/pkg/errors"
	"github.com/pawhaven/pawhaven/pkg/logger"
	"github.com/pawhaven/pawhaven/pkg/mail"
	"github.com/pawhaven/pawhaven/pkg/metrics"
	"github.com/pawhaven/pawhaven/pkg/telegram"
)

const defaultDedupWindow = 24 * time.Hour

// DispatchInput describes one logical notification event for a single user.
type DispatchInput struct {
	UserID  string
	Type    models.NotificationType
	Message string
	Link    string

	// Data is merged into the notification payload alongside the channel tag.
	Data map[string]any

	// Action embeds an executable descriptor into the in-app payload.
	Action *models.ActionDescriptor

	// EmailSubject and EmailBody override the defaults derived from Message.
	EmailSubject string
	EmailBody    string

	// DedupKey scopes the idempotency window. Empty means unguarded. Each
	// channel claims its own derived key so channels dedup independently.
	DedupKey    string
	DedupWindow time.Duration
}

// DispatchResult reports what a dispatch call actually produced.
type DispatchResult struct {
	// NotificationID is the created in-app row when one exists, otherwise the
	// email bookkeeping row.
	NotificationID string
	EmailLogID     string

	// Channels lists the channels that produced a row or a transport send.
	Channels []string

	// Suppressed lists channels vetoed by the dedup guard.
	Suppressed []string
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMailer wires the email transport.
func WithMailer(mailer mail.Mailer) DispatcherOption {
	return func(d *Dispatcher) { d.mailer = mailer }
}

// WithTelegramSender wires the Telegram transport.
func WithTelegramSender(sender telegram.Sender) DispatcherOption {
	return func(d *Dispatcher) { d.telegram = sender }
}

// WithDispatchClock injects a custom time source.
func WithDispatchClock(clock func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if clock != nil {
			d.now = clock
		}
	}
}

// Dispatcher fans a notification event out to the channels enabled for the
// recipient: an in-app store row, an email send with its audit log row, and a
// Telegram message. Each channel is guarded independently, so a duplicate
// event inside the window is a silent no-op per channel.
//
// Bookkeeping rows are written synchronously; transport failures are logged
// and never fail the triggering operation. Persistence failures propagate.
type Dispatcher struct {
	db       *gorm.DB
	prefs    *PreferenceService
	guard    *WindowGuard
	mailer   mail.Mailer
	telegram telegram.Sender
	now      func() time.Time
	log      *zap.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(db *gorm.DB, prefs *PreferenceService, guard *WindowGuard, opts ...DispatcherOption) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("dispatcher: db is required")
	}
	if prefs == nil {
		return nil, errors.New("dispatcher: preference service is required")
	}
	if guard == nil {
		return nil, errors.New("dispatcher: window guard is required")
	}

	dispatcher := &Dispatcher{
		db:    db,
		prefs: prefs,
		guard: guard,
		now:   time.Now,
		log:   logger.WithModule("dispatcher"),
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	return dispatcher, nil
}

// Dispatch delivers the event using the dispatcher's own DB handle.
func (d *Dispatcher) Dispatch(ctx context.Context, input DispatchInput) (*DispatchResult, error) {
	return d.dispatch(ensureContext(ctx), d.db, input)
}

// DispatchTx delivers the event writing all bookkeeping rows through the
// supplied transaction, so a caller can commit them atomically with its own
// state changes (e.g. a reminder marker).
func (d *Dispatcher) DispatchTx(ctx context.Context, tx *gorm.DB, input DispatchInput) (*DispatchResult, error) {
	if tx == nil {
		return nil, errors.New("dispatcher: tx is required")
	}
	return d.dispatch(ensureContext(ctx), tx, input)
}

func (d *Dispatcher) dispatch(ctx context.Context, tx *gorm.DB, input DispatchInput) (*DispatchResult, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("dispatcher: user id is required")
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, errors.New("dispatcher: message is required")
	}

	var user models.User
	if err := tx.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("dispatcher: load user: %w", err)
	}

	notificationType := input.Type
	if notificationType != "" && !models.KnownNotificationType(notificationType) {
		// Events without a mapped type degrade to an untyped in-app message.
		d.log.Debug("unmapped notification type, falling back to untyped",
			zap.String("type", string(notificationType)),
			zap.String("user_id", userID),
		)
		notificationType = ""
	}

	var flags models.ChannelFlags
	if notificationType == "" {
		flags = models.DefaultChannelFlags("")
	} else {
		resolved, err := d.prefs.Resolve(ctx, userID, notificationType)
		if err != nil {
			return nil, err
		}
		flags = resolved
	}

	window := input.DedupWindow
	if window <= 0 {
		window = defaultDedupWindow
	}

	result := &DispatchResult{}
	typeLabel := defaultIfEmpty(string(notificationType), "untyped")

	if flags.InAppEnabled {
		if d.allow(ctx, input.DedupKey, models.ChannelInApp, window) {
			row, err := d.createRow(ctx, tx, &user, notificationType, message, input, models.ChannelInApp, true)
			if err != nil {
				return nil, err
			}
			result.NotificationID = row.ID
			result.Channels = append(result.Channels, models.ChannelInApp)
			metrics.NotificationsDispatched.WithLabelValues(typeLabel, models.ChannelInApp).Inc()
		} else {
			result.Suppressed = append(result.Suppressed, models.ChannelInApp)
			recordDedupRejection(typeLabel)
		}
	}

	if flags.EmailEnabled {
		switch {
		case strings.TrimSpace(user.Email) == "":
			d.log.Debug("skipping email channel, user has no address",
				zap.String("user_id", userID),
				zap.String("type", typeLabel),
			)
		case d.allow(ctx, input.DedupKey, models.ChannelEmail, window):
			row, err := d.createRow(ctx, tx, &user, notificationType, message, input, models.ChannelEmail, false)
			if err != nil {
				return nil, err
			}

			subject := defaultIfEmpty(input.EmailSubject, emailSubject(notificationType, message))
			emailLog := models.EmailLog{
				UserID:         user.ID,
				NotificationID: row.ID,
				Recipient:      user.Email,
				Subject:        subject,
			}
			if err := tx.WithContext(ctx).Create(&emailLog).Error; err != nil {
				return nil, fmt.Errorf("dispatcher: create email log: %w", err)
			}
			result.EmailLogID = emailLog.ID
			if result.NotificationID == "" {
				result.NotificationID = row.ID
			}
			result.Channels = append(result.Channels, models.ChannelEmail)
			metrics.NotificationsDispatched.WithLabelValues(typeLabel, models.ChannelEmail).Inc()

			d.sendEmail(ctx, &user, subject, defaultIfEmpty(input.EmailBody, emailBody(message, input.Link)))
		default:
			result.Suppressed = append(result.Suppressed, models.ChannelEmail)
			recordDedupRejection(typeLabel)
		}
	}

	if flags.TelegramEnabled {
		switch {
		case !user.TelegramLinked():
			d.log.Debug("skipping telegram channel, user has no linked chat",
				zap.String("user_id", userID),
				zap.String("type", typeLabel),
			)
		case d.allow(ctx, input.DedupKey, models.ChannelTelegram, window):
			if d.sendTelegram(ctx, &user, message, input.Link) {
				result.Channels = append(result.Channels, models.ChannelTelegram)
				metrics.NotificationsDispatched.WithLabelValues(typeLabel, models.ChannelTelegram).Inc()
			}
		default:
			result.Suppressed = append(result.Suppressed, models.ChannelTelegram)
			recordDedupRejection(typeLabel)
		}
	}

	return result, nil
}

// allow consults the guard with a channel-scoped key. An empty dedup key
// means the event is unguarded.
func (d *Dispatcher) allow(ctx context.Context, dedupKey, channel string, window time.Duration) bool {
	dedupKey = strings.TrimSpace(dedupKey)
	if dedupKey == "" {
		return true
	}
	return d.guard.Allow(ctx, fmt.Sprintf("notify:%s:%s", dedupKey, channel), window)
}

func (d *Dispatcher) createRow(ctx context.Context, tx *gorm.DB, user *models.User, notificationType models.NotificationType, message string, input DispatchInput, channel string, withAction bool) (*models.Notification, error) {
	payload := make(map[string]any, len(input.Data)+2)
	for key, value := range input.Data {
		payload[key] = value
	}
	payload["channel"] = channel

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: marshal payload: %w", err)
	}

	row := models.Notification{
		UserID:  user.ID,
		Type:    string(notificationType),
		Message: message,
		Link:    strings.TrimSpace(input.Link),
		Data:    raw,
	}
	if withAction && input.Action != nil {
		if err := row.SetAction(input.Action); err != nil {
			return nil, fmt.Errorf("dispatcher: embed action: %w", err)
		}
	}

	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("dispatcher: create notification: %w", err)
	}
	return &row, nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, user *models.User, subject, body string) {
	if d.mailer == nil {
		return
	}
	err := d.mailer.Send(ctx, mail.Message{
		To:      []string{user.Email},
		Subject: subject,
		Body:    body,
	})
	if err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		metrics.TransportFailures.WithLabelValues(models.ChannelEmail).Inc()
		d.log.Warn("email transport failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) sendTelegram(ctx context.Context, user *models.User, message, link string) bool {
	if d.telegram == nil {
		return false
	}
	text := message
	if strings.TrimSpace(link) != "" {
		text = message + "\n" + link
	}
	err := d.telegram.SendMessage(ctx, *user.TelegramChatID, text)
	if err != nil {
		if errors.Is(err, telegram.ErrDisabled) {
			return false
		}
		metrics.TransportFailures.WithLabelValues(models.ChannelTelegram).Inc()
		d.log.Warn("telegram transport failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return false
	}
	return true
}

func emailSubject(notificationType models.NotificationType, message string) string {
	switch notificationType {
	case models.TypeEmailVerification:
		return "Confirm your Pawhaven account"
	case models.TypeVaccinationReminder:
		return "Vaccination reminder"
	case models.TypeBirthdayReminder:
		return "Birthday reminder"
	case models.TypePlacementRequest:
		return "New placement request"
	case models.TypeTransferRequest:
		return "New transfer request"
	default:
		if len(message) > 78 {
			return message[:78]
		}
		return message
	}
}

func emailBody(message, link string) string {
	if strings.TrimSpace(link) == "" {
		return message + "\n"
	}
	return fmt.Sprintf("%s\n\n%s\n", message, link)
}
