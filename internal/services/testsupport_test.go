package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/cache"
	"github.com/pawhaven/pawhaven/internal/database/testutil"
	"github.com/pawhaven/pawhaven/internal/models"
	"github.com/pawhaven/pawhaven/pkg/mail"
)

// recordingMailer captures outbound email instead of dialing SMTP.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

type telegramDelivery struct {
	ChatID int64
	Text   string
}

// recordingTelegram captures outbound bot messages.
type recordingTelegram struct {
	mu   sync.Mutex
	sent []telegramDelivery
	err  error
}

func (s *recordingTelegram) SendMessage(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, telegramDelivery{ChatID: chatID, Text: text})
	return nil
}

func (s *recordingTelegram) deliveries() []telegramDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]telegramDelivery, len(s.sent))
	copy(out, s.sent)
	return out
}

type testEnv struct {
	db         *gorm.DB
	guard      *WindowGuard
	prefs      *PreferenceService
	dispatcher *Dispatcher
	mailer     *recordingMailer
	telegram   *recordingTelegram
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	guard, err := NewWindowGuard(cache.NewDatabaseStore(db))
	require.NoError(t, err)

	prefs, err := NewPreferenceService(db)
	require.NoError(t, err)

	mailer := &recordingMailer{}
	sender := &recordingTelegram{}

	dispatcher, err := NewDispatcher(db, prefs, guard,
		WithMailer(mailer),
		WithTelegramSender(sender),
	)
	require.NoError(t, err)

	return &testEnv{
		db:         db,
		guard:      guard,
		prefs:      prefs,
		dispatcher: dispatcher,
		mailer:     mailer,
		telegram:   sender,
	}
}

// createUser inserts a user with a unique email. The test database is shared
// in-memory SQLite, so fixtures must not collide across tests.
func (e *testEnv) createUser(t *testing.T, mutate ...func(*models.User)) models.User {
	t.Helper()

	user := models.User{
		Name:     "Casey",
		Email:    uuid.NewString() + "@example.com",
		Password: "not-a-real-hash",
		IsActive: true,
	}
	for _, fn := range mutate {
		fn(&user)
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) notificationCount(t *testing.T, userID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.Notification{}).
		Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func (e *testEnv) emailLogCount(t *testing.T, userID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.EmailLog{}).
		Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func (e *testEnv) notificationsFor(t *testing.T, userID string) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, e.db.Where("user_id = ?", userID).Find(&rows).Error)
	return rows
}
