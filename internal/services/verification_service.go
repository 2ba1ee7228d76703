package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/models"
	"github.com/pawhaven/pawhaven/pkg/crypto"
	apperrors "github.com/pawhaven/pawhaven/pkg/errors"
	"github.com/pawhaven/pawhaven/pkg/logger"
)

const (
	defaultVerificationExpiry     = 24 * time.Hour
	defaultVerificationTokenBytes = 48

	// verificationResendWindow suppresses repeated sends for the same user.
	// Inside the window the resend endpoint is a silent no-op.
	verificationResendWindow = 30 * time.Second
)

var (
	// ErrVerificationNotFound indicates the token does not exist.
	ErrVerificationNotFound = apperrors.New("VERIFICATION_NOT_FOUND", "Verification token is invalid", 400)
	// ErrVerificationExpired indicates the verification token has expired.
	ErrVerificationExpired = apperrors.New("VERIFICATION_EXPIRED", "Verification token has expired", 400)
	// ErrVerificationUsed signals that the token has already been consumed.
	ErrVerificationUsed = apperrors.New("VERIFICATION_USED", "Verification token has already been used", 400)
)

// VerificationOption customises the VerificationService.
type VerificationOption func(*VerificationService)

// WithVerificationBaseURL sets the base URL used in verification links.
func WithVerificationBaseURL(url string) VerificationOption {
	return func(s *VerificationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithVerificationExpiry overrides the token lifetime.
func WithVerificationExpiry(d time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithVerificationWindow overrides the resend suppression window.
func WithVerificationWindow(d time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// VerificationService issues and consumes email verification tokens. Sends go
// through the Dispatcher so channel resolution and bookkeeping follow the
// standard path; the resend window is enforced here so the token row and the
// notification rows appear (or are suppressed) together.
type VerificationService struct {
	db          *gorm.DB
	dispatcher  *Dispatcher
	guard       *WindowGuard
	baseURL     string
	expiry      time.Duration
	window      time.Duration
	tokenLength int
	now         func() time.Time
	newToken    func(int) (string, error)
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(db *gorm.DB, dispatcher *Dispatcher, guard *WindowGuard, opts ...VerificationOption) (*VerificationService, error) {
	if db == nil {
		return nil, errors.New("verification service: db is required")
	}
	if dispatcher == nil {
		return nil, errors.New("verification service: dispatcher is required")
	}
	if guard == nil {
		return nil, errors.New("verification service: window guard is required")
	}

	service := &VerificationService{
		db:          db,
		dispatcher:  dispatcher,
		guard:       guard,
		expiry:      defaultVerificationExpiry,
		window:      verificationResendWindow,
		tokenLength: defaultVerificationTokenBytes,
		now:         time.Now,
		newToken:    crypto.GenerateToken,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Send issues a fresh verification token for the user and dispatches the
// email_verification notification. Repeated calls inside the resend window
// are silent no-ops producing zero new rows. Already-verified users are also
// a no-op.
func (s *VerificationService) Send(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("verification service: user id is required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("verification service: load user: %w", err)
	}
	if user.EmailVerifiedAt != nil {
		return nil
	}

	guardKey := fmt.Sprintf("verify:%s", userID)
	if !s.guard.Allow(ctx, guardKey, s.window) {
		logger.WithModule("verification").Debug("resend suppressed inside window",
			zap.String("user_id", userID),
		)
		return nil
	}

	// The claim is held from here on. Any failure before the email goes out
	// must reopen the window, or the user is locked out of resend with no
	// token outstanding.
	token, err := s.newToken(s.tokenLength)
	if err != nil {
		s.reopenWindow(ctx, guardKey)
		return fmt.Errorf("verification service: generate token: %w", err)
	}

	now := s.now()
	verification := models.EmailVerification{
		UserID:    userID,
		TokenHash: verificationHash(token),
		ExpiresAt: now.Add(s.expiry),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).
			Delete(&models.EmailVerification{}).Error; err != nil {
			return fmt.Errorf("cleanup existing: %w", err)
		}
		return tx.Create(&verification).Error
	})
	if err != nil {
		s.reopenWindow(ctx, guardKey)
		return fmt.Errorf("verification service: store token: %w", err)
	}

	link := s.verificationLink(token)
	_, err = s.dispatcher.Dispatch(ctx, DispatchInput{
		UserID:  userID,
		Type:    models.TypeEmailVerification,
		Message: "Please confirm your email address.",
		Link:    link,
		EmailBody: fmt.Sprintf(
			"Welcome to Pawhaven!\n\nPlease confirm your email address by visiting the link below:\n%s\n\nIf you did not create an account, you can ignore this message.\n",
			link,
		),
	})
	if err != nil {
		s.reopenWindow(ctx, guardKey)
		return fmt.Errorf("verification service: dispatch: %w", err)
	}
	return nil
}

// reopenWindow drops the resend claim after a failed send. A detached context
// is used so the release still happens when the request context is gone.
func (s *VerificationService) reopenWindow(ctx context.Context, key string) {
	if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
		logger.WithModule("verification").Warn("failed to reopen resend window",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// Verify validates and consumes a verification token, marking the owning
// user's email as verified.
func (s *VerificationService) Verify(ctx context.Context, token string) (*models.User, error) {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrVerificationNotFound
	}

	var verification models.EmailVerification
	if err := s.db.WithContext(ctx).
		Where("token_hash = ?", verificationHash(token)).
		First(&verification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("verification service: find token: %w", err)
	}

	now := s.now()
	if verification.ExpiresAt.Before(now) {
		return nil, ErrVerificationExpired
	}
	if verification.VerifiedAt != nil {
		return nil, ErrVerificationUsed
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", verification.UserID).Error; err != nil {
			return fmt.Errorf("verification service: load user: %w", err)
		}
		if err := tx.Model(&verification).Update("verified_at", now).Error; err != nil {
			return fmt.Errorf("verification service: mark token used: %w", err)
		}
		if err := tx.Model(&user).Update("email_verified_at", now).Error; err != nil {
			return fmt.Errorf("verification service: mark user verified: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.EmailVerifiedAt = &now
	return &user, nil
}

func (s *VerificationService) verificationLink(token string) string {
	if s.baseURL == "" {
		return token
	}
	return fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)
}

func verificationHash(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
