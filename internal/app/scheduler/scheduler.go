package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/models"
	"github.com/pawhaven/pawhaven/internal/services"
	"github.com/pawhaven/pawhaven/pkg/logger"
)

const (
	defaultVaccinationSpec = "0 8 * * *"
	defaultBirthdaySpec    = "30 8 * * *"
	defaultCleanupSpec     = "@daily"
	defaultVaccinationDays = 7
)

// Scheduler coordinates the recurring background jobs: the vaccination and
// birthday reminder scans plus expired-state cleanup (consumed verification
// tokens and stale claim-cache rows).
type Scheduler struct {
	db        *gorm.DB
	reminders *services.ReminderService
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	enabled   bool

	vaccinationSchedule string
	birthdaySchedule    string
	cleanupSchedule     string
	vaccinationWindow   time.Duration
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithVaccinationSchedule overrides the cron specification for the vaccination scan.
func WithVaccinationSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.vaccinationSchedule = spec
		}
	}
}

// WithBirthdaySchedule overrides the cron specification for the birthday scan.
func WithBirthdaySchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.birthdaySchedule = spec
		}
	}
}

// WithVaccinationWindow adjusts how far ahead the vaccination scan looks.
func WithVaccinationWindow(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.vaccinationWindow = d
		}
	}
}

// New constructs a Scheduler with sensible defaults. A nil reminder service
// results in the reminder jobs being skipped.
func New(db *gorm.DB, reminders *services.ReminderService, opts ...Option) *Scheduler {
	scheduler := &Scheduler{
		db:                  db,
		reminders:           reminders,
		now:                 time.Now,
		vaccinationSchedule: defaultVaccinationSpec,
		birthdaySchedule:    defaultBirthdaySpec,
		cleanupSchedule:     defaultCleanupSpec,
		vaccinationWindow:   defaultVaccinationDays * 24 * time.Hour,
		log:                 logger.WithModule("scheduler"),
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	if scheduler.cron == nil {
		scheduler.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	scheduler.enabled = scheduler.reminders != nil || scheduler.db != nil

	return scheduler
}

// Start registers jobs with the cron scheduler and launches it.
func (s *Scheduler) Start() error {
	if !s.enabled {
		return nil
	}

	if s.reminders != nil {
		if _, err := s.cron.AddFunc(s.vaccinationSchedule, func() {
			ctx := context.Background()
			report, err := s.reminders.ScanVaccinations(ctx, s.vaccinationWindow)
			if err != nil {
				s.log.Warn("vaccination scan finished with failures", zap.Error(err))
			}
			if report != nil {
				s.log.Info("vaccination scan complete",
					zap.Int("scanned", report.Scanned),
					zap.Int("notified", report.Notified),
					zap.Int("skipped", report.Skipped),
					zap.Int("failed", report.Failed),
				)
			}
		}); err != nil {
			return err
		}

		if _, err := s.cron.AddFunc(s.birthdaySchedule, func() {
			ctx := context.Background()
			report, err := s.reminders.ScanBirthdays(ctx)
			if err != nil {
				s.log.Warn("birthday scan finished with failures", zap.Error(err))
			}
			if report != nil {
				s.log.Info("birthday scan complete",
					zap.Int("scanned", report.Scanned),
					zap.Int("notified", report.Notified),
					zap.Int("skipped", report.Skipped),
					zap.Int("failed", report.Failed),
				)
			}
		}); err != nil {
			return err
		}
	}

	if s.db != nil {
		if _, err := s.cron.AddFunc(s.cleanupSchedule, func() {
			ctx := context.Background()
			if _, err := CleanupExpired(ctx, s.db, s.now()); err != nil {
				s.log.Warn("expired-state cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes all configured jobs sequentially. Primarily used in tests
// and during graceful shutdown.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.reminders != nil {
		if _, err := s.reminders.ScanVaccinations(ctx, s.vaccinationWindow); err != nil {
			errs = multierr.Append(errs, err)
		}
		if _, err := s.reminders.ScanBirthdays(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.db != nil {
		if _, err := CleanupExpired(ctx, s.db, s.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// CleanupStats captures the number of records removed per table.
type CleanupStats struct {
	EmailVerifications int64
	CacheEntries       int64
}

// CleanupExpired removes expired or consumed verification tokens and expired
// claim-cache rows.
func CleanupExpired(ctx context.Context, db *gorm.DB, now time.Time) (CleanupStats, error) {
	if db == nil {
		return CleanupStats{}, errors.New("cleanup: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := CleanupStats{}

	result := db.WithContext(ctx).
		Where("expires_at < ? OR verified_at IS NOT NULL", now).
		Delete(&models.EmailVerification{})
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup: email verifications: %w", result.Error)
	}
	stats.EmailVerifications = result.RowsAffected

	result = db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.CacheEntry{})
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup: cache entries: %w", result.Error)
	}
	stats.CacheEntries = result.RowsAffected

	return stats, nil
}
