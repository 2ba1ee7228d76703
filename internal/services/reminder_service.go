package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawhaven/pawhaven/internal/models"
	"github.com/pawhaven/pawhaven/pkg/logger"
)

const birthdayDedupWindow = 366 * 24 * time.Hour

// ScanReport summarises one reminder batch run.
type ScanReport struct {
	Scanned  int
	Notified int
	Skipped  int
	Failed   int
}

// ReminderOption customises the ReminderService.
type ReminderOption func(*ReminderService)

// WithReminderClock injects a custom time source.
func WithReminderClock(clock func() time.Time) ReminderOption {
	return func(s *ReminderService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ReminderService runs the vaccination and birthday reminder scans. One
// entity failing never aborts the batch; failures are logged, counted, and
// aggregated into the returned error.
type ReminderService struct {
	db         *gorm.DB
	dispatcher *Dispatcher
	now        func() time.Time
	log        *zap.Logger
}

// NewReminderService constructs a ReminderService.
func NewReminderService(db *gorm.DB, dispatcher *Dispatcher, opts ...ReminderOption) (*ReminderService, error) {
	if db == nil {
		return nil, errors.New("reminder service: db is required")
	}
	if dispatcher == nil {
		return nil, errors.New("reminder service: dispatcher is required")
	}

	service := &ReminderService{
		db:         db,
		dispatcher: dispatcher,
		now:        time.Now,
		log:        logger.WithModule("reminders"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ScanVaccinations notifies owners of vaccination records due within the
// window. Each record is notified at most once ever: the send and the
// reminder_sent_at marker commit in one row-locked transaction, so concurrent
// scans collapse to a single notification. Pet types with reminders disabled
// are excluded entirely.
func (s *ReminderService) ScanVaccinations(ctx context.Context, dueWithin time.Duration) (*ScanReport, error) {
	ctx = ensureContext(ctx)
	if dueWithin < 0 {
		dueWithin = 0
	}
	cutoff := s.now().Add(dueWithin)

	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.VaccinationRecord{}).
		Joins("JOIN pets ON pets.id = vaccination_records.pet_id").
		Joins("JOIN pet_types ON pet_types.id = pets.pet_type_id").
		Where("vaccination_records.due_at <= ?", cutoff).
		Where("vaccination_records.reminder_sent_at IS NULL").
		Where("pet_types.vaccination_reminders_enabled = ?", true).
		Pluck("vaccination_records.id", &ids).Error; err != nil {
		return nil, fmt.Errorf("reminder service: list due records: %w", err)
	}

	report := &ScanReport{Scanned: len(ids)}
	var errs error
	for _, id := range ids {
		notified, err := s.remindVaccination(ctx, id)
		switch {
		case err != nil:
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("record %s: %w", id, err))
			s.log.Warn("vaccination reminder failed",
				zap.String("record_id", id),
				zap.Error(err),
			)
		case notified:
			report.Notified++
		default:
			report.Skipped++
		}
	}
	return report, errs
}

func (s *ReminderService) remindVaccination(ctx context.Context, recordID string) (bool, error) {
	notified := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.VaccinationRecord
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&record, "id = ?", recordID).Error; err != nil {
			return fmt.Errorf("lock record: %w", err)
		}
		// A concurrent scan may have marked the record between listing and locking.
		if record.ReminderSentAt != nil {
			return nil
		}

		var pet models.Pet
		if err := tx.First(&pet, "id = ?", record.PetID).Error; err != nil {
			return fmt.Errorf("load pet: %w", err)
		}
		var petType models.PetType
		if err := tx.First(&petType, "id = ?", pet.PetTypeID).Error; err != nil {
			return fmt.Errorf("load pet type: %w", err)
		}
		if !petType.VaccinationRemindersEnabled {
			return nil
		}

		_, err := s.dispatcher.DispatchTx(ctx, tx, DispatchInput{
			UserID: pet.OwnerID,
			Type:   models.TypeVaccinationReminder,
			Message: fmt.Sprintf("%s is due for the %s vaccine on %s.",
				pet.Name, record.Vaccine, record.DueAt.Format("2 January 2006")),
			Link: fmt.Sprintf("/pets/%s", pet.ID),
			Data: map[string]any{
				"pet_id":                pet.ID,
				"vaccination_record_id": record.ID,
			},
			DedupKey: fmt.Sprintf("vaccination:%s", record.ID),
		})
		if err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}

		if err := tx.Model(&record).Update("reminder_sent_at", s.now().UTC()).Error; err != nil {
			return fmt.Errorf("set marker: %w", err)
		}
		notified = true
		return nil
	})
	return notified, err
}

// ScanBirthdays notifies owners of pets whose birthday is today. Yearly
// dedup happens through the window guard, keyed per pet per year.
func (s *ReminderService) ScanBirthdays(ctx context.Context) (*ScanReport, error) {
	ctx = ensureContext(ctx)
	today := s.now()

	var pets []models.Pet
	if err := s.db.WithContext(ctx).
		Where("birthday IS NOT NULL").
		Find(&pets).Error; err != nil {
		return nil, fmt.Errorf("reminder service: list pets: %w", err)
	}

	report := &ScanReport{}
	var errs error
	for _, pet := range pets {
		if pet.Birthday == nil || pet.Birthday.Month() != today.Month() || pet.Birthday.Day() != today.Day() {
			continue
		}
		report.Scanned++

		result, err := s.dispatcher.Dispatch(ctx, DispatchInput{
			UserID:      pet.OwnerID,
			Type:        models.TypeBirthdayReminder,
			Message:     fmt.Sprintf("Today is %s's birthday!", pet.Name),
			Link:        fmt.Sprintf("/pets/%s", pet.ID),
			Data:        map[string]any{"pet_id": pet.ID},
			DedupKey:    fmt.Sprintf("birthday:%s:%d", pet.ID, today.Year()),
			DedupWindow: birthdayDedupWindow,
		})
		switch {
		case err != nil:
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("pet %s: %w", pet.ID, err))
			s.log.Warn("birthday reminder failed",
				zap.String("pet_id", pet.ID),
				zap.Error(err),
			)
		case len(result.Channels) > 0:
			report.Notified++
		default:
			report.Skipped++
		}
	}
	return report, errs
}
