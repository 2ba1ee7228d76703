package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pawhaven/pawhaven/internal/models"
)

func newReminderService(t *testing.T, env *testEnv, opts ...ReminderOption) *ReminderService {
	t.Helper()
	svc, err := NewReminderService(env.db, env.dispatcher, opts...)
	require.NoError(t, err)
	return svc
}

func (e *testEnv) createPet(t *testing.T, ownerID, petTypeID, name string, birthday *time.Time) models.Pet {
	t.Helper()
	pet := models.Pet{
		Name:      name,
		OwnerID:   ownerID,
		PetTypeID: petTypeID,
		Birthday:  birthday,
	}
	require.NoError(t, e.db.Create(&pet).Error)
	return pet
}

func (e *testEnv) createVaccination(t *testing.T, petID, vaccine string, dueAt time.Time) models.VaccinationRecord {
	t.Helper()
	record := models.VaccinationRecord{
		PetID:   petID,
		Vaccine: vaccine,
		DueAt:   dueAt,
	}
	require.NoError(t, e.db.Create(&record).Error)
	return record
}

func TestReminderService_ScanVaccinations(t *testing.T) {
	env := newTestEnv(t)
	svc := newReminderService(t, env)

	owner := env.createUser(t)
	cat := env.createPet(t, owner.ID, "cat", "Milo", nil)
	ferret := env.createPet(t, owner.ID, "other", "Noodle", nil)

	due := env.createVaccination(t, cat.ID, "rabies", time.Now().Add(48*time.Hour))
	disabled := env.createVaccination(t, ferret.ID, "distemper", time.Now().Add(48*time.Hour))
	farOff := env.createVaccination(t, cat.ID, "leukemia", time.Now().Add(30*24*time.Hour))

	report, err := svc.ScanVaccinations(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, report.Scanned)
	require.Equal(t, 1, report.Notified)
	require.Equal(t, 0, report.Failed)

	// Marker set for the notified record only.
	var record models.VaccinationRecord
	require.NoError(t, env.db.First(&record, "id = ?", due.ID).Error)
	require.NotNil(t, record.ReminderSentAt)

	record = models.VaccinationRecord{}
	require.NoError(t, env.db.First(&record, "id = ?", disabled.ID).Error)
	require.Nil(t, record.ReminderSentAt)
	record = models.VaccinationRecord{}
	require.NoError(t, env.db.First(&record, "id = ?", farOff.ID).Error)
	require.Nil(t, record.ReminderSentAt)

	// Default channels for vaccination reminders: in-app plus email.
	require.EqualValues(t, 2, env.notificationCount(t, owner.ID))
	require.EqualValues(t, 1, env.emailLogCount(t, owner.ID))

	rows := env.notificationsFor(t, owner.ID)
	for _, row := range rows {
		require.Equal(t, string(models.TypeVaccinationReminder), row.Type)
		require.Contains(t, row.Message, "Milo is due for the rabies vaccine")
	}

	// A second run sees nothing: the marker is permanent.
	report, err = svc.ScanVaccinations(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 0, report.Scanned)
	require.EqualValues(t, 2, env.notificationCount(t, owner.ID))

	// Widening the window picks up the remaining enabled record.
	report, err = svc.ScanVaccinations(context.Background(), 60*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, report.Scanned)
	require.Equal(t, 1, report.Notified)
	require.EqualValues(t, 4, env.notificationCount(t, owner.ID))

	// The disabled pet type never gets scanned, whatever the window.
	record = models.VaccinationRecord{}
	require.NoError(t, env.db.First(&record, "id = ?", disabled.ID).Error)
	require.Nil(t, record.ReminderSentAt)
}

func TestReminderService_ScanBirthdays(t *testing.T) {
	env := newTestEnv(t)
	today := time.Date(2026, time.June, 15, 9, 0, 0, 0, time.UTC)
	svc := newReminderService(t, env, WithReminderClock(func() time.Time { return today }))

	owner := env.createUser(t)
	birthday := time.Date(2021, time.June, 15, 0, 0, 0, 0, time.UTC)
	offDay := time.Date(2020, time.December, 1, 0, 0, 0, 0, time.UTC)
	env.createPet(t, owner.ID, "dog", "Biscuit", &birthday)
	env.createPet(t, owner.ID, "dog", "Waffles", &offDay)

	report, err := svc.ScanBirthdays(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Scanned)
	require.Equal(t, 1, report.Notified)

	rows := env.notificationsFor(t, owner.ID)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, string(models.TypeBirthdayReminder), row.Type)
		require.Contains(t, row.Message, "Biscuit's birthday")
	}

	// Re-running the scan the same day dedups through the yearly window.
	report, err = svc.ScanBirthdays(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Scanned)
	require.Equal(t, 0, report.Notified)
	require.Equal(t, 1, report.Skipped)
	require.EqualValues(t, 2, env.notificationCount(t, owner.ID))
}
