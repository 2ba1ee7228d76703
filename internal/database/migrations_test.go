package database_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pawhaven/pawhaven/internal/database"
	"github.com/pawhaven/pawhaven/internal/database/testutil"
	"github.com/pawhaven/pawhaven/internal/models"
)

func TestSeedData_PetTypeReminderFlags(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	var petTypes []models.PetType
	require.NoError(t, db.Order("id").Find(&petTypes, "id IN ?", []string{"cat", "dog", "other"}).Error)
	require.Len(t, petTypes, 3)

	flags := map[string]bool{}
	for _, petType := range petTypes {
		flags[petType.ID] = petType.VaccinationRemindersEnabled
	}

	require.True(t, flags["cat"])
	require.True(t, flags["dog"])
	// The stored value must stay false so the vaccination scan skips the type.
	require.False(t, flags["other"])
}

func TestSeedData_IsIdempotent(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	// Seeding again must neither duplicate rows nor flip existing flags.
	require.NoError(t, database.SeedData(db))

	var count int64
	require.NoError(t, db.Model(&models.PetType{}).
		Where("id IN ?", []string{"cat", "dog", "other"}).Count(&count).Error)
	require.EqualValues(t, 3, count)

	var other models.PetType
	require.NoError(t, db.First(&other, "id = ?", "other").Error)
	require.False(t, other.VaccinationRemindersEnabled)
}
