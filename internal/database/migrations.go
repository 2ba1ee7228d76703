package database

import (
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.PetType{},
		&models.Pet{},
		&models.VaccinationRecord{},
		&models.City{},
		&models.EmailVerification{},
		&models.Notification{},
		&models.NotificationPreference{},
		&models.EmailLog{},
		&models.CacheEntry{},
	)
}

// SeedData populates the default pet types.
func SeedData(db *gorm.DB) error {
	petTypes := []models.PetType{
		{
			BaseModel:                   models.BaseModel{ID: "cat"},
			Name:                        "Cat",
			VaccinationRemindersEnabled: true,
		},
		{
			BaseModel:                   models.BaseModel{ID: "dog"},
			Name:                        "Dog",
			VaccinationRemindersEnabled: true,
		},
		{
			BaseModel:                   models.BaseModel{ID: "other"},
			Name:                        "Other",
			VaccinationRemindersEnabled: false,
		},
	}

	for _, petType := range petTypes {
		if err := db.Where(models.PetType{BaseModel: models.BaseModel{ID: petType.ID}}).
			Attrs(petType).
			FirstOrCreate(&models.PetType{}).Error; err != nil {
			return err
		}
	}

	return nil
}
