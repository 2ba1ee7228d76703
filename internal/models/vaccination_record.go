package models

import "time"

// VaccinationRecord tracks a vaccination and its next due date for a pet.
type VaccinationRecord struct {
	BaseModel

	PetID   string    `gorm:"type:uuid;not null;index" json:"pet_id"`
	Vaccine string    `gorm:"not null" json:"vaccine"`
	DueAt   time.Time `gorm:"index" json:"due_at"`

	// ReminderSentAt is the permanent dedup marker: once set, the reminder
	// scan never notifies for this record again.
	ReminderSentAt *time.Time `json:"reminder_sent_at"`

	Pet *Pet `gorm:"foreignKey:PetID" json:"-"`
}
