package models

import "time"

// PetType groups pets by species/category and carries feature switches that
// apply to every pet of that type.
type PetType struct {
	BaseModel

	Name string `gorm:"uniqueIndex;not null" json:"name"`

	// VaccinationRemindersEnabled gates the reminder scan for the whole type.
	// Plain bool without a column default: gorm omits zero-valued fields that
	// carry a default tag on create, which would turn a seeded false into true.
	VaccinationRemindersEnabled bool `gorm:"not null" json:"vaccination_reminders_enabled"`
}

// Pet is an adoptable or fostered animal profile.
type Pet struct {
	BaseModel

	Name      string `gorm:"not null" json:"name"`
	OwnerID   string `gorm:"type:uuid;not null;index" json:"owner_id"`
	PetTypeID string `gorm:"type:uuid;not null;index" json:"pet_type_id"`

	Birthday *time.Time `gorm:"index" json:"birthday"`

	Owner *User    `gorm:"foreignKey:OwnerID" json:"-"`
	Type  *PetType `gorm:"foreignKey:PetTypeID" json:"type,omitempty"`
}
