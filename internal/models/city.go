package models

import "time"

// City is a managed location. New cities created by admins are approved
// immediately; the city_created notification carries an unapprove action so
// another admin can revert the approval from the bell.
type City struct {
	BaseModel

	Name        string     `gorm:"uniqueIndex;not null" json:"name"`
	CreatedByID string     `gorm:"type:uuid;index" json:"created_by_id"`
	ApprovedAt  *time.Time `json:"approved_at"`
}
