package models

// EmailLog records that an email was actually handed to the mail transport for
// a notification. At most one log exists per guarded send window.
type EmailLog struct {
	BaseModel

	UserID         string `gorm:"type:uuid;not null;index" json:"user_id"`
	NotificationID string `gorm:"type:uuid;not null;index" json:"notification_id"`
	Recipient      string `gorm:"not null" json:"recipient"`
	Subject        string `json:"subject"`

	Notification *Notification `gorm:"foreignKey:NotificationID" json:"-"`
}
