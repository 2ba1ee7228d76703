package models

import "time"

// EmailVerification stores a pending email verification token for a user. The
// token itself is never persisted, only its sha256 digest.
type EmailVerification struct {
	BaseModel

	UserID     string     `gorm:"type:uuid;not null;index" json:"user_id"`
	TokenHash  string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at"`
}
