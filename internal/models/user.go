package models

import "time"

// User describes a platform account: adopters, fosterers, helpers, and admins.
type User struct {
	BaseModel

	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	IsAdmin  bool `gorm:"default:false" json:"is_admin"`
	IsActive bool `gorm:"default:true" json:"is_active"`

	EmailVerifiedAt *time.Time `json:"email_verified_at"`

	// Telegram linking state. A pending link token is issued when the user
	// requests channel linking and cleared once the webhook confirms it.
	TelegramChatID    *int64 `gorm:"index" json:"-"`
	TelegramLinkToken string `gorm:"index" json:"-"`

	Pets []Pet `gorm:"foreignKey:OwnerID" json:"pets,omitempty"`
}

// TelegramLinked reports whether the account has a confirmed Telegram chat.
func (u *User) TelegramLinked() bool {
	return u.TelegramChatID != nil && *u.TelegramChatID != 0
}
