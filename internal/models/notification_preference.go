package models

// NotificationPreference stores explicit per-channel enablement for one
// (user, notification type) pair. Missing rows fall back to the compiled-in
// defaults in DefaultChannelFlags.
type NotificationPreference struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_pref_user_type" json:"user_id"`
	Type   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_pref_user_type" json:"type"`

	EmailEnabled    bool `gorm:"default:false" json:"email_enabled"`
	InAppEnabled    bool `gorm:"default:false" json:"in_app_enabled"`
	TelegramEnabled bool `gorm:"default:false" json:"telegram_enabled"`
}

// Flags converts the row into the resolved channel triple.
func (p *NotificationPreference) Flags() ChannelFlags {
	return ChannelFlags{
		EmailEnabled:    p.EmailEnabled,
		InAppEnabled:    p.InAppEnabled,
		TelegramEnabled: p.TelegramEnabled,
	}
}
