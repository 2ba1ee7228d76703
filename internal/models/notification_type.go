package models

// NotificationType enumerates the closed set of typed notifications. Events
// without a dedicated type produce an untyped notification carrying only a
// descriptive message.
type NotificationType string

const (
	TypeEmailVerification   NotificationType = "email_verification"
	TypeVaccinationReminder NotificationType = "vaccination_reminder"
	TypeBirthdayReminder    NotificationType = "birthday_reminder"
	TypeCityCreated         NotificationType = "city_created"
	TypePlacementRequest    NotificationType = "placement_request"
	TypeTransferRequest     NotificationType = "transfer_request"
)

// ChannelFlags is the resolved per-channel enablement triple for one
// (user, notification type) pair.
type ChannelFlags struct {
	EmailEnabled    bool `json:"email_enabled"`
	InAppEnabled    bool `json:"in_app_enabled"`
	TelegramEnabled bool `json:"telegram_enabled"`
}

// defaultChannelFlags maps each notification type to the channels used when no
// explicit preference row exists.
var defaultChannelFlags = map[NotificationType]ChannelFlags{
	TypeEmailVerification:   {EmailEnabled: true},
	TypeVaccinationReminder: {EmailEnabled: true, InAppEnabled: true},
	TypeBirthdayReminder:    {EmailEnabled: true, InAppEnabled: true},
	TypeCityCreated:         {InAppEnabled: true},
	TypePlacementRequest:    {EmailEnabled: true, InAppEnabled: true},
	TypeTransferRequest:     {EmailEnabled: true, InAppEnabled: true},
}

// AllNotificationTypes lists every known type, used when fanning preference
// updates across the enumeration.
func AllNotificationTypes() []NotificationType {
	return []NotificationType{
		TypeEmailVerification,
		TypeVaccinationReminder,
		TypeBirthdayReminder,
		TypeCityCreated,
		TypePlacementRequest,
		TypeTransferRequest,
	}
}

// DefaultChannelFlags returns the compiled-in defaults for a type. Unknown or
// untyped notifications default to in-app only.
func DefaultChannelFlags(t NotificationType) ChannelFlags {
	if flags, ok := defaultChannelFlags[t]; ok {
		return flags
	}
	return ChannelFlags{InAppEnabled: true}
}

// KnownNotificationType reports whether t belongs to the closed enumeration.
func KnownNotificationType(t NotificationType) bool {
	_, ok := defaultChannelFlags[t]
	return ok
}
