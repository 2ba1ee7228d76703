package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Delivery channels recorded in the notification data payload. The channel tag
// decides bell visibility: in_app rows surface in the unified bell, email rows
// exist only as delivery bookkeeping.
const (
	ChannelInApp    = "in_app"
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// Notification is a per-user notification row. Rows are created by the
// dispatcher and afterwards mutated only to set ReadAt or to disable an
// embedded action descriptor.
type Notification struct {
	BaseModel

	UserID  string `gorm:"type:uuid;not null;index" json:"user_id"`
	Type    string `gorm:"type:varchar(64);index" json:"type,omitempty"`
	Message string `gorm:"type:text;not null" json:"message"`
	Link    string `gorm:"type:text" json:"link,omitempty"`

	// Data carries the channel tag and optional structured context such as an
	// action descriptor. See notification_action.go for the action shape.
	Data datatypes.JSON `json:"data"`

	ReadAt *time.Time `gorm:"index" json:"read_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// Channel extracts the delivery channel tag from the data payload.
func (n *Notification) Channel() string {
	payload := n.DataMap()
	if payload == nil {
		return ""
	}
	channel, _ := payload["channel"].(string)
	return channel
}

// DataMap decodes the raw data payload into a generic map. Returns nil when
// the payload is empty or malformed.
func (n *Notification) DataMap() map[string]any {
	if len(n.Data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(n.Data, &out); err != nil {
		return nil
	}
	return out
}

// IsRead reports whether the notification has been read.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
