package telegram

import "strings"

// Update is the subset of the Bot API webhook payload the platform consumes.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      Chat   `json:"chat"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// StartToken extracts the deep-link token from a "/start <token>" message.
// Returns "" when the message is not a start command or carries no token.
func (m *Message) StartToken() string {
	if m == nil {
		return ""
	}
	fields := strings.Fields(strings.TrimSpace(m.Text))
	if len(fields) != 2 || fields[0] != "/start" {
		return ""
	}
	return fields[1]
}
