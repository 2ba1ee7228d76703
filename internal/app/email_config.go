package app

import (
	"strings"

	"github.com/pawhaven/pawhaven/pkg/mail"
)

// SMTPSettings converts the email section into mailer settings.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     strings.TrimSpace(c.SMTP.Host),
		Port:     c.SMTP.Port,
		Username: strings.TrimSpace(c.SMTP.Username),
		Password: c.SMTP.Password,
		From:     strings.TrimSpace(c.SMTP.From),
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}
