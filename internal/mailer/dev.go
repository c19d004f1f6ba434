package mailer

import (
	"github.com/diagnosis/passwordless-api/pkg/logger"
)

// DevMailer logs instead of sending. Default in development.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(toEmail, toName, subject, text, html string) error {
	logger.Info("[DEV MAIL]",
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"text", text,
	)
	return nil
}
