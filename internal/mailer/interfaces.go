package mailer

// Sender delivers a single transactional email. Content is owned by the
// dispatch layer; implementations only move bytes.
type Sender interface {
	Send(toEmail, toName, subject, text, html string) error
}
