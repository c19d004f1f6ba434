package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/diagnosis/passwordless-api/internal/domain"
	"github.com/diagnosis/passwordless-api/internal/mailer"
	"github.com/diagnosis/passwordless-api/pkg/logger"
)

type EmailDispatcher struct {
	sender     mailer.Sender
	from       string
	subject    string
	plaintext  string
	tmpl       *template.Template
	processors []ContextProcessor
}

// NewEmailDispatcher parses the HTML body template once. plaintext is a
// printf-style format with a single %s verb for the token key.
func NewEmailDispatcher(sender mailer.Sender, from, subject, plaintext, htmlBody string, processors ...ContextProcessor) (*EmailDispatcher, error) {
	tmpl, err := template.New("callback_email").Parse(htmlBody)
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}

	return &EmailDispatcher{
		sender:     sender,
		from:       from,
		subject:    subject,
		plaintext:  plaintext,
		tmpl:       tmpl,
		processors: processors,
	}, nil
}

func (d *EmailDispatcher) Send(ctx context.Context, user *domain.User, token *domain.CallbackToken) error {
	if d.from == "" {
		logger.DebugContext(ctx, "Email dispatch skipped: no sender address configured")
		return ErrNotConfigured
	}

	tmplCtx := map[string]any{"CallbackToken": token.Key}
	for _, processor := range d.processors {
		for k, v := range processor() {
			tmplCtx[k] = v
		}
	}

	var html bytes.Buffer
	if err := d.tmpl.Execute(&html, tmplCtx); err != nil {
		logger.DebugContext(ctx, "Email dispatch failed: template render", "error", err)
		return fmt.Errorf("render email template: %w", err)
	}

	text := fmt.Sprintf(d.plaintext, token.Key)

	if err := d.sender.Send(user.Email, "", d.subject, text, html.String()); err != nil {
		logger.DebugContext(ctx, "Email dispatch failed", "error", err, "user_id", user.ID)
		return fmt.Errorf("send token email: %w", err)
	}

	return nil
}
