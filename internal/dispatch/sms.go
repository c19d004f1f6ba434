package dispatch

import (
	"context"
	"fmt"

	"github.com/diagnosis/passwordless-api/internal/domain"
	"github.com/diagnosis/passwordless-api/internal/utils"
	"github.com/diagnosis/passwordless-api/pkg/config"
	"github.com/diagnosis/passwordless-api/pkg/logger"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

type SMSDispatcher struct {
	api      messageAPI
	from     string
	message  string
	suppress bool
}

// NewSMSDispatcher leaves the provider client nil when account credentials
// are missing; Send reports that as ErrNotConfigured instead of failing at
// startup. message is a printf-style format with a single %s verb.
func NewSMSDispatcher(cfg config.TwilioConfig, from, message string, suppress bool) *SMSDispatcher {
	d := &SMSDispatcher{
		from:     from,
		message:  message,
		suppress: suppress,
	}

	if cfg.AccountSID != "" && cfg.AuthToken != "" {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		d.api = client.Api
	}

	return d
}

func (d *SMSDispatcher) Send(ctx context.Context, user *domain.User, token *domain.CallbackToken) error {
	if d.suppress {
		// Suppression assumes success to avoid spamming SMS from test
		// environments, but a missing sender number is still a
		// misconfiguration worth surfacing.
		if d.from == "" {
			return ErrNotConfigured
		}
		return nil
	}

	if d.api == nil {
		logger.DebugContext(ctx, "SMS dispatch skipped: provider credentials not configured")
		return ErrNotConfigured
	}

	to := utils.NormalizeMobile(user.Mobile)
	body := fmt.Sprintf(d.message, token.Key)

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(d.from)
	params.SetBody(body)

	if _, err := d.api.CreateMessage(params); err != nil {
		logger.DebugContext(ctx, "SMS dispatch failed", "error", err, "user_id", user.ID)
		return fmt.Errorf("send token sms: %w", err)
	}

	return nil
}
