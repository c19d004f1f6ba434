package dispatch

import (
	"context"
	"fmt"

	"github.com/diagnosis/passwordless-api/internal/domain"
	"github.com/diagnosis/passwordless-api/internal/utils"
	"github.com/diagnosis/passwordless-api/pkg/config"
	"github.com/diagnosis/passwordless-api/pkg/logger"
	"github.com/twilio/twilio-go"
	verify "github.com/twilio/twilio-go/rest/verify/v2"
)

type verificationAPI interface {
	CreateVerificationCheck(serviceSid string, params *verify.CreateVerificationCheckParams) (*verify.VerifyV2VerificationCheck, error)
}

// VerifyBridge delegates SMS code checks to the provider's verification
// service instead of locally stored tokens.
type VerifyBridge struct {
	api        verificationAPI
	serviceSID string
}

func NewVerifyBridge(cfg config.TwilioConfig) *VerifyBridge {
	b := &VerifyBridge{serviceSID: cfg.VerifyService}

	if cfg.AccountSID != "" && cfg.AuthToken != "" {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		b.api = client.VerifyV2
	}

	return b
}

func (b *VerifyBridge) Enabled() bool {
	return b.api != nil && b.serviceSID != ""
}

// Check reports whether the provider approved the submitted code for the
// user's mobile number.
func (b *VerifyBridge) Check(ctx context.Context, user *domain.User, code string) (bool, error) {
	if !b.Enabled() {
		return false, ErrNotConfigured
	}

	to := utils.NormalizeMobile(user.Mobile)

	params := &verify.CreateVerificationCheckParams{}
	params.SetTo(to)
	params.SetCode(code)

	check, err := b.api.CreateVerificationCheck(b.serviceSID, params)
	if err != nil {
		logger.DebugContext(ctx, "Verification check failed", "error", err, "user_id", user.ID)
		return false, fmt.Errorf("verification check: %w", err)
	}

	return check.Status != nil && *check.Status == "approved", nil
}
