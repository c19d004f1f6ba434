// Package dispatch delivers callback tokens to a user's contact point and
// bridges code checks to the external verification provider. Failures are
// typed so internal callers can tell a missing configuration from a
// provider error; the HTTP layer collapses them to uniform responses.
package dispatch

import (
	"context"
	"errors"

	"github.com/diagnosis/passwordless-api/internal/domain"
)

// ErrNotConfigured means the channel is missing a sender address, number,
// or credentials. It is a deployment problem, not a provider outage.
var ErrNotConfigured = errors.New("dispatch: channel not configured")

// Dispatcher sends a callback token over one channel.
type Dispatcher interface {
	Send(ctx context.Context, user *domain.User, token *domain.CallbackToken) error
}

// ContextProcessor contributes extra values to the email template context.
type ContextProcessor func() map[string]any
