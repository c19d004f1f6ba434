package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/diagnosis/passwordless-api/internal/domain"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	verify "github.com/twilio/twilio-go/rest/verify/v2"
)

type mockMessageAPI struct {
	calls  int
	lastTo string
	lastFr string
	lastBd string
	err    error
}

func (m *mockMessageAPI) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	m.calls++
	if params.To != nil {
		m.lastTo = *params.To
	}
	if params.From != nil {
		m.lastFr = *params.From
	}
	if params.Body != nil {
		m.lastBd = *params.Body
	}
	return &openapi.ApiV2010Message{}, m.err
}

func mobileUser() *domain.User {
	return &domain.User{ID: 1, Mobile: "+1 (555) 123-4567"}
}

func mobileToken() *domain.CallbackToken {
	return &domain.CallbackToken{UserID: 1, Key: "654321", AliasType: domain.AliasMobile, Alias: "+15551234567"}
}

func TestSMSDispatchSuppressionWithFromNumber(t *testing.T) {
	api := &mockMessageAPI{}
	d := &SMSDispatcher{api: api, from: "+15550000000", message: "Code: %s", suppress: true}

	if err := d.Send(context.Background(), mobileUser(), mobileToken()); err != nil {
		t.Fatalf("expected suppressed success, got %v", err)
	}
	if api.calls != 0 {
		t.Errorf("suppression must not invoke the provider, got %d calls", api.calls)
	}
}

func TestSMSDispatchSuppressionWithoutFromNumber(t *testing.T) {
	d := &SMSDispatcher{from: "", message: "Code: %s", suppress: true}

	if err := d.Send(context.Background(), mobileUser(), mobileToken()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSMSDispatchMissingCredentials(t *testing.T) {
	d := &SMSDispatcher{from: "+15550000000", message: "Code: %s"}

	if err := d.Send(context.Background(), mobileUser(), mobileToken()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSMSDispatchSendsFormattedMessage(t *testing.T) {
	api := &mockMessageAPI{}
	d := &SMSDispatcher{api: api, from: "+15550000000", message: "Use this code to sign in: %s"}

	if err := d.Send(context.Background(), mobileUser(), mobileToken()); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if api.lastTo != "+15551234567" {
		t.Errorf("expected normalized recipient, got %q", api.lastTo)
	}
	if api.lastFr != "+15550000000" {
		t.Errorf("unexpected from number: %q", api.lastFr)
	}
	if api.lastBd != "Use this code to sign in: 654321" {
		t.Errorf("unexpected body: %q", api.lastBd)
	}
}

func TestSMSDispatchProviderFailure(t *testing.T) {
	api := &mockMessageAPI{err: errors.New("provider down")}
	d := &SMSDispatcher{api: api, from: "+15550000000", message: "Code: %s"}

	err := d.Send(context.Background(), mobileUser(), mobileToken())
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
	if errors.Is(err, ErrNotConfigured) {
		t.Error("provider failure must not look like missing configuration")
	}
}

type mockVerificationAPI struct {
	lastService string
	lastTo      string
	lastCode    string
	status      string
	err         error
}

func (m *mockVerificationAPI) CreateVerificationCheck(serviceSid string, params *verify.CreateVerificationCheckParams) (*verify.VerifyV2VerificationCheck, error) {
	m.lastService = serviceSid
	if params.To != nil {
		m.lastTo = *params.To
	}
	if params.Code != nil {
		m.lastCode = *params.Code
	}
	if m.err != nil {
		return nil, m.err
	}
	return &verify.VerifyV2VerificationCheck{Status: &m.status}, nil
}

func TestVerifyBridgeApproved(t *testing.T) {
	api := &mockVerificationAPI{status: "approved"}
	b := &VerifyBridge{api: api, serviceSID: "VA123"}

	ok, err := b.Check(context.Background(), mobileUser(), "654321")
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if !ok {
		t.Error("expected approved status to succeed")
	}
	if api.lastService != "VA123" || api.lastTo != "+15551234567" || api.lastCode != "654321" {
		t.Errorf("unexpected check params: %+v", api)
	}
}

func TestVerifyBridgePending(t *testing.T) {
	api := &mockVerificationAPI{status: "pending"}
	b := &VerifyBridge{api: api, serviceSID: "VA123"}

	if ok, _ := b.Check(context.Background(), mobileUser(), "000000"); ok {
		t.Error("expected non-approved status to fail")
	}
}

func TestVerifyBridgeNotConfigured(t *testing.T) {
	b := &VerifyBridge{}

	if _, err := b.Check(context.Background(), mobileUser(), "654321"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestVerifyBridgeProviderFailure(t *testing.T) {
	api := &mockVerificationAPI{err: errors.New("provider down")}
	b := &VerifyBridge{api: api, serviceSID: "VA123"}

	ok, err := b.Check(context.Background(), mobileUser(), "654321")
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
	if ok {
		t.Error("failed check must not report success")
	}
}
