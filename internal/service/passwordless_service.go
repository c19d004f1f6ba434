package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/passwordless-api/internal/dispatch"
	"github.com/diagnosis/passwordless-api/internal/domain"
	"github.com/diagnosis/passwordless-api/internal/repo/postgres"
	"github.com/diagnosis/passwordless-api/pkg/auth"
	"github.com/diagnosis/passwordless-api/pkg/config"
	"github.com/diagnosis/passwordless-api/pkg/events"
	"github.com/diagnosis/passwordless-api/pkg/logger"
)

// RiskAssessor gates code requests on a fraud score.
type RiskAssessor interface {
	Enabled() bool
	Assess(ctx context.Context, token, expectedAction string) (bool, error)
}

// VerificationChecker delegates mobile code checks to an external provider.
type VerificationChecker interface {
	Enabled() bool
	Check(ctx context.Context, user *domain.User, code string) (bool, error)
}

type FlowService interface {
	RequestEmailToken(ctx context.Context, req *domain.EmailTokenRequest) error
	RequestMobileToken(ctx context.Context, req *domain.MobileTokenRequest) error
	Exchange(ctx context.Context, req *domain.ExchangeRequest) (*domain.SessionResponse, error)
	RequestVerification(ctx context.Context, userID int64, aliasType domain.AliasType) error
	VerifyAliasByToken(ctx context.Context, userID int64, key string) error
}

type flowService struct {
	tokens    TokenService
	users     postgres.UserRepository
	emailDisp dispatch.Dispatcher
	smsDisp   dispatch.Dispatcher
	bridge    VerificationChecker
	risk      RiskAssessor
	bus       events.Publisher
	cfg       *config.Config
}

func NewFlowService(
	tokens TokenService,
	users postgres.UserRepository,
	emailDisp dispatch.Dispatcher,
	smsDisp dispatch.Dispatcher,
	bridge VerificationChecker,
	riskClient RiskAssessor,
	bus events.Publisher,
	cfg *config.Config,
) FlowService {
	return &flowService{
		tokens:    tokens,
		users:     users,
		emailDisp: emailDisp,
		smsDisp:   smsDisp,
		bridge:    bridge,
		risk:      riskClient,
		bus:       bus,
		cfg:       cfg,
	}
}

func (s *flowService) RequestEmailToken(ctx context.Context, req *domain.EmailTokenRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := s.checkRisk(ctx, req.CaptchaToken); err != nil {
		return err
	}

	return s.requestToken(ctx, domain.AliasEmail, req.Email, s.emailDisp)
}

func (s *flowService) RequestMobileToken(ctx context.Context, req *domain.MobileTokenRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := s.checkRisk(ctx, req.CaptchaToken); err != nil {
		return err
	}

	return s.requestToken(ctx, domain.AliasMobile, req.Mobile, s.smsDisp)
}

func (s *flowService) requestToken(ctx context.Context, aliasType domain.AliasType, aliasValue string, disp dispatch.Dispatcher) error {
	user, err := s.users.FindByAlias(ctx, aliasType, aliasValue)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		if !s.cfg.Passwordless.RegisterNewUsers {
			// Don't reveal whether the alias exists
			logger.DebugContext(ctx, "Token requested for unknown alias", "alias_type", aliasType)
			return nil
		}
		user, err = s.users.CreateByAlias(ctx, aliasType, aliasValue)
		if err != nil {
			return fmt.Errorf("failed to register user: %w", err)
		}
	}

	token, err := s.tokens.Issue(ctx, user, aliasType, domain.PurposeAuth)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	if err := disp.Send(ctx, user, token); err != nil {
		logger.ErrorContext(ctx, "Failed to dispatch callback token", "error", err, "user_id", user.ID)
		return fmt.Errorf("failed to send token: %w", err)
	}

	if err := s.bus.Publish(ctx, events.SubjectTokenIssued, events.TokenIssuedEvent{
		UserID:    user.ID,
		AliasType: string(aliasType),
		Purpose:   string(domain.PurposeAuth),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish token event", "error", err)
	}

	return nil
}

func (s *flowService) Exchange(ctx context.Context, req *domain.ExchangeRequest) (*domain.SessionResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Mobile sign-ins go through the provider's verification service when
	// one is configured; the code never touched local storage.
	if req.Mobile != "" && s.bridge.Enabled() {
		return s.exchangeViaBridge(ctx, req)
	}

	if !s.tokens.ValidateAge(ctx, req.Token) {
		return nil, fmt.Errorf("invalid or expired token")
	}

	user, token := s.tokens.AuthenticateByKey(ctx, req.Token)
	if user == nil {
		return nil, fmt.Errorf("invalid or expired token")
	}

	// A successful round-trip proves possession of the contact point.
	if s.tokens.VerifyAlias(ctx, user, token) {
		s.publishAliasVerified(ctx, user.ID, token.AliasType)
	}

	return s.newSession(ctx, user)
}

func (s *flowService) exchangeViaBridge(ctx context.Context, req *domain.ExchangeRequest) (*domain.SessionResponse, error) {
	user, err := s.users.FindByAlias(ctx, domain.AliasMobile, req.Mobile)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("invalid or expired token")
	}

	approved, err := s.bridge.Check(ctx, user, req.Token)
	if err != nil {
		logger.DebugContext(ctx, "Verification bridge check failed", "error", err, "user_id", user.ID)
		return nil, fmt.Errorf("invalid or expired token")
	}
	if !approved {
		return nil, fmt.Errorf("invalid or expired token")
	}

	if err := s.users.SetAliasVerified(ctx, user.ID, domain.AliasMobile); err != nil {
		logger.DebugContext(ctx, "Failed to persist verified mobile", "error", err, "user_id", user.ID)
	} else {
		user.MobileVerified = true
		s.publishAliasVerified(ctx, user.ID, domain.AliasMobile)
	}

	return s.newSession(ctx, user)
}

func (s *flowService) RequestVerification(ctx context.Context, userID int64, aliasType domain.AliasType) error {
	if !aliasType.Valid() {
		return fmt.Errorf("unknown alias type: %s", aliasType)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user not found")
	}

	disp := s.emailDisp
	aliasValue, verified := user.Email, user.EmailVerified
	if aliasType == domain.AliasMobile {
		disp = s.smsDisp
		aliasValue, verified = user.Mobile, user.MobileVerified
	}
	if aliasValue == "" {
		return fmt.Errorf("no %s on account", aliasType)
	}
	if verified {
		return fmt.Errorf("%s is already verified", aliasType)
	}

	token, err := s.tokens.Issue(ctx, user, aliasType, domain.PurposeVerify)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	if err := disp.Send(ctx, user, token); err != nil {
		logger.ErrorContext(ctx, "Failed to dispatch verification token", "error", err, "user_id", user.ID)
		return fmt.Errorf("failed to send token: %w", err)
	}

	if err := s.bus.Publish(ctx, events.SubjectTokenIssued, events.TokenIssuedEvent{
		UserID:    user.ID,
		AliasType: string(aliasType),
		Purpose:   string(domain.PurposeVerify),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish token event", "error", err)
	}

	return nil
}

func (s *flowService) VerifyAliasByToken(ctx context.Context, userID int64, key string) error {
	if !s.tokens.ValidateAge(ctx, key) {
		return fmt.Errorf("invalid or expired token")
	}

	token, err := s.tokens.ConsumeVerify(ctx, key)
	if err != nil || token == nil || token.UserID != userID {
		return fmt.Errorf("invalid or expired token")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return fmt.Errorf("invalid or expired token")
	}

	if !s.tokens.VerifyAlias(ctx, user, token) {
		return fmt.Errorf("alias could not be verified")
	}

	s.publishAliasVerified(ctx, user.ID, token.AliasType)
	return nil
}

func (s *flowService) newSession(ctx context.Context, user *domain.User) (*domain.SessionResponse, error) {
	verified := user.EmailVerified || user.MobileVerified
	accessToken, err := auth.NewAccessToken(user.ID, user.Email, user.Mobile, verified,
		s.cfg.Auth.JWTSecret, s.cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	if err := s.bus.Publish(ctx, events.SubjectSignIn, events.SignInEvent{UserID: user.ID}); err != nil {
		logger.WarnContext(ctx, "Failed to publish signin event", "error", err)
	}

	return &domain.SessionResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.cfg.Auth.AccessTokenTTL.Seconds()),
		User:        user.ToUserInfo(),
	}, nil
}

func (s *flowService) checkRisk(ctx context.Context, captchaToken string) error {
	if !s.risk.Enabled() {
		return nil
	}
	ok, err := s.risk.Assess(ctx, captchaToken, "login")
	if err != nil {
		logger.DebugContext(ctx, "Risk assessment error", "error", err)
		return fmt.Errorf("captcha check failed")
	}
	if !ok {
		return fmt.Errorf("captcha check failed")
	}
	return nil
}

func (s *flowService) publishAliasVerified(ctx context.Context, userID int64, aliasType domain.AliasType) {
	if err := s.bus.Publish(ctx, events.SubjectAliasVerified, events.AliasVerifiedEvent{
		UserID:    userID,
		AliasType: string(aliasType),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish alias verified event", "error", err)
	}
}
