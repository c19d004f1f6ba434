package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/diagnosis/passwordless-api/internal/alias"
	"github.com/diagnosis/passwordless-api/internal/demo"
	"github.com/diagnosis/passwordless-api/internal/domain"
	"github.com/diagnosis/passwordless-api/internal/repo/postgres"
	"github.com/diagnosis/passwordless-api/pkg/logger"
)

// TokenService owns the callback-token lifecycle: issue, authenticate,
// age validation, alias verification. Authentication and validation
// collapse every failure cause to an empty result; the reasons only show
// up in debug logs.
type TokenService interface {
	Issue(ctx context.Context, user *domain.User, aliasType domain.AliasType, purpose domain.TokenPurpose) (*domain.CallbackToken, error)
	AuthenticateByKey(ctx context.Context, key string) (*domain.User, *domain.CallbackToken)
	ConsumeVerify(ctx context.Context, key string) (*domain.CallbackToken, error)
	ValidateAge(ctx context.Context, key string) bool
	VerifyAlias(ctx context.Context, user *domain.User, token *domain.CallbackToken) bool
}

type tokenService struct {
	tokens   postgres.TokenRepository
	users    postgres.UserRepository
	bindings *alias.Bindings
	registry *demo.Registry
	expiry   time.Duration
}

func NewTokenService(
	tokens postgres.TokenRepository,
	users postgres.UserRepository,
	bindings *alias.Bindings,
	registry *demo.Registry,
	expiry time.Duration,
) TokenService {
	return &tokenService{
		tokens:   tokens,
		users:    users,
		bindings: bindings,
		registry: registry,
		expiry:   expiry,
	}
}

func (s *tokenService) Issue(ctx context.Context, user *domain.User, aliasType domain.AliasType, purpose domain.TokenPurpose) (*domain.CallbackToken, error) {
	binding, ok := s.bindings.Lookup(aliasType)
	if !ok {
		return nil, fmt.Errorf("unknown alias type: %s", aliasType)
	}
	aliasValue := binding.Value(user)

	// Demo accounts reuse their fixed key instead of a random code.
	if demoKey, ok := s.registry.Key(user.ID); ok {
		existing, err := s.tokens.FirstByUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up demo token: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
		return s.tokens.Create(ctx, &domain.CallbackToken{
			UserID:    user.ID,
			Key:       demoKey,
			AliasType: aliasType,
			Alias:     aliasValue,
			Purpose:   purpose,
		})
	}

	key, err := generateTokenKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}

	return s.tokens.Create(ctx, &domain.CallbackToken{
		UserID:    user.ID,
		Key:       key,
		AliasType: aliasType,
		Alias:     aliasValue,
		Purpose:   purpose,
	})
}

func (s *tokenService) AuthenticateByKey(ctx context.Context, key string) (*domain.User, *domain.CallbackToken) {
	token, err := s.tokens.ConsumeActive(ctx, key, domain.PurposeAuth)
	if err != nil {
		logger.DebugContext(ctx, "Token auth failed: storage error", "error", err)
		return nil, nil
	}
	if token == nil {
		logger.DebugContext(ctx, "Challenged with a callback token that doesn't exist")
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, token.UserID)
	if err != nil {
		logger.DebugContext(ctx, "Token auth failed: user lookup error", "error", err)
		return nil, nil
	}
	if user == nil {
		logger.DebugContext(ctx, "Authenticated user somehow doesn't exist", "user_id", token.UserID)
		return nil, nil
	}

	return user, token
}

func (s *tokenService) ConsumeVerify(ctx context.Context, key string) (*domain.CallbackToken, error) {
	return s.tokens.ConsumeActive(ctx, key, domain.PurposeVerify)
}

func (s *tokenService) ValidateAge(ctx context.Context, key string) bool {
	token, err := s.tokens.FindActiveByKey(ctx, key)
	if err != nil {
		logger.DebugContext(ctx, "Token age check failed: storage error", "error", err)
		return false
	}
	if token == nil {
		return false
	}

	// Demo tokens never expire.
	if s.registry.IsDemo(token.UserID) {
		return true
	}

	if time.Since(token.CreatedAt) <= s.expiry {
		return true
	}

	if err := s.tokens.Deactivate(ctx, token.ID); err != nil {
		logger.DebugContext(ctx, "Failed to deactivate expired token", "error", err, "token_id", token.ID)
	}
	return false
}

func (s *tokenService) VerifyAlias(ctx context.Context, user *domain.User, token *domain.CallbackToken) bool {
	binding, ok := s.bindings.Lookup(token.AliasType)
	if !ok {
		return false
	}
	if token.Alias != binding.Value(user) {
		return false
	}

	if err := s.users.SetAliasVerified(ctx, user.ID, token.AliasType); err != nil {
		logger.DebugContext(ctx, "Failed to persist verified alias", "error", err, "user_id", user.ID)
		return false
	}
	binding.SetVerified(user)
	return true
}

func generateTokenKey() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
