package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/diagnosis/passwordless-api/internal/alias"
	"github.com/diagnosis/passwordless-api/internal/demo"
	"github.com/diagnosis/passwordless-api/internal/domain"
)

// ---------- Mocks ----------

type mockTokenRepo struct {
	nextID  int64
	tokens  []*domain.CallbackToken
	now     func() time.Time
	createN int
}

func newMockTokenRepo() *mockTokenRepo {
	return &mockTokenRepo{nextID: 1, now: time.Now}
}

func (m *mockTokenRepo) Create(_ context.Context, token *domain.CallbackToken) (*domain.CallbackToken, error) {
	t := *token
	t.ID = m.nextID
	t.IsActive = true
	t.CreatedAt = m.now()
	m.nextID++
	m.createN++
	m.tokens = append(m.tokens, &t)
	return &t, nil
}

func (m *mockTokenRepo) FindActiveByKey(_ context.Context, key string) (*domain.CallbackToken, error) {
	for _, t := range m.tokens {
		if t.Key == key && t.IsActive {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockTokenRepo) ConsumeActive(_ context.Context, key string, purpose domain.TokenPurpose) (*domain.CallbackToken, error) {
	for _, t := range m.tokens {
		if t.Key == key && t.IsActive && t.Purpose == purpose {
			t.IsActive = false
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockTokenRepo) Deactivate(_ context.Context, id int64) error {
	for _, t := range m.tokens {
		if t.ID == id {
			t.IsActive = false
		}
	}
	return nil
}

func (m *mockTokenRepo) FirstByUser(_ context.Context, userID int64) (*domain.CallbackToken, error) {
	for _, t := range m.tokens {
		if t.UserID == userID {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockTokenRepo) DeleteExpired(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type mockUserRepo struct {
	nextID   int64
	users    map[int64]*domain.User
	verified []domain.AliasType
}

func newMockUserRepo(users ...*domain.User) *mockUserRepo {
	m := &mockUserRepo{nextID: 100, users: make(map[int64]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) FindByAlias(_ context.Context, aliasType domain.AliasType, value string) (*domain.User, error) {
	for _, u := range m.users {
		if aliasType == domain.AliasEmail && u.Email == value {
			return u, nil
		}
		if aliasType == domain.AliasMobile && u.Mobile == value {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) CreateByAlias(_ context.Context, aliasType domain.AliasType, value string) (*domain.User, error) {
	u := &domain.User{ID: m.nextID}
	m.nextID++
	if aliasType == domain.AliasEmail {
		u.Email = value
	} else {
		u.Mobile = value
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) SetAliasVerified(_ context.Context, userID int64, aliasType domain.AliasType) error {
	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	if aliasType == domain.AliasEmail {
		u.EmailVerified = true
	} else {
		u.MobileVerified = true
	}
	m.verified = append(m.verified, aliasType)
	return nil
}

// ---------- Tests ----------

func newTestTokenService(tokens *mockTokenRepo, users *mockUserRepo, demoKeys map[int64]string, expiry time.Duration) TokenService {
	return NewTokenService(tokens, users, alias.Default(), demo.NewRegistry(demoKeys), expiry)
}

func TestIssueGeneratesNumericKey(t *testing.T) {
	tokens := newMockTokenRepo()
	users := newMockUserRepo()
	svc := newTestTokenService(tokens, users, nil, 15*time.Minute)

	user := &domain.User{ID: 1, Email: "a@example.com"}
	token, err := svc.Issue(context.Background(), user, domain.AliasEmail, domain.PurposeAuth)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if !regexp.MustCompile(`^\d{6}$`).MatchString(token.Key) {
		t.Errorf("expected 6-digit key, got %q", token.Key)
	}
	if token.Alias != "a@example.com" {
		t.Errorf("expected alias snapshot, got %q", token.Alias)
	}
	if token.AliasType != domain.AliasEmail || token.Purpose != domain.PurposeAuth {
		t.Errorf("unexpected token binding: %+v", token)
	}
}

func TestIssueUnknownAliasType(t *testing.T) {
	svc := newTestTokenService(newMockTokenRepo(), newMockUserRepo(), nil, 15*time.Minute)

	_, err := svc.Issue(context.Background(), &domain.User{ID: 1}, domain.AliasType("pager"), domain.PurposeAuth)
	if err == nil {
		t.Fatal("expected error for unknown alias type")
	}
}

func TestIssueDemoUserFixedKey(t *testing.T) {
	tokens := newMockTokenRepo()
	users := newMockUserRepo()
	svc := newTestTokenService(tokens, users, map[int64]string{7: "111222"}, 15*time.Minute)

	user := &domain.User{ID: 7, Email: "demo@example.com"}

	first, err := svc.Issue(context.Background(), user, domain.AliasEmail, domain.PurposeAuth)
	if err != nil {
		t.Fatalf("first Issue returned error: %v", err)
	}
	if first.Key != "111222" {
		t.Errorf("expected fixed demo key, got %q", first.Key)
	}

	second, err := svc.Issue(context.Background(), user, domain.AliasEmail, domain.PurposeAuth)
	if err != nil {
		t.Fatalf("second Issue returned error: %v", err)
	}
	if second.Key != "111222" {
		t.Errorf("expected same demo key on reissue, got %q", second.Key)
	}
	if tokens.createN != 1 {
		t.Errorf("expected a single created row for demo user, got %d", tokens.createN)
	}
}

func TestAuthenticateByKeySingleUse(t *testing.T) {
	tokens := newMockTokenRepo()
	user := &domain.User{ID: 1, Email: "a@example.com"}
	users := newMockUserRepo(user)
	svc := newTestTokenService(tokens, users, nil, 15*time.Minute)

	token, err := svc.Issue(context.Background(), user, domain.AliasEmail, domain.PurposeAuth)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	got, gotToken := svc.AuthenticateByKey(context.Background(), token.Key)
	if got == nil || got.ID != 1 {
		t.Fatalf("expected user 1, got %+v", got)
	}
	if gotToken == nil || gotToken.IsActive {
		t.Errorf("expected consumed token, got %+v", gotToken)
	}

	// Second use fails
	if again, _ := svc.AuthenticateByKey(context.Background(), token.Key); again != nil {
		t.Errorf("expected nil user on reused token, got %+v", again)
	}
}

func TestAuthenticateByKeyMissingUser(t *testing.T) {
	tokens := newMockTokenRepo()
	users := newMockUserRepo() // user 1 does not exist
	svc := newTestTokenService(tokens, users, nil, 15*time.Minute)

	token, _ := svc.Issue(context.Background(), &domain.User{ID: 1, Email: "a@example.com"}, domain.AliasEmail, domain.PurposeAuth)

	if got, _ := svc.AuthenticateByKey(context.Background(), token.Key); got != nil {
		t.Errorf("expected nil user when user row is missing, got %+v", got)
	}
}

func TestAuthenticateByKeyIgnoresVerifyTokens(t *testing.T) {
	tokens := newMockTokenRepo()
	user := &domain.User{ID: 1, Email: "a@example.com"}
	users := newMockUserRepo(user)
	svc := newTestTokenService(tokens, users, nil, 15*time.Minute)

	token, _ := svc.Issue(context.Background(), user, domain.AliasEmail, domain.PurposeVerify)

	if got, _ := svc.AuthenticateByKey(context.Background(), token.Key); got != nil {
		t.Errorf("verify-purpose token must not authenticate, got %+v", got)
	}
}

func TestValidateAge(t *testing.T) {
	tokens := newMockTokenRepo()
	users := newMockUserRepo()
	svc := newTestTokenService(tokens, users, map[int64]string{9: "999999"}, 10*time.Minute)

	// Fresh token is valid
	tokens.now = time.Now
	fresh, _ := svc.Issue(context.Background(), &domain.User{ID: 1, Email: "a@example.com"}, domain.AliasEmail, domain.PurposeAuth)
	if !svc.ValidateAge(context.Background(), fresh.Key) {
		t.Error("expected fresh token to validate")
	}

	// Stale token is invalid and gets deactivated
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _ := svc.Issue(context.Background(), &domain.User{ID: 2, Email: "b@example.com"}, domain.AliasEmail, domain.PurposeAuth)
	if svc.ValidateAge(context.Background(), stale.Key) {
		t.Error("expected stale token to fail validation")
	}
	if found, _ := tokens.FindActiveByKey(context.Background(), stale.Key); found != nil {
		t.Error("expected stale token to be deactivated")
	}

	// Demo user bypasses expiry
	demoToken, _ := svc.Issue(context.Background(), &domain.User{ID: 9, Email: "demo@example.com"}, domain.AliasEmail, domain.PurposeAuth)
	if !svc.ValidateAge(context.Background(), demoToken.Key) {
		t.Error("expected demo token to bypass expiry")
	}

	// Unknown key is invalid
	if svc.ValidateAge(context.Background(), "000000") {
		t.Error("expected unknown key to fail validation")
	}
}

func TestVerifyAlias(t *testing.T) {
	user := &domain.User{ID: 1, Email: "a@x.com", Mobile: "+15551234567"}
	users := newMockUserRepo(user)
	svc := newTestTokenService(newMockTokenRepo(), users, nil, 15*time.Minute)

	// Mismatched alias: no mutation
	mismatch := &domain.CallbackToken{UserID: 1, AliasType: domain.AliasEmail, Alias: "b@x.com"}
	if svc.VerifyAlias(context.Background(), user, mismatch) {
		t.Error("expected mismatched alias to fail")
	}
	if user.EmailVerified {
		t.Error("verified flag must not change on mismatch")
	}

	// Unknown alias type: no mutation
	unknown := &domain.CallbackToken{UserID: 1, AliasType: domain.AliasType("pager"), Alias: "a@x.com"}
	if svc.VerifyAlias(context.Background(), user, unknown) {
		t.Error("expected unknown alias type to fail")
	}

	// Exact match flips the flag and persists
	match := &domain.CallbackToken{UserID: 1, AliasType: domain.AliasEmail, Alias: "a@x.com"}
	if !svc.VerifyAlias(context.Background(), user, match) {
		t.Fatal("expected matching alias to verify")
	}
	if !user.EmailVerified {
		t.Error("expected in-memory verified flag to be set")
	}
	if len(users.verified) != 1 || users.verified[0] != domain.AliasEmail {
		t.Errorf("expected persisted email verification, got %v", users.verified)
	}
}
