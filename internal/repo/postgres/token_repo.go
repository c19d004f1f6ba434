package postgres

import (
	"context"
	"time"

	"github.com/diagnosis/passwordless-api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokenRepository interface {
	Create(ctx context.Context, token *domain.CallbackToken) (*domain.CallbackToken, error)
	FindActiveByKey(ctx context.Context, key string) (*domain.CallbackToken, error)
	// ConsumeActive deactivates an active token of the given purpose and
	// returns it in one statement, so two concurrent callers cannot both
	// consume it.
	ConsumeActive(ctx context.Context, key string, purpose domain.TokenPurpose) (*domain.CallbackToken, error)
	Deactivate(ctx context.Context, id int64) error
	FirstByUser(ctx context.Context, userID int64) (*domain.CallbackToken, error)
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type tokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepository{pool: pool}
}

const tokenCols = `id, user_id, key, alias_type, alias, purpose, is_active, created_at`

func scanToken(row pgx.Row) (*domain.CallbackToken, error) {
	var t domain.CallbackToken
	err := row.Scan(&t.ID, &t.UserID, &t.Key, &t.AliasType, &t.Alias, &t.Purpose, &t.IsActive, &t.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepository) Create(ctx context.Context, token *domain.CallbackToken) (*domain.CallbackToken, error) {
	const q = `
		INSERT INTO callback_tokens (user_id, key, alias_type, alias, purpose, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING ` + tokenCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanToken(r.pool.QueryRow(ctx, q,
		token.UserID, token.Key, token.AliasType, token.Alias, token.Purpose))
}

func (r *tokenRepository) FindActiveByKey(ctx context.Context, key string) (*domain.CallbackToken, error) {
	const q = `
		SELECT ` + tokenCols + `
		FROM callback_tokens
		WHERE key = $1 AND is_active
		ORDER BY id
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanToken(r.pool.QueryRow(ctx, q, key))
}

func (r *tokenRepository) ConsumeActive(ctx context.Context, key string, purpose domain.TokenPurpose) (*domain.CallbackToken, error) {
	const q = `
		UPDATE callback_tokens
		SET is_active = false
		WHERE id = (
			SELECT id FROM callback_tokens
			WHERE key = $1 AND is_active AND purpose = $2
			ORDER BY id
			LIMIT 1
		)
		RETURNING ` + tokenCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanToken(r.pool.QueryRow(ctx, q, key, purpose))
}

func (r *tokenRepository) Deactivate(ctx context.Context, id int64) error {
	const q = `UPDATE callback_tokens SET is_active = false WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *tokenRepository) FirstByUser(ctx context.Context, userID int64) (*domain.CallbackToken, error) {
	const q = `
		SELECT ` + tokenCols + `
		FROM callback_tokens
		WHERE user_id = $1
		ORDER BY id
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanToken(r.pool.QueryRow(ctx, q, userID))
}

func (r *tokenRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	const q = `
		DELETE FROM callback_tokens
		WHERE NOT is_active AND created_at < now() - make_interval(secs => $1)`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, olderThan.Seconds())
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
