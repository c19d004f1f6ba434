package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/passwordless-api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByAlias(ctx context.Context, aliasType domain.AliasType, value string) (*domain.User, error)
	CreateByAlias(ctx context.Context, aliasType domain.AliasType, value string) (*domain.User, error)
	SetAliasVerified(ctx context.Context, userID int64, aliasType domain.AliasType) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userCols = `id, email, mobile, email_verified, mobile_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Mobile, &u.EmailVerified, &u.MobileVerified, &u.CreatedAt, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepository) FindByAlias(ctx context.Context, aliasType domain.AliasType, value string) (*domain.User, error) {
	col, err := aliasColumn(aliasType)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + userCols + ` FROM users WHERE ` + col + ` = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, value))
}

func (r *userRepository) CreateByAlias(ctx context.Context, aliasType domain.AliasType, value string) (*domain.User, error) {
	col, err := aliasColumn(aliasType)
	if err != nil {
		return nil, err
	}
	q := `
		INSERT INTO users (` + col + `)
		VALUES ($1)
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, value))
}

func (r *userRepository) SetAliasVerified(ctx context.Context, userID int64, aliasType domain.AliasType) error {
	var col string
	switch aliasType {
	case domain.AliasEmail:
		col = "email_verified"
	case domain.AliasMobile:
		col = "mobile_verified"
	default:
		return fmt.Errorf("unknown alias type: %s", aliasType)
	}
	q := `UPDATE users SET ` + col + ` = true, updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func aliasColumn(aliasType domain.AliasType) (string, error) {
	switch aliasType {
	case domain.AliasEmail:
		return "email", nil
	case domain.AliasMobile:
		return "mobile", nil
	default:
		return "", fmt.Errorf("unknown alias type: %s", aliasType)
	}
}
