package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
	"github.com/ordexa/catalog-iam/internal/repository"
)

// TokenRepository implements port.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository wires a PostgreSQL-backed action token repository.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{
		pool:    pool,
		exec:    pool,
		builder: newBuilder(),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	if tx == nil {
		return r
	}
	return &TokenRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

var tokenColumns = []string{
	"id",
	"account_id",
	"token_hash",
	"purpose",
	"ip",
	"user_agent",
	"created_at",
	"expires_at",
	"used_at",
	"revoked_at",
	"metadata",
}

// Create inserts a new action token row.
func (r *TokenRepository) Create(ctx context.Context, token domain.ActionToken) error {
	query := r.builder.Insert("accounts.action_tokens").
		Columns(tokenColumns...).
		Values(
			token.ID,
			token.AccountID,
			token.TokenHash,
			token.Purpose,
			token.IP,
			token.UserAgent,
			token.CreatedAt,
			token.ExpiresAt,
			token.UsedAt,
			token.RevokedAt,
			token.Metadata,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert action token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert action token: %w", err)
	}

	return nil
}

func (r *TokenRepository) scanToken(row pgx.Row) (*domain.ActionToken, error) {
	var token domain.ActionToken
	if err := row.Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&token.Purpose,
		&token.IP,
		&token.UserAgent,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.RevokedAt,
		&token.Metadata,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan action token: %w", err)
	}
	return &token, nil
}

// GetByHash retrieves an action token by its stored hash and purpose.
func (r *TokenRepository) GetByHash(ctx context.Context, hash string, purpose domain.TokenPurpose) (*domain.ActionToken, error) {
	stmt, args, err := r.builder.
		Select(tokenColumns...).
		From("accounts.action_tokens").
		Where(squirrel.Eq{"token_hash": hash, "purpose": purpose}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select action token sql: %w", err)
	}

	return r.scanToken(r.exec.QueryRow(ctx, stmt, args...))
}

// Consume marks the token used in a single conditional update. Zero rows
// affected means another consumer won, the token expired, or it never
// existed; the follow-up lookup discriminates the cases.
func (r *TokenRepository) Consume(ctx context.Context, hash string, purpose domain.TokenPurpose, at time.Time) (*domain.ActionToken, error) {
	const stmt = `
		UPDATE accounts.action_tokens
		   SET used_at = $1
		 WHERE token_hash = $2
		   AND purpose = $3
		   AND used_at IS NULL
		   AND revoked_at IS NULL
		   AND expires_at > $1
		RETURNING id, account_id, token_hash, purpose, ip, user_agent, created_at, expires_at, used_at, revoked_at, metadata
	`

	token, err := r.scanToken(r.exec.QueryRow(ctx, stmt, at, hash, purpose))
	if err == nil {
		return token, nil
	}
	if err != repository.ErrNotFound {
		return nil, err
	}

	existing, lookupErr := r.GetByHash(ctx, hash, purpose)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing.UsedAt != nil || existing.RevokedAt != nil {
		return nil, repository.ErrConsumed
	}
	if existing.IsExpired(at) {
		return nil, repository.ErrExpired
	}
	return nil, repository.ErrNotFound
}

// RevokeActiveForAccount invalidates all outstanding tokens of the purpose.
func (r *TokenRepository) RevokeActiveForAccount(ctx context.Context, accountID string, purpose domain.TokenPurpose, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update("accounts.action_tokens").
		Set("revoked_at", at).
		Where(squirrel.Eq{"account_id": accountID, "purpose": purpose}).
		Where("used_at IS NULL").
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke action tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke action tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
