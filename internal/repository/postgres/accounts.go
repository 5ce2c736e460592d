package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
	"github.com/ordexa/catalog-iam/internal/repository"
)

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository wires a PostgreSQL-backed account repository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{
		pool:    pool,
		exec:    pool,
		builder: newBuilder(),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

var accountColumns = []string{
	"id",
	"email",
	"company_name",
	"company_number",
	"contact_name",
	"password_hash",
	"role",
	"status",
	"email_verified",
	"failed_login_attempts",
	"last_failed_login",
	"locked_until",
	"two_factor_secret",
	"two_factor_pending_secret",
	"last_login",
	"registered_at",
	"updated_at",
}

// Create inserts a new account row.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	query := r.builder.Insert("accounts.accounts").
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Email,
			account.CompanyName,
			account.CompanyNumber,
			account.ContactName,
			account.PasswordHash,
			account.Role,
			account.Status,
			account.EmailVerified,
			account.FailedLoginAttempts,
			account.LastFailedLogin,
			account.LockedUntil,
			account.TwoFactorSecret,
			account.TwoFactorPending,
			account.LastLogin,
			account.RegisteredAt,
			account.UpdatedAt,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account       domain.Account
		rawRole       string
		rawStatus     string
		lastFailed    *time.Time
		lockedUntil   *time.Time
		lastLogin     *time.Time
		totpSecret    sql.NullString
		pendingSecret sql.NullString
	)

	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.CompanyName,
		&account.CompanyNumber,
		&account.ContactName,
		&account.PasswordHash,
		&rawRole,
		&rawStatus,
		&account.EmailVerified,
		&account.FailedLoginAttempts,
		&lastFailed,
		&lockedUntil,
		&totpSecret,
		&pendingSecret,
		&lastLogin,
		&account.RegisteredAt,
		&account.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	role, ok := domain.ParseAccountRole(rawRole)
	if !ok {
		return nil, fmt.Errorf("scan account: unknown role %q", rawRole)
	}
	status, ok := domain.ParseAccountStatus(rawStatus)
	if !ok {
		return nil, fmt.Errorf("scan account: unknown status %q", rawStatus)
	}
	account.Role = role
	account.Status = status

	account.LastFailedLogin = lastFailed
	account.LockedUntil = lockedUntil
	account.LastLogin = lastLogin
	if totpSecret.Valid {
		val := totpSecret.String
		account.TwoFactorSecret = &val
	}
	if pendingSecret.Valid {
		val := pendingSecret.String
		account.TwoFactorPending = &val
	}

	return &account, nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("accounts.accounts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	return r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail retrieves an account by its normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("accounts.accounts").
		Where(squirrel.Eq{"email": domain.NormalizeEmail(email)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by email sql: %w", err)
	}

	return r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// UpdateStatus moves the account from one status to another. The previous
// status is part of the predicate, so a concurrent transition loses with
// ErrStatusConflict instead of silently overwriting.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, from, to domain.AccountStatus) error {
	stmt, args, err := r.builder.Update("accounts.accounts").
		Set("status", to).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account status sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		if _, lookupErr := r.GetByID(ctx, id); lookupErr != nil {
			return lookupErr
		}
		return repository.ErrStatusConflict
	}

	return nil
}

// MarkEmailVerified flags the email as confirmed.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("accounts.accounts").
		Set("email_verified", true).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark email verified sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordLoginFailure increments the failure counter in a single statement so
// concurrent failures cannot lose increments. Failures whose predecessor is
// older than the policy window restart the counter at one; crossing the
// threshold sets locked_until in the same statement. The counter keeps its
// value while locked and only resets on the next successful login.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, id string, policy port.LockoutPolicy, at time.Time) (port.LoginFailure, error) {
	windowStart := at.Add(-policy.FailureWindow)
	lockedUntil := at.Add(policy.LockDuration)

	// The CASE expressions all read the pre-update row, so the counter used
	// for the lock decision is the same one being written.
	const stmt = `
		UPDATE accounts.accounts
		   SET failed_login_attempts = CASE
					WHEN last_failed_login IS NULL OR last_failed_login < $2 THEN 1
					ELSE failed_login_attempts + 1
				END,
		       last_failed_login = $3,
		       locked_until = CASE
					WHEN (CASE
						WHEN last_failed_login IS NULL OR last_failed_login < $2 THEN 1
						ELSE failed_login_attempts + 1
					END) >= $4 THEN $5::timestamptz
					ELSE locked_until
				END,
		       updated_at = $3
		 WHERE id = $1
		RETURNING failed_login_attempts, locked_until
	`

	var (
		attempts int
		locked   *time.Time
	)
	if err := r.exec.QueryRow(ctx, stmt, id, windowStart, at, policy.Threshold, lockedUntil).Scan(&attempts, &locked); err != nil {
		if err == pgx.ErrNoRows {
			return port.LoginFailure{}, repository.ErrNotFound
		}
		return port.LoginFailure{}, fmt.Errorf("record login failure: %w", err)
	}

	return port.LoginFailure{FailedAttempts: attempts, LockedUntil: locked}, nil
}

// ResetLoginFailures zeroes the counter and records a successful login.
func (r *AccountRepository) ResetLoginFailures(ctx context.Context, id string, loginAt time.Time) error {
	stmt, args, err := r.builder.Update("accounts.accounts").
		Set("failed_login_attempts", 0).
		Set("last_failed_login", nil).
		Set("locked_until", nil).
		Set("last_login", loginAt).
		Set("updated_at", loginAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset login failures sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ClearLockout zeroes the failure counter and lockout without touching last_login.
func (r *AccountRepository) ClearLockout(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("accounts.accounts").
		Set("failed_login_attempts", 0).
		Set("last_failed_login", nil).
		Set("locked_until", nil).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear lockout sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword updates the password hash and change timestamp.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("accounts.accounts").
		Set("password_hash", passwordHash).
		Set("updated_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetPendingTwoFactorSecret stores a not-yet-confirmed TOTP secret.
func (r *AccountRepository) SetPendingTwoFactorSecret(ctx context.Context, id string, secret string) error {
	stmt, args, err := r.builder.Update("accounts.accounts").
		Set("two_factor_pending_secret", secret).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set pending two-factor secret sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set pending two-factor secret: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ConfirmTwoFactorSecret promotes the pending secret to the confirmed slot in
// one statement; an account without a pending secret is left untouched.
func (r *AccountRepository) ConfirmTwoFactorSecret(ctx context.Context, id string) error {
	const stmt = `
		UPDATE accounts.accounts
		   SET two_factor_secret = two_factor_pending_secret,
		       two_factor_pending_secret = NULL,
		       updated_at = $2
		 WHERE id = $1
		   AND two_factor_pending_secret IS NOT NULL
	`

	ct, err := r.exec.Exec(ctx, stmt, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("confirm two-factor secret: %w", err)
	}

	if ct.RowsAffected() == 0 {
		if _, lookupErr := r.GetByID(ctx, id); lookupErr != nil {
			return lookupErr
		}
		return repository.ErrStatusConflict
	}

	return nil
}

// ClearTwoFactorSecrets removes both confirmed and pending secrets.
func (r *AccountRepository) ClearTwoFactorSecrets(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("accounts.accounts").
		Set("two_factor_secret", nil).
		Set("two_factor_pending_secret", nil).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear two-factor secrets sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("clear two-factor secrets: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListByStatus returns accounts in the given status ordered by registration time.
func (r *AccountRepository) ListByStatus(ctx context.Context, status domain.AccountStatus, limit, offset int) ([]domain.Account, error) {
	query := r.builder.Select(accountColumns...).
		From("accounts.accounts").
		Where(squirrel.Eq{"status": status}).
		OrderBy("registered_at ASC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	if offset > 0 {
		query = query.Offset(uint64(offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list accounts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
