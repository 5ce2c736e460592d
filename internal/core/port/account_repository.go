package port

import (
	"context"
	"time"

	"github.com/ordexa/catalog-iam/internal/core/domain"
)

// LoginFailure reports the post-increment state of the lockout counter.
type LoginFailure struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// LockoutPolicy bundles the failed-login tunables: how many failures inside
// FailureWindow trigger a lock, and how long the lock lasts.
type LockoutPolicy struct {
	Threshold     int
	FailureWindow time.Duration
	LockDuration  time.Duration
}

// AccountRepository exposes persistence behavior for company accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.AccountStatus) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	// RecordLoginFailure increments the failed-attempt counter in a single
	// statement. A failure older than the policy window restarts the counter
	// at one; reaching the threshold sets locked_until in the same statement.
	// The counter keeps its value while locked and resets on the next success.
	RecordLoginFailure(ctx context.Context, id string, policy LockoutPolicy, at time.Time) (LoginFailure, error)
	ResetLoginFailures(ctx context.Context, id string, loginAt time.Time) error
	// ClearLockout zeroes the failure counter without recording a login.
	ClearLockout(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	SetPendingTwoFactorSecret(ctx context.Context, id string, secret string) error
	// ConfirmTwoFactorSecret promotes the pending secret to the confirmed slot
	// and clears the pending slot in one statement.
	ConfirmTwoFactorSecret(ctx context.Context, id string) error
	ClearTwoFactorSecrets(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status domain.AccountStatus, limit, offset int) ([]domain.Account, error)
}
