package port

import (
	"context"
	"time"

	"github.com/ordexa/catalog-iam/internal/core/domain"
)

// TokenRepository manages single-use action token records.
type TokenRepository interface {
	Create(ctx context.Context, token domain.ActionToken) error
	GetByHash(ctx context.Context, hash string, purpose domain.TokenPurpose) (*domain.ActionToken, error)
	// Consume atomically marks the token used and returns it. A token that is
	// missing, expired, revoked, or already used yields an error; exactly one
	// of two concurrent consumers succeeds.
	Consume(ctx context.Context, hash string, purpose domain.TokenPurpose, at time.Time) (*domain.ActionToken, error)
	// RevokeActiveForAccount invalidates all outstanding tokens of the given
	// purpose, so a fresh issue supersedes earlier ones.
	RevokeActiveForAccount(ctx context.Context, accountID string, purpose domain.TokenPurpose, at time.Time) (int, error)
}
