package port

import (
	"context"
	"time"

	"github.com/ordexa/catalog-iam/internal/core/domain"
)

// TwoFactorChallengeStore keeps the short-lived bridge between a successful
// password check and the TOTP step.
type TwoFactorChallengeStore interface {
	Save(ctx context.Context, challenge domain.TwoFactorChallenge, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.TwoFactorChallenge, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// Consume deletes the challenge and returns it. Exactly one of two
	// concurrent consumers succeeds; the loser sees a consumed error.
	Consume(ctx context.Context, id string) (*domain.TwoFactorChallenge, error)
	Delete(ctx context.Context, id string) error
}
