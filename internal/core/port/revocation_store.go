package port

import (
	"context"
	"time"
)

// SessionRevocationStore is the shared registry of revoked bearer token ids.
// All validators consult the same store, so a revocation is visible to every
// instance as soon as the write returns.
type SessionRevocationStore interface {
	MarkSessionRevoked(ctx context.Context, jti string, reason string, ttl time.Duration) error
	IsSessionRevoked(ctx context.Context, jti string) (bool, string, error)
	ClearSessionRevocation(ctx context.Context, jti string) error
}
