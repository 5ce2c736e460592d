package port

import (
	"context"
	"time"
)

// RateLimitStore persists attempt timestamps for sliding-window limits.
// Identifiers are caller-defined, typically "<rule>:<client ip>".
type RateLimitStore interface {
	// RecordAttempt stores one attempt at the given instant.
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error

	// CountAttempts reports how many attempts fall inside the window ending
	// at reference.
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)

	// TrimWindow drops attempts older than the window ending at reference.
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error

	// OldestAttempt returns the earliest attempt still inside the window,
	// used to compute a Retry-After hint.
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
