package domain

import "time"

// TokenPurpose discriminates what an action token is allowed to redeem.
type TokenPurpose string

const (
	TokenPurposeEmailVerification TokenPurpose = "email_verification"
	TokenPurposePasswordReset     TokenPurpose = "password_reset"
)

// ActionToken represents a single-use, TTL-bounded token stored as a hash.
// The raw value is handed to the account holder once and never persisted.
type ActionToken struct {
	ID        string
	AccountID string
	TokenHash string
	Purpose   TokenPurpose
	IP        *string
	UserAgent *string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
	RevokedAt *time.Time
	Metadata  map[string]any
}

// IsExpired reports whether the token can still be redeemed.
func (t ActionToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsActive returns true when the token may still be presented.
func (t ActionToken) IsActive(at time.Time) bool {
	if t.UsedAt != nil || t.RevokedAt != nil {
		return false
	}
	return !t.IsExpired(at)
}

// Consume marks the token as used.
// Returns true when the token transitions from unused to used.
func (t *ActionToken) Consume(at time.Time) bool {
	if t.UsedAt != nil {
		return false
	}
	timeCopy := at
	t.UsedAt = &timeCopy
	return true
}

// Revoke marks the token as revoked.
func (t *ActionToken) Revoke(at time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	timeCopy := at
	t.RevokedAt = &timeCopy
	return true
}

// TwoFactorChallenge bridges a successful password check and the TOTP step.
// It lives in a shared TTL store and is consumed exactly once.
type TwoFactorChallenge struct {
	ID        string
	AccountID string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the challenge window has closed.
func (c TwoFactorChallenge) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// RevokedSession records a bearer token identifier barred from further use.
type RevokedSession struct {
	JTI       string
	Reason    string
	RevokedAt time.Time
}
