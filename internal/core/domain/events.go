package domain

import "time"

// AccountRegisteredEvent represents the payload for catalog.account.registered messages.
type AccountRegisteredEvent struct {
	EventID       string
	AccountID     string
	Email         string
	CompanyName   string
	CompanyNumber string
	RegisteredAt  time.Time
	Metadata      map[string]any
}

// EmailVerifiedEvent represents the payload for catalog.account.email_verified messages.
type EmailVerifiedEvent struct {
	EventID    string
	AccountID  string
	VerifiedAt time.Time
	Metadata   map[string]any
}

// AccountApprovedEvent represents the payload for catalog.account.approved messages.
type AccountApprovedEvent struct {
	EventID    string
	AccountID  string
	ApprovedBy string
	ApprovedAt time.Time
	Metadata   map[string]any
}

// AccountRejectedEvent represents the payload for catalog.account.rejected messages.
type AccountRejectedEvent struct {
	EventID    string
	AccountID  string
	RejectedBy string
	Reason     string
	RejectedAt time.Time
	Metadata   map[string]any
}

// AccountLockedEvent represents the payload for catalog.account.locked messages.
type AccountLockedEvent struct {
	EventID        string
	AccountID      string
	FailedAttempts int
	LockedUntil    time.Time
	LockedAt       time.Time
	Metadata       map[string]any
}

// SessionRevokedEvent represents the payload for catalog.session.revoked messages.
type SessionRevokedEvent struct {
	EventID   string
	JTI       string
	AccountID string
	Reason    string
	RevokedAt time.Time
	Metadata  map[string]any
}

// PasswordChangedEvent represents the payload for catalog.account.password_changed messages.
type PasswordChangedEvent struct {
	EventID   string
	AccountID string
	ChangedBy string
	ChangedAt time.Time
	Metadata  map[string]any
}
