package domain

import "time"

// EventOutcome classifies how a guarded operation concluded.
type EventOutcome string

const (
	OutcomeSuccess EventOutcome = "success"
	OutcomeFailure EventOutcome = "failure"
	OutcomeBlocked EventOutcome = "blocked"
)

// Security event types recorded by the audit log.
const (
	EventAccountRegistered    = "account.registered"
	EventEmailVerified        = "account.email_verified"
	EventAccountApproved      = "account.approved"
	EventAccountRejected      = "account.rejected"
	EventLoginSucceeded       = "login.succeeded"
	EventLoginFailed          = "login.failed"
	EventLoginBlocked         = "login.blocked"
	EventAccountLocked        = "account.locked"
	EventTwoFactorChallenged  = "twofactor.challenged"
	EventTwoFactorVerified    = "twofactor.verified"
	EventTwoFactorFailed      = "twofactor.failed"
	EventTwoFactorEnrolled    = "twofactor.enrolled"
	EventTwoFactorDisabled    = "twofactor.disabled"
	EventSessionRevoked       = "session.revoked"
	EventPasswordResetRequest = "password_reset.requested"
	EventPasswordChanged      = "password.changed"
)

// SecurityEvent is an append-only record of a security-relevant action.
// AccountID is nil for events that could not be tied to an account, such as
// login attempts against unknown emails.
type SecurityEvent struct {
	ID        string
	AccountID *string
	EventType string
	Outcome   EventOutcome
	IP        *string
	UserAgent *string
	Detail    map[string]any
	CreatedAt time.Time
}
