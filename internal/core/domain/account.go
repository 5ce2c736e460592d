package domain

import (
	"strings"
	"time"
)

// AccountStatus enumerates lifecycle states of a company account.
type AccountStatus string

const (
	AccountStatusPendingEmailVerification AccountStatus = "pending_email_verification"
	AccountStatusPendingAdminApproval     AccountStatus = "pending_admin_approval"
	AccountStatusActive                   AccountStatus = "active"
	AccountStatusRejected                 AccountStatus = "rejected"
)

// ParseAccountStatus validates a stored status value against the closed enumeration.
func ParseAccountStatus(raw string) (AccountStatus, bool) {
	switch AccountStatus(raw) {
	case AccountStatusPendingEmailVerification,
		AccountStatusPendingAdminApproval,
		AccountStatusActive,
		AccountStatusRejected:
		return AccountStatus(raw), true
	}
	return "", false
}

// AccountRole enumerates the roles an account may hold.
type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleAdmin AccountRole = "admin"
)

// ParseAccountRole validates a stored role value against the closed enumeration.
func ParseAccountRole(raw string) (AccountRole, bool) {
	switch AccountRole(raw) {
	case RoleUser, RoleAdmin:
		return AccountRole(raw), true
	}
	return "", false
}

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID                  string
	Email               string
	CompanyName         string
	CompanyNumber       string
	ContactName         string
	PasswordHash        string
	Role                AccountRole
	Status              AccountStatus
	EmailVerified       bool
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	LockedUntil         *time.Time
	TwoFactorSecret     *string
	TwoFactorPending    *string
	LastLogin           *time.Time
	RegisteredAt        time.Time
	UpdatedAt           time.Time
}

// NormalizeEmail lowercases and trims an email for case-insensitive comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsLocked reports whether the account is inside an active lockout window.
// Lockout is orthogonal to status: an otherwise-active account stays active
// while temporarily refusing authentication.
func (a Account) IsLocked(at time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(at)
}

// TwoFactorEnabled reports whether a confirmed TOTP secret protects login.
func (a Account) TwoFactorEnabled() bool {
	return a.TwoFactorSecret != nil && *a.TwoFactorSecret != ""
}

// CanTransitionTo reports whether the status state machine permits the move.
// Edges: pending_email_verification -> pending_admin_approval -> {active | rejected}.
func (a Account) CanTransitionTo(next AccountStatus) bool {
	switch a.Status {
	case AccountStatusPendingEmailVerification:
		return next == AccountStatusPendingAdminApproval
	case AccountStatusPendingAdminApproval:
		return next == AccountStatusActive || next == AccountStatusRejected
	default:
		return false
	}
}

// PasswordContext carries user-supplied values that must not appear in passwords.
type PasswordContext struct {
	Email       string
	CompanyName string
	ContactName string
}
