package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordexa/catalog-iam/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary describes the API view of a company account. Credential and
// counter fields never leave the service.
type AccountSummary struct {
	ID            string               `json:"id"`
	Email         string               `json:"email"`
	CompanyName   string               `json:"company_name"`
	CompanyNumber string               `json:"company_number"`
	ContactName   string               `json:"contact_name"`
	Role          domain.AccountRole   `json:"role"`
	Status        domain.AccountStatus `json:"status"`
	EmailVerified bool                 `json:"email_verified"`
	TwoFactor     bool                 `json:"two_factor_enabled"`
	RegisteredAt  time.Time            `json:"registered_at"`
}

func newAccountSummary(account *domain.Account) AccountSummary {
	return AccountSummary{
		ID:            account.ID,
		Email:         account.Email,
		CompanyName:   account.CompanyName,
		CompanyNumber: account.CompanyNumber,
		ContactName:   account.ContactName,
		Role:          account.Role,
		Status:        account.Status,
		EmailVerified: account.EmailVerified,
		TwoFactor:     account.TwoFactorEnabled(),
		RegisteredAt:  account.RegisteredAt,
	}
}

// RegistrationRequest defines the payload for company account registration.
type RegistrationRequest struct {
	Email         string `json:"email" binding:"required"`
	CompanyName   string `json:"company_name" binding:"required"`
	CompanyNumber string `json:"company_number" binding:"required"`
	ContactName   string `json:"contact_name" binding:"required"`
	Password      string `json:"password" binding:"required"`
}

// RegistrationResponse is returned after a successful registration.
type RegistrationResponse struct {
	Account   AccountSummary `json:"account"`
	Message   string         `json:"message"`
	ExpiresAt *string        `json:"verification_expires_at,omitempty"`
	DevToken  *string        `json:"dev_token,omitempty"`
}

// VerifyEmailRequest defines the payload for the email verification endpoint.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmailResponse confirms a successful email verification.
type VerifyEmailResponse struct {
	Message string         `json:"message"`
	Account AccountSummary `json:"account"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries either an issued session or a two-factor challenge.
type LoginResponse struct {
	TokenType          string     `json:"token_type,omitempty"`
	SessionToken       string     `json:"session_token,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	TwoFactorRequired  bool       `json:"two_factor_required"`
	ChallengeID        string     `json:"challenge_id,omitempty"`
	ChallengeExpiresAt *time.Time `json:"challenge_expires_at,omitempty"`
}

// TwoFactorVerifyRequest completes a pending login challenge.
type TwoFactorVerifyRequest struct {
	ChallengeID string `json:"challenge_id" binding:"required"`
	Code        string `json:"code" binding:"required"`
}

// TwoFactorEnrollResponse returns the secret material for authenticator setup.
type TwoFactorEnrollResponse struct {
	Secret     string `json:"secret"`
	OtpauthURI string `json:"otpauth_uri"`
}

// TwoFactorConfirmRequest proves possession of the enrolled secret.
type TwoFactorConfirmRequest struct {
	Code string `json:"code" binding:"required"`
}

// TwoFactorDisableRequest removes TOTP protection after re-authentication.
type TwoFactorDisableRequest struct {
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// PasswordResetRequest asks for a reset token to be issued.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// PasswordResetConfirmRequest redeems a reset token.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// AdminRejectRequest carries the mandatory rejection reason.
type AdminRejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// AccountListResponse pages through accounts.
type AccountListResponse struct {
	Accounts []AccountSummary `json:"accounts"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// SecurityEventView is the API representation of one audit record.
type SecurityEventView struct {
	ID        string         `json:"id"`
	AccountID *string        `json:"account_id,omitempty"`
	EventType string         `json:"event_type"`
	Outcome   string         `json:"outcome"`
	IP        *string        `json:"ip,omitempty"`
	UserAgent *string        `json:"user_agent,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SecurityEventListResponse pages through the audit log.
type SecurityEventListResponse struct {
	Events []SecurityEventView `json:"events"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// HealthResponse reports liveness information.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessCheckResult reports one dependency probe.
type ReadinessCheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ReadinessResponse aggregates dependency probes.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks []ReadinessCheckResult `json:"checks"`
}
