package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
	"github.com/ordexa/catalog-iam/internal/repository"
)

var (
	// ErrTwoFactorAlreadyEnabled indicates the account already has a confirmed TOTP secret.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	// ErrTwoFactorNotEnabled indicates the account has no confirmed TOTP secret.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication is not enabled")
	// ErrEnrollmentNotPending indicates there is no pending secret to confirm.
	ErrEnrollmentNotPending = errors.New("no two-factor enrollment is pending")
)

// TwoFactorService manages TOTP enrollment on authenticated accounts. A
// generated secret stays in the pending slot until the account proves
// possession with a valid code, so login never depends on an unconfirmed
// secret.
type TwoFactorService struct {
	accounts port.AccountRepository
	totp     port.TwoFactorProvider
	hasher   port.PasswordHasher
	audit    *AuditRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewTwoFactorService constructs a TwoFactorService.
func NewTwoFactorService(
	accounts port.AccountRepository,
	totp port.TwoFactorProvider,
	hasher port.PasswordHasher,
	audit *AuditRecorder,
	logger *zap.Logger,
) *TwoFactorService {
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &TwoFactorService{
		accounts: accounts,
		totp:     totp,
		hasher:   hasher,
		audit:    audit,
		logger:   logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *TwoFactorService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Enroll generates a fresh TOTP secret and stores it in the pending slot.
// The secret and otpauth URI are returned once and never readable again.
func (s *TwoFactorService) Enroll(ctx context.Context, accountID string, meta RequestMeta) (port.TwoFactorEnrollment, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return port.TwoFactorEnrollment{}, fmt.Errorf("get account: %w", err)
	}

	if account.TwoFactorEnabled() {
		return port.TwoFactorEnrollment{}, ErrTwoFactorAlreadyEnabled
	}

	enrollment, err := s.totp.GenerateSecret(account.Email)
	if err != nil {
		return port.TwoFactorEnrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}

	if err := s.accounts.SetPendingTwoFactorSecret(ctx, account.ID, enrollment.Secret); err != nil {
		return port.TwoFactorEnrollment{}, fmt.Errorf("store pending totp secret: %w", err)
	}

	return enrollment, nil
}

// Confirm promotes the pending secret after the account proves possession
// with a valid code. The promotion is a single statement, so two racing
// confirms cannot both succeed.
func (s *TwoFactorService) Confirm(ctx context.Context, accountID, code string, meta RequestMeta) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if account.TwoFactorPending == nil || *account.TwoFactorPending == "" {
		return ErrEnrollmentNotPending
	}

	valid, err := s.totp.ValidateCode(*account.TwoFactorPending, code, s.now())
	if err != nil {
		return fmt.Errorf("validate totp code: %w", err)
	}
	if !valid {
		s.audit.Record(ctx, &account.ID, domain.EventTwoFactorFailed, domain.OutcomeFailure, meta, map[string]any{"phase": "enrollment"})
		return ErrTwoFactorCodeInvalid
	}

	if err := s.accounts.ConfirmTwoFactorSecret(ctx, account.ID); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return ErrEnrollmentNotPending
		}
		return fmt.Errorf("confirm totp secret: %w", err)
	}

	s.audit.Record(ctx, &account.ID, domain.EventTwoFactorEnrolled, domain.OutcomeSuccess, meta, nil)
	return nil
}

// Disable removes TOTP protection. The caller must re-prove both the account
// password and a current code.
func (s *TwoFactorService) Disable(ctx context.Context, accountID, password, code string, meta RequestMeta) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if !account.TwoFactorEnabled() {
		return ErrTwoFactorNotEnabled
	}

	match, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !match {
		s.audit.Record(ctx, &account.ID, domain.EventTwoFactorFailed, domain.OutcomeFailure, meta, map[string]any{"phase": "disable"})
		return ErrInvalidCredentials
	}

	valid, err := s.totp.ValidateCode(*account.TwoFactorSecret, code, s.now())
	if err != nil {
		return fmt.Errorf("validate totp code: %w", err)
	}
	if !valid {
		s.audit.Record(ctx, &account.ID, domain.EventTwoFactorFailed, domain.OutcomeFailure, meta, map[string]any{"phase": "disable"})
		return ErrTwoFactorCodeInvalid
	}

	if err := s.accounts.ClearTwoFactorSecrets(ctx, account.ID); err != nil {
		return fmt.Errorf("clear totp secrets: %w", err)
	}

	s.audit.Record(ctx, &account.ID, domain.EventTwoFactorDisabled, domain.OutcomeSuccess, meta, nil)
	return nil
}
