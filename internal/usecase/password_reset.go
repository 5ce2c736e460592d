package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
	"github.com/ordexa/catalog-iam/internal/infra/config"
	"github.com/ordexa/catalog-iam/internal/infra/security"
	"github.com/ordexa/catalog-iam/internal/repository"
)

var (
	// ErrResetTokenInvalid indicates the reset token is unknown, consumed, or revoked.
	ErrResetTokenInvalid = errors.New("password reset token is invalid")
	// ErrResetTokenExpired indicates the reset token expired before redemption.
	ErrResetTokenExpired = errors.New("password reset token is expired")
)

const (
	resetTokenBytes        = 32
	defaultResetTokenTTL   = time.Hour
	passwordChangedByOwner = "account_owner"
)

// PasswordResetService issues and redeems single-use reset tokens. Requesting
// a reset never reveals whether an email is registered; the HTTP layer always
// answers the same way.
type PasswordResetService struct {
	cfg       *config.AppConfig
	accounts  port.AccountRepository
	tokens    port.TokenRepository
	policy    port.PasswordPolicyValidator
	hasher    port.PasswordHasher
	publisher port.EventPublisher
	audit     *AuditRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	cfg *config.AppConfig,
	accounts port.AccountRepository,
	tokens port.TokenRepository,
	policy port.PasswordPolicyValidator,
	hasher port.PasswordHasher,
	publisher port.EventPublisher,
	audit *AuditRecorder,
	logger *zap.Logger,
) *PasswordResetService {
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &PasswordResetService{
		cfg:       cfg,
		accounts:  accounts,
		tokens:    tokens,
		policy:    policy,
		hasher:    hasher,
		publisher: publisher,
		audit:     audit,
		logger:    logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RequestReset issues a reset token for an active account. Unknown emails and
// non-active accounts return a nil token with no error, so the caller can
// answer identically in every case. Issuing revokes earlier outstanding
// tokens, leaving at most one redeemable token per account.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string, meta RequestMeta) (*IssuedToken, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	now := s.now()

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit.Record(ctx, nil, domain.EventPasswordResetRequest, domain.OutcomeFailure, meta, map[string]any{"reason": "unknown_email"})
			return nil, nil
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}

	if account.Status != domain.AccountStatusActive {
		s.audit.Record(ctx, &account.ID, domain.EventPasswordResetRequest, domain.OutcomeBlocked, meta, map[string]any{
			"reason": "status_" + string(account.Status),
		})
		return nil, nil
	}

	if _, err := s.tokens.RevokeActiveForAccount(ctx, account.ID, domain.TokenPurposePasswordReset, now); err != nil {
		return nil, fmt.Errorf("revoke outstanding reset tokens: %w", err)
	}

	raw, err := security.GenerateSecureToken(resetTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}

	token := domain.ActionToken{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		TokenHash: security.HashToken(raw),
		Purpose:   domain.TokenPurposePasswordReset,
		CreatedAt: now,
		ExpiresAt: now.Add(s.resetTokenTTL()),
	}
	if ip := strings.TrimSpace(meta.IP); ip != "" {
		token.IP = &ip
	}
	if ua := strings.TrimSpace(meta.UserAgent); ua != "" {
		token.UserAgent = &ua
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("create reset token: %w", err)
	}

	s.audit.Record(ctx, &account.ID, domain.EventPasswordResetRequest, domain.OutcomeSuccess, meta, nil)

	return &IssuedToken{Token: raw, ExpiresAt: token.ExpiresAt}, nil
}

// ConfirmReset redeems a reset token and installs the new password. The
// policy runs before the consume, so a rejected password does not burn the
// token. A successful change also clears any active lockout.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, rawToken, newPassword string, meta RequestMeta) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrResetTokenInvalid
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrPasswordPolicyViolation)
	}

	now := s.now()
	hash := security.HashToken(rawToken)

	token, err := s.tokens.GetByHash(ctx, hash, domain.TokenPurposePasswordReset)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("get reset token: %w", err)
	}
	if !token.IsActive(now) {
		if token.IsExpired(now) && token.UsedAt == nil && token.RevokedAt == nil {
			return ErrResetTokenExpired
		}
		return ErrResetTokenInvalid
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	policyCtx := domain.PasswordContext{
		Email:       account.Email,
		CompanyName: account.CompanyName,
		ContactName: account.ContactName,
	}
	if err := s.policy.Validate(newPassword, policyCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.tokens.Consume(ctx, hash, domain.TokenPurposePasswordReset, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrExpired):
			return ErrResetTokenExpired
		case errors.Is(err, repository.ErrConsumed), errors.Is(err, repository.ErrNotFound):
			return ErrResetTokenInvalid
		default:
			return fmt.Errorf("consume reset token: %w", err)
		}
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, passwordHash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.accounts.ClearLockout(ctx, account.ID, now); err != nil {
		s.logger.Warn("clear login failures after password reset failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	s.publishPasswordChanged(ctx, account.ID, now)
	s.audit.Record(ctx, &account.ID, domain.EventPasswordChanged, domain.OutcomeSuccess, meta, nil)

	return nil
}

func (s *PasswordResetService) resetTokenTTL() time.Duration {
	if s.cfg != nil && s.cfg.Security.PasswordResetTokenTTL > 0 {
		return s.cfg.Security.PasswordResetTokenTTL
	}
	return defaultResetTokenTTL
}

func (s *PasswordResetService) publishPasswordChanged(ctx context.Context, accountID string, at time.Time) {
	if s.publisher == nil {
		return
	}

	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: accountID,
		ChangedBy: passwordChangedByOwner,
		ChangedAt: at,
	}
	if err := s.publisher.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}
