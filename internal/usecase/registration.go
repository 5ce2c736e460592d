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
	// ErrPasswordPolicyViolation indicates the supplied password failed policy checks.
	ErrPasswordPolicyViolation = errors.New("password does not meet the password policy")
	// ErrEmailAlreadyRegistered indicates the email is taken by another account.
	ErrEmailAlreadyRegistered = errors.New("email is already registered")
	// ErrCompanyNumberAlreadyRegistered indicates the company number is taken by another account.
	ErrCompanyNumberAlreadyRegistered = errors.New("company number is already registered")
	// ErrVerificationTokenInvalid indicates the token is unknown, consumed, or revoked.
	ErrVerificationTokenInvalid = errors.New("verification token is invalid")
	// ErrVerificationTokenExpired indicates the token expired before redemption.
	ErrVerificationTokenExpired = errors.New("verification token is expired")
)

const (
	verificationTokenBytes      = 32
	defaultVerificationTokenTTL = 24 * time.Hour
)

// IssuedToken carries a raw single-use token back to the caller. The raw value
// exists only in this response; storage holds its hash.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// RegisterAccountInput gathers the fields of a company registration request.
type RegisterAccountInput struct {
	Email         string
	CompanyName   string
	CompanyNumber string
	ContactName   string
	Password      string
	Meta          RequestMeta
}

// RegistrationService handles company account registration and email verification.
type RegistrationService struct {
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

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	cfg *config.AppConfig,
	accounts port.AccountRepository,
	tokens port.TokenRepository,
	policy port.PasswordPolicyValidator,
	hasher port.PasswordHasher,
	publisher port.EventPublisher,
	audit *AuditRecorder,
	logger *zap.Logger,
) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &RegistrationService{
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
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RegisterAccount creates a pending company account and issues its email
// verification token. The account starts in pending_email_verification and
// cannot authenticate until an administrator approves it.
func (s *RegistrationService) RegisterAccount(ctx context.Context, input RegisterAccountInput) (*domain.Account, *IssuedToken, error) {
	email := domain.NormalizeEmail(input.Email)
	companyName := strings.TrimSpace(input.CompanyName)
	companyNumber := strings.TrimSpace(input.CompanyNumber)
	contactName := strings.TrimSpace(input.ContactName)

	if email == "" {
		return nil, nil, fmt.Errorf("email is required")
	}
	if companyName == "" {
		return nil, nil, fmt.Errorf("company name is required")
	}
	if companyNumber == "" {
		return nil, nil, fmt.Errorf("company number is required")
	}
	if contactName == "" {
		return nil, nil, fmt.Errorf("contact name is required")
	}
	if input.Password == "" {
		return nil, nil, fmt.Errorf("password is required")
	}

	policyCtx := domain.PasswordContext{
		Email:       email,
		CompanyName: companyName,
		ContactName: contactName,
	}
	if err := s.policy.Validate(input.Password, policyCtx); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account := domain.Account{
		ID:            uuid.NewString(),
		Email:         email,
		CompanyName:   companyName,
		CompanyNumber: companyNumber,
		ContactName:   contactName,
		PasswordHash:  passwordHash,
		Role:          domain.RoleUser,
		Status:        domain.AccountStatusPendingEmailVerification,
		RegisteredAt:  now,
		UpdatedAt:     now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, nil, ErrEmailAlreadyRegistered
		case errors.Is(err, repository.ErrDuplicateCompanyNumber):
			return nil, nil, ErrCompanyNumberAlreadyRegistered
		default:
			return nil, nil, fmt.Errorf("create account: %w", err)
		}
	}

	issued, err := s.issueVerificationToken(ctx, account.ID, input.Meta, now)
	if err != nil {
		return nil, nil, err
	}

	s.publishRegistered(ctx, account, now)
	s.audit.Record(ctx, &account.ID, domain.EventAccountRegistered, domain.OutcomeSuccess, input.Meta, map[string]any{
		"company_number": companyNumber,
	})

	return &account, issued, nil
}

// VerifyEmail consumes a verification token and advances the account to
// pending_admin_approval. The consume is atomic, so a replayed token fails
// even when two requests race.
func (s *RegistrationService) VerifyEmail(ctx context.Context, rawToken string, meta RequestMeta) (*domain.Account, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrVerificationTokenInvalid
	}

	now := s.now()
	hash := security.HashToken(rawToken)

	token, err := s.tokens.Consume(ctx, hash, domain.TokenPurposeEmailVerification, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrExpired):
			s.audit.Record(ctx, nil, domain.EventEmailVerified, domain.OutcomeFailure, meta, map[string]any{"reason": "token_expired"})
			return nil, ErrVerificationTokenExpired
		case errors.Is(err, repository.ErrConsumed), errors.Is(err, repository.ErrNotFound):
			s.audit.Record(ctx, nil, domain.EventEmailVerified, domain.OutcomeFailure, meta, map[string]any{"reason": "token_invalid"})
			return nil, ErrVerificationTokenInvalid
		default:
			return nil, fmt.Errorf("consume verification token: %w", err)
		}
	}

	if err := s.accounts.MarkEmailVerified(ctx, token.AccountID, now); err != nil {
		return nil, fmt.Errorf("mark email verified: %w", err)
	}

	if err := s.accounts.UpdateStatus(ctx, token.AccountID, domain.AccountStatusPendingEmailVerification, domain.AccountStatusPendingAdminApproval); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrVerificationTokenInvalid
		}
		return nil, fmt.Errorf("advance account status: %w", err)
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	s.publishVerified(ctx, account.ID, now)
	s.audit.Record(ctx, &account.ID, domain.EventEmailVerified, domain.OutcomeSuccess, meta, nil)

	return account, nil
}

func (s *RegistrationService) issueVerificationToken(ctx context.Context, accountID string, meta RequestMeta, now time.Time) (*IssuedToken, error) {
	raw, err := security.GenerateSecureToken(verificationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	ttl := defaultVerificationTokenTTL
	if s.cfg != nil && s.cfg.Security.VerificationTokenTTL > 0 {
		ttl = s.cfg.Security.VerificationTokenTTL
	}

	token := domain.ActionToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: security.HashToken(raw),
		Purpose:   domain.TokenPurposeEmailVerification,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if ip := strings.TrimSpace(meta.IP); ip != "" {
		token.IP = &ip
	}
	if ua := strings.TrimSpace(meta.UserAgent); ua != "" {
		token.UserAgent = &ua
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("create verification token: %w", err)
	}

	return &IssuedToken{Token: raw, ExpiresAt: token.ExpiresAt}, nil
}

func (s *RegistrationService) publishRegistered(ctx context.Context, account domain.Account, at time.Time) {
	if s.publisher == nil {
		return
	}

	event := domain.AccountRegisteredEvent{
		EventID:       uuid.NewString(),
		AccountID:     account.ID,
		Email:         account.Email,
		CompanyName:   account.CompanyName,
		CompanyNumber: account.CompanyNumber,
		RegisteredAt:  at,
	}
	if err := s.publisher.PublishAccountRegistered(ctx, event); err != nil {
		s.logger.Warn("publish account registered event failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}
}

func (s *RegistrationService) publishVerified(ctx context.Context, accountID string, at time.Time) {
	if s.publisher == nil {
		return
	}

	event := domain.EmailVerifiedEvent{
		EventID:    uuid.NewString(),
		AccountID:  accountID,
		VerifiedAt: at,
	}
	if err := s.publisher.PublishEmailVerified(ctx, event); err != nil {
		s.logger.Warn("publish email verified event failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}
