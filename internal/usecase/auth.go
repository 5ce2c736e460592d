package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
	"github.com/ordexa/catalog-iam/internal/infra/config"
	"github.com/ordexa/catalog-iam/internal/infra/security"
	"github.com/ordexa/catalog-iam/internal/repository"
)

var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike, so
	// responses do not reveal which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the account is inside an active lockout window.
	ErrAccountLocked = errors.New("account is temporarily locked")
	// ErrEmailNotVerified indicates the account has not completed email verification.
	ErrEmailNotVerified = errors.New("email address is not verified")
	// ErrAccountNotApproved indicates the account awaits administrator approval.
	ErrAccountNotApproved = errors.New("account is pending administrator approval")
	// ErrAccountRejected indicates an administrator rejected the account.
	ErrAccountRejected = errors.New("account has been rejected")
	// ErrTwoFactorChallengeInvalid indicates the challenge is unknown or already consumed.
	ErrTwoFactorChallengeInvalid = errors.New("two-factor challenge is invalid")
	// ErrTwoFactorChallengeExpired indicates the challenge window has closed.
	ErrTwoFactorChallengeExpired = errors.New("two-factor challenge is expired")
	// ErrTwoFactorCodeInvalid indicates the supplied TOTP code did not match.
	ErrTwoFactorCodeInvalid = errors.New("two-factor code is invalid")
	// ErrInvalidSessionToken indicates the bearer token failed signature or claim checks.
	ErrInvalidSessionToken = errors.New("session token is invalid")
	// ErrExpiredSessionToken indicates the bearer token is past its expiry.
	ErrExpiredSessionToken = errors.New("session token is expired")
	// ErrSessionRevoked indicates the bearer token was revoked before expiry.
	ErrSessionRevoked = errors.New("session has been revoked")
)

const (
	defaultLockoutThreshold     = 5
	defaultLockoutFailureWindow = 15 * time.Minute
	defaultLockoutDuration      = 15 * time.Minute
	defaultChallengeTTL         = 5 * time.Minute
	defaultChallengeMaxAttempts = 5

	revocationReasonLogout = "logout"
)

// LoginMetrics records authentication outcomes for monitoring.
type LoginMetrics interface {
	RecordLoginOutcome(outcome string)
	RecordLockout()
}

// LoginInput gathers the fields of a login request.
type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

// LoginResult is either an issued session or a pending two-factor challenge.
type LoginResult struct {
	Account            *domain.Account
	SessionToken       string
	ExpiresAt          time.Time
	TwoFactorRequired  bool
	ChallengeID        string
	ChallengeExpiresAt time.Time
}

// AuthService verifies credentials, drives the lockout counter, runs the
// two-factor step, and issues and validates signed session tokens.
type AuthService struct {
	cfg         *config.AppConfig
	accounts    port.AccountRepository
	challenges  port.TwoFactorChallengeStore
	revocations port.SessionRevocationStore
	hasher      port.PasswordHasher
	totp        port.TwoFactorProvider
	jwtManager  *security.JWTManager
	publisher   port.EventPublisher
	audit       *AuditRecorder
	metrics     LoginMetrics
	logger      *zap.Logger
	now         func() time.Time

	// dummyHash keeps the unknown-email path on the same Argon2id cost as a
	// real verification, so response timing does not leak account existence.
	dummyHash string
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	cfg *config.AppConfig,
	accounts port.AccountRepository,
	challenges port.TwoFactorChallengeStore,
	revocations port.SessionRevocationStore,
	hasher port.PasswordHasher,
	totp port.TwoFactorProvider,
	jwtManager *security.JWTManager,
	publisher port.EventPublisher,
	audit *AuditRecorder,
	metrics LoginMetrics,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &AuthService{
		cfg:         cfg,
		accounts:    accounts,
		challenges:  challenges,
		revocations: revocations,
		hasher:      hasher,
		totp:        totp,
		jwtManager:  jwtManager,
		publisher:   publisher,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }

	if hasher != nil {
		if hash, err := hasher.Hash(uuid.NewString()); err == nil {
			service.dummyHash = hash
		}
	}

	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login verifies email and password. The gates run in a fixed order: unknown
// email, active lockout, lifecycle status, then the password check. Only the
// password check consumes a failure, so non-active accounts can never be
// locked out and a blocked attempt does not touch the counter.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	now := s.now()

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.burnVerification(input.Password)
			s.recordLoginOutcome("failure")
			s.audit.Record(ctx, nil, domain.EventLoginFailed, domain.OutcomeFailure, input.Meta, map[string]any{"reason": "unknown_email"})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}

	if account.IsLocked(now) {
		s.recordLoginOutcome("blocked")
		s.audit.Record(ctx, &account.ID, domain.EventLoginBlocked, domain.OutcomeBlocked, input.Meta, map[string]any{
			"reason":       "account_locked",
			"locked_until": account.LockedUntil.Format(time.RFC3339),
		})
		return nil, ErrAccountLocked
	}

	if statusErr := s.statusGate(ctx, account, input.Meta); statusErr != nil {
		return nil, statusErr
	}

	match, err := s.hasher.Verify(input.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return nil, s.handlePasswordFailure(ctx, account, input.Meta, now)
	}

	if account.TwoFactorEnabled() {
		return s.startTwoFactorChallenge(ctx, account, input.Meta, now)
	}

	if err := s.accounts.ResetLoginFailures(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("reset login failures: %w", err)
	}

	return s.finishLogin(ctx, account, input.Meta, now)
}

// VerifyTwoFactor completes a pending challenge with a TOTP code. The
// challenge is consumed atomically on success, so only one of two racing
// requests can finish it.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, challengeID, code string, meta RequestMeta) (*LoginResult, error) {
	challengeID = strings.TrimSpace(challengeID)
	code = strings.TrimSpace(code)
	if challengeID == "" || code == "" {
		return nil, ErrTwoFactorChallengeInvalid
	}

	now := s.now()

	challenge, err := s.challenges.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTwoFactorChallengeInvalid
		}
		return nil, fmt.Errorf("get two-factor challenge: %w", err)
	}

	if challenge.IsExpired(now) {
		_ = s.challenges.Delete(ctx, challengeID)
		return nil, ErrTwoFactorChallengeExpired
	}

	account, err := s.accounts.GetByID(ctx, challenge.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if !account.TwoFactorEnabled() {
		_ = s.challenges.Delete(ctx, challengeID)
		return nil, ErrTwoFactorChallengeInvalid
	}

	valid, err := s.totp.ValidateCode(*account.TwoFactorSecret, code, now)
	if err != nil {
		return nil, fmt.Errorf("validate totp code: %w", err)
	}
	if !valid {
		return nil, s.handleChallengeFailure(ctx, account, challengeID, meta, now)
	}

	if _, err := s.challenges.Consume(ctx, challengeID); err != nil {
		if errors.Is(err, repository.ErrConsumed) || errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTwoFactorChallengeInvalid
		}
		return nil, fmt.Errorf("consume two-factor challenge: %w", err)
	}

	if err := s.accounts.ResetLoginFailures(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("reset login failures: %w", err)
	}

	s.audit.Record(ctx, &account.ID, domain.EventTwoFactorVerified, domain.OutcomeSuccess, meta, nil)
	return s.finishLogin(ctx, account, meta, now)
}

// ValidateSession verifies a bearer token offline and then consults the
// shared revocation registry. Every instance sees a revocation as soon as it
// is written.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*security.SessionTokenClaims, error) {
	claims, err := s.parseSessionToken(token)
	if err != nil {
		return nil, err
	}

	jti := strings.TrimSpace(claims.RegisteredClaims.ID)
	if jti == "" {
		return nil, ErrInvalidSessionToken
	}

	revoked, reason, err := s.revocations.IsSessionRevoked(ctx, jti)
	if err != nil {
		return nil, fmt.Errorf("check session revocation: %w", err)
	}
	if revoked {
		s.logger.Debug("revoked session presented",
			zap.String("jti", jti),
			zap.String("reason", reason),
		)
		return nil, ErrSessionRevoked
	}

	return claims, nil
}

// Logout revokes the presented session token. Revoking a token that is
// already revoked or expired succeeds without effect.
func (s *AuthService) Logout(ctx context.Context, token string, meta RequestMeta) error {
	claims, err := s.parseSessionToken(token)
	if err != nil {
		if errors.Is(err, ErrExpiredSessionToken) {
			return nil
		}
		return err
	}

	jti := strings.TrimSpace(claims.RegisteredClaims.ID)
	if jti == "" {
		return ErrInvalidSessionToken
	}

	now := s.now()
	ttl := time.Duration(0)
	if claims.RegisteredClaims.ExpiresAt != nil {
		ttl = claims.RegisteredClaims.ExpiresAt.Time.Sub(now)
	}
	if ttl <= 0 {
		return nil
	}

	if err := s.revocations.MarkSessionRevoked(ctx, jti, revocationReasonLogout, ttl); err != nil {
		return fmt.Errorf("mark session revoked: %w", err)
	}

	s.publishSessionRevoked(ctx, jti, claims.AccountID, revocationReasonLogout, now)
	s.audit.Record(ctx, &claims.AccountID, domain.EventSessionRevoked, domain.OutcomeSuccess, meta, map[string]any{
		"jti":    jti,
		"reason": revocationReasonLogout,
	})

	return nil
}

func (s *AuthService) handlePasswordFailure(ctx context.Context, account *domain.Account, meta RequestMeta, now time.Time) error {
	failure, err := s.accounts.RecordLoginFailure(ctx, account.ID, s.lockoutPolicy(), now)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	if failure.LockedUntil != nil && failure.LockedUntil.After(now) {
		s.recordLockout()
		s.publishAccountLocked(ctx, account.ID, s.lockoutThreshold(), *failure.LockedUntil, now)
		s.audit.Record(ctx, &account.ID, domain.EventAccountLocked, domain.OutcomeBlocked, meta, map[string]any{
			"locked_until": failure.LockedUntil.Format(time.RFC3339),
		})
	}

	s.recordLoginOutcome("failure")
	s.audit.Record(ctx, &account.ID, domain.EventLoginFailed, domain.OutcomeFailure, meta, map[string]any{
		"failed_attempts": failure.FailedAttempts,
	})

	return ErrInvalidCredentials
}

func (s *AuthService) handleChallengeFailure(ctx context.Context, account *domain.Account, challengeID string, meta RequestMeta, now time.Time) error {
	attempts, err := s.challenges.IncrementAttempts(ctx, challengeID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("increment challenge attempts: %w", err)
	}

	if attempts >= s.challengeMaxAttempts() {
		_ = s.challenges.Delete(ctx, challengeID)

		failure, recErr := s.accounts.RecordLoginFailure(ctx, account.ID, s.lockoutPolicy(), now)
		if recErr != nil {
			return fmt.Errorf("record login failure: %w", recErr)
		}
		if failure.LockedUntil != nil && failure.LockedUntil.After(now) {
			s.recordLockout()
			s.publishAccountLocked(ctx, account.ID, s.lockoutThreshold(), *failure.LockedUntil, now)
			s.audit.Record(ctx, &account.ID, domain.EventAccountLocked, domain.OutcomeBlocked, meta, map[string]any{
				"locked_until": failure.LockedUntil.Format(time.RFC3339),
			})
		}
	}

	s.audit.Record(ctx, &account.ID, domain.EventTwoFactorFailed, domain.OutcomeFailure, meta, map[string]any{
		"attempts": attempts,
	})

	return ErrTwoFactorCodeInvalid
}

func (s *AuthService) statusGate(ctx context.Context, account *domain.Account, meta RequestMeta) error {
	var gateErr error
	switch account.Status {
	case domain.AccountStatusActive:
		return nil
	case domain.AccountStatusPendingEmailVerification:
		gateErr = ErrEmailNotVerified
	case domain.AccountStatusPendingAdminApproval:
		gateErr = ErrAccountNotApproved
	case domain.AccountStatusRejected:
		gateErr = ErrAccountRejected
	default:
		gateErr = ErrInvalidCredentials
	}

	s.recordLoginOutcome("blocked")
	s.audit.Record(ctx, &account.ID, domain.EventLoginBlocked, domain.OutcomeBlocked, meta, map[string]any{
		"reason": "status_" + string(account.Status),
	})

	return gateErr
}

func (s *AuthService) startTwoFactorChallenge(ctx context.Context, account *domain.Account, meta RequestMeta, now time.Time) (*LoginResult, error) {
	ttl := s.challengeTTL()
	challenge := domain.TwoFactorChallenge{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.challenges.Save(ctx, challenge, ttl); err != nil {
		return nil, fmt.Errorf("save two-factor challenge: %w", err)
	}

	s.audit.Record(ctx, &account.ID, domain.EventTwoFactorChallenged, domain.OutcomeSuccess, meta, nil)

	return &LoginResult{
		Account:            account,
		TwoFactorRequired:  true,
		ChallengeID:        challenge.ID,
		ChallengeExpiresAt: challenge.ExpiresAt,
	}, nil
}

func (s *AuthService) finishLogin(ctx context.Context, account *domain.Account, meta RequestMeta, now time.Time) (*LoginResult, error) {
	token, expiresAt, err := s.issueSessionToken(account, now)
	if err != nil {
		return nil, err
	}

	s.recordLoginOutcome("success")
	s.audit.Record(ctx, &account.ID, domain.EventLoginSucceeded, domain.OutcomeSuccess, meta, nil)

	return &LoginResult{
		Account:      account,
		SessionToken: token,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *AuthService) issueSessionToken(account *domain.Account, now time.Time) (string, time.Time, error) {
	if s.jwtManager == nil {
		return "", time.Time{}, fmt.Errorf("jwt manager not configured")
	}

	opts := security.SessionTokenOptions{
		AccountID: account.ID,
		Role:      string(account.Role),
		Issuer:    s.issuer(),
		Audience:  s.audience(),
		TTL:       s.sessionTTL(),
		IssuedAt:  now,
	}

	claims, err := security.NewSessionTokenClaims(opts)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build session claims: %w", err)
	}

	signed, err := s.jwtManager.SignSessionToken(s.activeKeyID(), claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}

	return signed, claims.RegisteredClaims.ExpiresAt.Time, nil
}

func (s *AuthService) parseSessionToken(token string) (*security.SessionTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSessionToken
	}
	if s.jwtManager == nil {
		return nil, fmt.Errorf("jwt manager not configured")
	}

	claims := &security.SessionTokenClaims{}

	options := []jwt.ParserOption{
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer()),
		jwt.WithLeeway(s.clockSkewGrace()),
	}
	for _, audience := range s.audience() {
		options = append(options, jwt.WithAudience(audience))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		method, ok := t.Method.(*jwt.SigningMethodRSA)
		if !ok || method == nil {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		kid, _ := t.Header["kid"].(string)
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, fmt.Errorf("kid header not found")
		}

		return s.jwtManager.GetVerificationKey(kid)
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSessionToken
		}
		return nil, ErrInvalidSessionToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidSessionToken
	}
	if strings.TrimSpace(claims.AccountID) == "" {
		return nil, ErrInvalidSessionToken
	}

	return claims, nil
}

// burnVerification runs a hash verification against a throwaway hash.
func (s *AuthService) burnVerification(password string) {
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(password, s.dummyHash)
}

func (s *AuthService) publishAccountLocked(ctx context.Context, accountID string, attempts int, lockedUntil, at time.Time) {
	if s.publisher == nil {
		return
	}

	event := domain.AccountLockedEvent{
		EventID:        uuid.NewString(),
		AccountID:      accountID,
		FailedAttempts: attempts,
		LockedUntil:    lockedUntil,
		LockedAt:       at,
	}
	if err := s.publisher.PublishAccountLocked(ctx, event); err != nil {
		s.logger.Warn("publish account locked event failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}

func (s *AuthService) publishSessionRevoked(ctx context.Context, jti, accountID, reason string, at time.Time) {
	if s.publisher == nil {
		return
	}

	event := domain.SessionRevokedEvent{
		EventID:   uuid.NewString(),
		JTI:       jti,
		AccountID: accountID,
		Reason:    reason,
		RevokedAt: at,
	}
	if err := s.publisher.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("publish session revoked event failed",
			zap.String("jti", jti),
			zap.Error(err),
		)
	}
}

func (s *AuthService) recordLoginOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLoginOutcome(outcome)
	}
}

func (s *AuthService) recordLockout() {
	if s.metrics != nil {
		s.metrics.RecordLockout()
	}
}

func (s *AuthService) lockoutPolicy() port.LockoutPolicy {
	return port.LockoutPolicy{
		Threshold:     s.lockoutThreshold(),
		FailureWindow: s.lockoutFailureWindow(),
		LockDuration:  s.lockoutDuration(),
	}
}

func (s *AuthService) lockoutThreshold() int {
	if s.cfg != nil && s.cfg.Security.LockoutThreshold > 0 {
		return s.cfg.Security.LockoutThreshold
	}
	return defaultLockoutThreshold
}

func (s *AuthService) lockoutFailureWindow() time.Duration {
	if s.cfg != nil && s.cfg.Security.LockoutFailureWindow > 0 {
		return s.cfg.Security.LockoutFailureWindow
	}
	return defaultLockoutFailureWindow
}

func (s *AuthService) lockoutDuration() time.Duration {
	if s.cfg != nil && s.cfg.Security.LockoutDuration > 0 {
		return s.cfg.Security.LockoutDuration
	}
	return defaultLockoutDuration
}

func (s *AuthService) challengeTTL() time.Duration {
	if s.cfg != nil && s.cfg.Security.TwoFactorChallengeTTL > 0 {
		return s.cfg.Security.TwoFactorChallengeTTL
	}
	return defaultChallengeTTL
}

func (s *AuthService) challengeMaxAttempts() int {
	if s.cfg != nil && s.cfg.Security.TwoFactorMaxAttempts > 0 {
		return s.cfg.Security.TwoFactorMaxAttempts
	}
	return defaultChallengeMaxAttempts
}

func (s *AuthService) sessionTTL() time.Duration {
	if s.cfg != nil && s.cfg.JWT.SessionTTL > 0 {
		return s.cfg.JWT.SessionTTL
	}
	return 0
}

func (s *AuthService) issuer() string {
	if s.cfg != nil {
		if issuer := strings.TrimSpace(s.cfg.JWT.Issuer); issuer != "" {
			return issuer
		}
	}
	return "catalog-iam"
}

func (s *AuthService) audience() []string {
	if s.cfg != nil {
		if audience := strings.TrimSpace(s.cfg.JWT.Audience); audience != "" {
			return []string{audience}
		}
	}
	return nil
}

func (s *AuthService) activeKeyID() string {
	if s.cfg != nil {
		if kid := strings.TrimSpace(s.cfg.JWT.ActiveKeyID); kid != "" {
			return kid
		}
	}
	return "primary"
}

func (s *AuthService) clockSkewGrace() time.Duration {
	if s.cfg != nil && s.cfg.JWT.ClockSkewGrace > 0 {
		return s.cfg.JWT.ClockSkewGrace
	}
	return 0
}
