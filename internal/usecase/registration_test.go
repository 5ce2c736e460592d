package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
	"github.com/ordexa/catalog-iam/internal/infra/security"
	"github.com/ordexa/catalog-iam/internal/repository"
)

const strongRegistrationPassword = "Sup3r!SecurePass#7890"

type mockAccountRepository struct {
	createErr      error
	createCalls    int
	createdAccount domain.Account

	getByIDResult *domain.Account
	getByIDErr    error
	getByIDCalls  int
	getByIDLastID string

	getByEmailResult *domain.Account
	getByEmailErr    error
	getByEmailCalls  int
	getByEmailLast   string

	updateStatusErr   error
	updateStatusCalls int
	updateStatusID    string
	updateStatusFrom  domain.AccountStatus
	updateStatusTo    domain.AccountStatus

	markVerifiedErr   error
	markVerifiedCalls int
	markVerifiedID    string

	recordFailureResult port.LoginFailure
	recordFailureErr    error
	recordFailureCalls  int
	recordFailurePolicy port.LockoutPolicy

	resetFailuresErr   error
	resetFailuresCalls int

	clearLockoutErr   error
	clearLockoutCalls int

	updatePasswordErr   error
	updatePasswordCalls int
	updatePasswordHash  string

	setPendingSecretErr   error
	setPendingSecretCalls int
	setPendingSecret      string

	confirmSecretErr   error
	confirmSecretCalls int

	clearSecretsErr   error
	clearSecretsCalls int

	listByStatusResult []domain.Account
	listByStatusErr    error
	listByStatusCalls  int
	listByStatusLimit  int
	listByStatusOffset int
}

func (m *mockAccountRepository) Create(_ context.Context, account domain.Account) error {
	m.createCalls++
	m.createdAccount = account
	return m.createErr
}

func (m *mockAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	m.getByIDCalls++
	m.getByIDLastID = id
	if m.getByIDResult != nil {
		copy := *m.getByIDResult
		return &copy, m.getByIDErr
	}
	return nil, m.getByIDErr
}

func (m *mockAccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.getByEmailCalls++
	m.getByEmailLast = email
	if m.getByEmailResult != nil {
		copy := *m.getByEmailResult
		return &copy, m.getByEmailErr
	}
	return nil, m.getByEmailErr
}

func (m *mockAccountRepository) UpdateStatus(_ context.Context, id string, from, to domain.AccountStatus) error {
	m.updateStatusCalls++
	m.updateStatusID = id
	m.updateStatusFrom = from
	m.updateStatusTo = to
	return m.updateStatusErr
}

func (m *mockAccountRepository) MarkEmailVerified(_ context.Context, id string, _ time.Time) error {
	m.markVerifiedCalls++
	m.markVerifiedID = id
	return m.markVerifiedErr
}

func (m *mockAccountRepository) RecordLoginFailure(_ context.Context, _ string, policy port.LockoutPolicy, _ time.Time) (port.LoginFailure, error) {
	m.recordFailureCalls++
	m.recordFailurePolicy = policy
	return m.recordFailureResult, m.recordFailureErr
}

func (m *mockAccountRepository) ResetLoginFailures(_ context.Context, _ string, _ time.Time) error {
	m.resetFailuresCalls++
	return m.resetFailuresErr
}

func (m *mockAccountRepository) ClearLockout(_ context.Context, _ string, _ time.Time) error {
	m.clearLockoutCalls++
	return m.clearLockoutErr
}

func (m *mockAccountRepository) UpdatePassword(_ context.Context, _ string, passwordHash string, _ time.Time) error {
	m.updatePasswordCalls++
	m.updatePasswordHash = passwordHash
	return m.updatePasswordErr
}

func (m *mockAccountRepository) SetPendingTwoFactorSecret(_ context.Context, _ string, secret string) error {
	m.setPendingSecretCalls++
	m.setPendingSecret = secret
	return m.setPendingSecretErr
}

func (m *mockAccountRepository) ConfirmTwoFactorSecret(_ context.Context, _ string) error {
	m.confirmSecretCalls++
	return m.confirmSecretErr
}

func (m *mockAccountRepository) ClearTwoFactorSecrets(_ context.Context, _ string) error {
	m.clearSecretsCalls++
	return m.clearSecretsErr
}

func (m *mockAccountRepository) ListByStatus(_ context.Context, _ domain.AccountStatus, limit, offset int) ([]domain.Account, error) {
	m.listByStatusCalls++
	m.listByStatusLimit = limit
	m.listByStatusOffset = offset
	if m.listByStatusErr != nil {
		return nil, m.listByStatusErr
	}
	out := make([]domain.Account, len(m.listByStatusResult))
	copy(out, m.listByStatusResult)
	return out, nil
}

type mockTokenRepository struct {
	createErr    error
	createCalls  int
	createdToken domain.ActionToken

	getByHashResult *domain.ActionToken
	getByHashErr    error
	getByHashCalls  int
	getByHashLast   string

	consumeResult  *domain.ActionToken
	consumeErr     error
	consumeCalls   int
	consumeLast    string
	consumePurpose domain.TokenPurpose

	revokeActiveErr   error
	revokeActiveCalls int
	revokeActiveCount int
}

func (m *mockTokenRepository) Create(_ context.Context, token domain.ActionToken) error {
	m.createCalls++
	m.createdToken = token
	return m.createErr
}

func (m *mockTokenRepository) GetByHash(_ context.Context, hash string, _ domain.TokenPurpose) (*domain.ActionToken, error) {
	m.getByHashCalls++
	m.getByHashLast = hash
	if m.getByHashResult != nil {
		copy := *m.getByHashResult
		return &copy, m.getByHashErr
	}
	return nil, m.getByHashErr
}

func (m *mockTokenRepository) Consume(_ context.Context, hash string, purpose domain.TokenPurpose, _ time.Time) (*domain.ActionToken, error) {
	m.consumeCalls++
	m.consumeLast = hash
	m.consumePurpose = purpose
	if m.consumeResult != nil {
		copy := *m.consumeResult
		return &copy, m.consumeErr
	}
	return nil, m.consumeErr
}

func (m *mockTokenRepository) RevokeActiveForAccount(_ context.Context, _ string, _ domain.TokenPurpose, _ time.Time) (int, error) {
	m.revokeActiveCalls++
	return m.revokeActiveCount, m.revokeActiveErr
}

type mockEventPublisher struct {
	registeredCalls int
	registeredEvent domain.AccountRegisteredEvent
	registeredErr   error

	verifiedCalls int
	verifiedEvent domain.EmailVerifiedEvent

	approvedCalls int
	approvedEvent domain.AccountApprovedEvent

	rejectedCalls int
	rejectedEvent domain.AccountRejectedEvent

	lockedCalls int
	lockedEvent domain.AccountLockedEvent

	sessionRevokedCalls int
	sessionRevokedEvent domain.SessionRevokedEvent

	passwordChangedCalls int
	passwordChangedEvent domain.PasswordChangedEvent
}

func (m *mockEventPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	m.registeredCalls++
	m.registeredEvent = event
	return m.registeredErr
}

func (m *mockEventPublisher) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	m.verifiedCalls++
	m.verifiedEvent = event
	return nil
}

func (m *mockEventPublisher) PublishAccountApproved(_ context.Context, event domain.AccountApprovedEvent) error {
	m.approvedCalls++
	m.approvedEvent = event
	return nil
}

func (m *mockEventPublisher) PublishAccountRejected(_ context.Context, event domain.AccountRejectedEvent) error {
	m.rejectedCalls++
	m.rejectedEvent = event
	return nil
}

func (m *mockEventPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	m.lockedCalls++
	m.lockedEvent = event
	return nil
}

func (m *mockEventPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	m.sessionRevokedCalls++
	m.sessionRevokedEvent = event
	return nil
}

func (m *mockEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	m.passwordChangedCalls++
	m.passwordChangedEvent = event
	return nil
}

type mockSecurityEventRepository struct {
	insertErr   error
	insertCalls int
	events      []domain.SecurityEvent

	listResult []domain.SecurityEvent
	listErr    error
	listCalls  int
	listFilter port.SecurityEventFilter
}

func (m *mockSecurityEventRepository) Insert(_ context.Context, event domain.SecurityEvent) error {
	m.insertCalls++
	m.events = append(m.events, event)
	return m.insertErr
}

func (m *mockSecurityEventRepository) List(_ context.Context, filter port.SecurityEventFilter) ([]domain.SecurityEvent, error) {
	m.listCalls++
	m.listFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.SecurityEvent, len(m.listResult))
	copy(out, m.listResult)
	return out, nil
}

func (m *mockSecurityEventRepository) lastEvent(t *testing.T) domain.SecurityEvent {
	t.Helper()
	if len(m.events) == 0 {
		t.Fatalf("expected at least one audit event")
	}
	return m.events[len(m.events)-1]
}

func newRegistrationService(accounts *mockAccountRepository, tokens *mockTokenRepository, publisher port.EventPublisher) (*RegistrationService, *mockSecurityEventRepository) {
	events := &mockSecurityEventRepository{}
	audit := NewAuditRecorder(events, nil)
	service := NewRegistrationService(nil, accounts, tokens, security.NewPasswordPolicy(), security.NewArgon2Hasher(), publisher, audit, nil)
	return service, events
}

func registrationInput(email string) RegisterAccountInput {
	return RegisterAccountInput{
		Email:         email,
		CompanyName:   "Nordwind Trading GmbH",
		CompanyNumber: "HRB-102030",
		ContactName:   "Alice Sommer",
		Password:      strongRegistrationPassword,
	}
}

func TestRegistrationService_RegisterAccount(t *testing.T) {
	accounts := &mockAccountRepository{}
	tokens := &mockTokenRepository{}

	service, events := newRegistrationService(accounts, tokens, nil)
	fixedNow := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return fixedNow })

	account, issued, err := service.RegisterAccount(context.Background(), registrationInput("Alice@Example.COM"))
	if err != nil {
		t.Fatalf("RegisterAccount returned error: %v", err)
	}

	if account.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %s", account.Email)
	}
	if account.Status != domain.AccountStatusPendingEmailVerification {
		t.Fatalf("expected status pending_email_verification, got %s", account.Status)
	}
	if account.Role != domain.RoleUser {
		t.Fatalf("expected role user, got %s", account.Role)
	}

	if accounts.createCalls != 1 {
		t.Fatalf("expected Create to be called once, got %d", accounts.createCalls)
	}
	if ok, err := security.VerifyPassword(strongRegistrationPassword, accounts.createdAccount.PasswordHash); err != nil || !ok {
		t.Fatalf("expected stored hash to match original password")
	}

	if issued == nil || issued.Token == "" {
		t.Fatalf("expected raw verification token")
	}
	if tokens.createCalls != 1 {
		t.Fatalf("expected token Create to be called once, got %d", tokens.createCalls)
	}
	if tokens.createdToken.AccountID != account.ID {
		t.Fatalf("expected token account id %s, got %s", account.ID, tokens.createdToken.AccountID)
	}
	if tokens.createdToken.TokenHash != security.HashToken(issued.Token) {
		t.Fatalf("expected stored hash of the raw token")
	}
	if tokens.createdToken.Purpose != domain.TokenPurposeEmailVerification {
		t.Fatalf("expected purpose email_verification, got %s", tokens.createdToken.Purpose)
	}
	if got := tokens.createdToken.ExpiresAt; !got.Equal(fixedNow.Add(24 * time.Hour)) {
		t.Fatalf("expected token to expire 24h after issue, got %v", got)
	}

	event := events.lastEvent(t)
	if event.EventType != domain.EventAccountRegistered || event.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected account.registered success audit event, got %s/%s", event.EventType, event.Outcome)
	}
	if event.AccountID == nil || *event.AccountID != account.ID {
		t.Fatalf("expected audit event tied to account %s", account.ID)
	}
}

func TestRegistrationService_RegisterAccount_PublishesEvent(t *testing.T) {
	accounts := &mockAccountRepository{}
	tokens := &mockTokenRepository{}
	publisher := &mockEventPublisher{}

	service, _ := newRegistrationService(accounts, tokens, publisher)
	fixedNow := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	service.WithClock(func() time.Time { return fixedNow })

	account, _, err := service.RegisterAccount(context.Background(), registrationInput("bob@example.com"))
	if err != nil {
		t.Fatalf("RegisterAccount returned error: %v", err)
	}

	if publisher.registeredCalls != 1 {
		t.Fatalf("expected publisher to be called once, got %d", publisher.registeredCalls)
	}

	event := publisher.registeredEvent
	if event.AccountID != account.ID {
		t.Fatalf("expected event account id %s, got %s", account.ID, event.AccountID)
	}
	if event.Email != "bob@example.com" {
		t.Fatalf("expected event email bob@example.com, got %s", event.Email)
	}
	if event.CompanyNumber != "HRB-102030" {
		t.Fatalf("expected event company number HRB-102030, got %s", event.CompanyNumber)
	}
	if !event.RegisteredAt.Equal(fixedNow) {
		t.Fatalf("expected registered_at %v, got %v", fixedNow, event.RegisteredAt)
	}
}

func TestRegistrationService_RegisterAccount_EventFailureDoesNotBlock(t *testing.T) {
	publisher := &mockEventPublisher{registeredErr: errors.New("kafka down")}

	service, _ := newRegistrationService(&mockAccountRepository{}, &mockTokenRepository{}, publisher)

	if _, _, err := service.RegisterAccount(context.Background(), registrationInput("carol@example.com")); err != nil {
		t.Fatalf("expected registration to succeed despite event failure, got %v", err)
	}

	if publisher.registeredCalls != 1 {
		t.Fatalf("expected publisher to be invoked even on failure")
	}
}

func TestRegistrationService_RegisterAccount_DuplicateEmail(t *testing.T) {
	accounts := &mockAccountRepository{createErr: repository.ErrDuplicateEmail}

	service, _ := newRegistrationService(accounts, &mockTokenRepository{}, nil)

	if _, _, err := service.RegisterAccount(context.Background(), registrationInput("dup@example.com")); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}
}

func TestRegistrationService_RegisterAccount_DuplicateCompanyNumber(t *testing.T) {
	accounts := &mockAccountRepository{createErr: repository.ErrDuplicateCompanyNumber}

	service, _ := newRegistrationService(accounts, &mockTokenRepository{}, nil)

	if _, _, err := service.RegisterAccount(context.Background(), registrationInput("dup2@example.com")); !errors.Is(err, ErrCompanyNumberAlreadyRegistered) {
		t.Fatalf("expected ErrCompanyNumberAlreadyRegistered, got %v", err)
	}
}

func TestRegistrationService_RegisterAccount_ValidationErrors(t *testing.T) {
	service, _ := newRegistrationService(&mockAccountRepository{}, &mockTokenRepository{}, nil)

	cases := []struct {
		name   string
		mutate func(*RegisterAccountInput)
	}{
		{"missing email", func(in *RegisterAccountInput) { in.Email = "" }},
		{"missing company name", func(in *RegisterAccountInput) { in.CompanyName = " " }},
		{"missing company number", func(in *RegisterAccountInput) { in.CompanyNumber = "" }},
		{"missing contact name", func(in *RegisterAccountInput) { in.ContactName = "" }},
		{"missing password", func(in *RegisterAccountInput) { in.Password = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := registrationInput("valid@example.com")
			tc.mutate(&input)
			if _, _, err := service.RegisterAccount(context.Background(), input); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestRegistrationService_RegisterAccount_PasswordPolicyViolation(t *testing.T) {
	accounts := &mockAccountRepository{}
	service, _ := newRegistrationService(accounts, &mockTokenRepository{}, nil)

	input := registrationInput("weak@example.com")
	input.Password = "password"

	if _, _, err := service.RegisterAccount(context.Background(), input); !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}
	if accounts.createCalls != 0 {
		t.Fatalf("expected account not to be created on policy failure")
	}
}

func TestRegistrationService_RegisterAccount_TokenError(t *testing.T) {
	tokens := &mockTokenRepository{createErr: errors.New("boom")}

	service, _ := newRegistrationService(&mockAccountRepository{}, tokens, nil)

	if _, _, err := service.RegisterAccount(context.Background(), registrationInput("tok@example.com")); err == nil || !strings.Contains(err.Error(), "create verification token") {
		t.Fatalf("expected create verification token error, got %v", err)
	}
}

func TestRegistrationService_VerifyEmail(t *testing.T) {
	raw := "raw-verification-token"
	accountID := "acct-1"

	verified := domain.Account{
		ID:     accountID,
		Email:  "alice@example.com",
		Status: domain.AccountStatusPendingAdminApproval,
	}

	accounts := &mockAccountRepository{getByIDResult: &verified}
	tokens := &mockTokenRepository{
		consumeResult: &domain.ActionToken{
			ID:        "token-1",
			AccountID: accountID,
			TokenHash: security.HashToken(raw),
			Purpose:   domain.TokenPurposeEmailVerification,
		},
	}
	publisher := &mockEventPublisher{}

	service, events := newRegistrationService(accounts, tokens, publisher)

	account, err := service.VerifyEmail(context.Background(), raw, RequestMeta{IP: "203.0.113.9"})
	if err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}

	if account.ID != accountID {
		t.Fatalf("expected account %s, got %s", accountID, account.ID)
	}
	if tokens.consumeCalls != 1 || tokens.consumeLast != security.HashToken(raw) {
		t.Fatalf("expected Consume to be called once with the token hash")
	}
	if tokens.consumePurpose != domain.TokenPurposeEmailVerification {
		t.Fatalf("expected consume purpose email_verification, got %s", tokens.consumePurpose)
	}
	if accounts.markVerifiedCalls != 1 || accounts.markVerifiedID != accountID {
		t.Fatalf("expected MarkEmailVerified for %s", accountID)
	}
	if accounts.updateStatusCalls != 1 ||
		accounts.updateStatusFrom != domain.AccountStatusPendingEmailVerification ||
		accounts.updateStatusTo != domain.AccountStatusPendingAdminApproval {
		t.Fatalf("expected transition pending_email_verification -> pending_admin_approval")
	}
	if publisher.verifiedCalls != 1 || publisher.verifiedEvent.AccountID != accountID {
		t.Fatalf("expected email verified event for %s", accountID)
	}

	event := events.lastEvent(t)
	if event.EventType != domain.EventEmailVerified || event.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected email_verified success audit event, got %s/%s", event.EventType, event.Outcome)
	}
}

func TestRegistrationService_VerifyEmail_Invalid(t *testing.T) {
	cases := []struct {
		name       string
		consumeErr error
	}{
		{"unknown token", repository.ErrNotFound},
		{"replayed token", repository.ErrConsumed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens := &mockTokenRepository{consumeErr: tc.consumeErr}
			service, _ := newRegistrationService(&mockAccountRepository{}, tokens, nil)

			if _, err := service.VerifyEmail(context.Background(), "some-token", RequestMeta{}); !errors.Is(err, ErrVerificationTokenInvalid) {
				t.Fatalf("expected ErrVerificationTokenInvalid, got %v", err)
			}
		})
	}
}

func TestRegistrationService_VerifyEmail_Expired(t *testing.T) {
	tokens := &mockTokenRepository{consumeErr: repository.ErrExpired}
	service, events := newRegistrationService(&mockAccountRepository{}, tokens, nil)

	if _, err := service.VerifyEmail(context.Background(), "stale-token", RequestMeta{}); !errors.Is(err, ErrVerificationTokenExpired) {
		t.Fatalf("expected ErrVerificationTokenExpired, got %v", err)
	}

	event := events.lastEvent(t)
	if event.Outcome != domain.OutcomeFailure {
		t.Fatalf("expected failure audit event, got %s", event.Outcome)
	}
}

func TestRegistrationService_VerifyEmail_StatusConflict(t *testing.T) {
	accounts := &mockAccountRepository{updateStatusErr: repository.ErrStatusConflict}
	tokens := &mockTokenRepository{
		consumeResult: &domain.ActionToken{
			ID:        "token-1",
			AccountID: "acct-1",
			Purpose:   domain.TokenPurposeEmailVerification,
		},
	}

	service, _ := newRegistrationService(accounts, tokens, nil)

	if _, err := service.VerifyEmail(context.Background(), "raced-token", RequestMeta{}); !errors.Is(err, ErrVerificationTokenInvalid) {
		t.Fatalf("expected ErrVerificationTokenInvalid on status conflict, got %v", err)
	}
}

func TestRegistrationService_VerifyEmail_EmptyToken(t *testing.T) {
	service, _ := newRegistrationService(&mockAccountRepository{}, &mockTokenRepository{}, nil)

	if _, err := service.VerifyEmail(context.Background(), "  ", RequestMeta{}); !errors.Is(err, ErrVerificationTokenInvalid) {
		t.Fatalf("expected ErrVerificationTokenInvalid for blank token, got %v", err)
	}
}
