package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/infra/security"
	"github.com/ordexa/catalog-iam/internal/repository"
)

func newTwoFactorService(accounts *mockAccountRepository) (*TwoFactorService, *mockSecurityEventRepository) {
	events := &mockSecurityEventRepository{}
	audit := NewAuditRecorder(events, nil)
	service := NewTwoFactorService(accounts, security.NewTOTPProvider("catalog-iam-test"), security.NewArgon2Hasher(), audit, nil)
	return service, events
}

func TestTwoFactorService_Enroll(t *testing.T) {
	account := activeAccount(t)
	accounts := &mockAccountRepository{getByIDResult: account}

	service, _ := newTwoFactorService(accounts)

	enrollment, err := service.Enroll(context.Background(), account.ID, RequestMeta{})
	if err != nil {
		t.Fatalf("Enroll returned error: %v", err)
	}

	if enrollment.Secret == "" {
		t.Fatalf("expected a generated secret")
	}
	if enrollment.OtpauthURI == "" {
		t.Fatalf("expected an otpauth provisioning URI")
	}
	if accounts.setPendingSecretCalls != 1 {
		t.Fatalf("expected pending secret to be stored once, got %d", accounts.setPendingSecretCalls)
	}
	if accounts.setPendingSecret != enrollment.Secret {
		t.Fatalf("expected stored secret to match the returned one")
	}
}

func TestTwoFactorService_Enroll_AlreadyEnabled(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	account := activeAccount(t)
	account.TwoFactorSecret = &secret

	service, _ := newTwoFactorService(&mockAccountRepository{getByIDResult: account})

	if _, err := service.Enroll(context.Background(), account.ID, RequestMeta{}); !errors.Is(err, ErrTwoFactorAlreadyEnabled) {
		t.Fatalf("expected ErrTwoFactorAlreadyEnabled, got %v", err)
	}
}

func TestTwoFactorService_Confirm(t *testing.T) {
	fixedNow := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	provider := security.NewTOTPProvider("catalog-iam-test")
	enrollment, err := provider.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}

	account := activeAccount(t)
	account.TwoFactorPending = &enrollment.Secret

	accounts := &mockAccountRepository{getByIDResult: account}
	service, events := newTwoFactorService(accounts)
	service.WithClock(func() time.Time { return fixedNow })

	code, err := totp.GenerateCode(enrollment.Secret, fixedNow)
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}

	if err := service.Confirm(context.Background(), account.ID, code, RequestMeta{}); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}

	if accounts.confirmSecretCalls != 1 {
		t.Fatalf("expected ConfirmTwoFactorSecret to be called once, got %d", accounts.confirmSecretCalls)
	}

	event := events.lastEvent(t)
	if event.EventType != domain.EventTwoFactorEnrolled || event.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected twofactor.enrolled success audit event, got %s/%s", event.EventType, event.Outcome)
	}
}

func TestTwoFactorService_Confirm_NoPendingEnrollment(t *testing.T) {
	service, _ := newTwoFactorService(&mockAccountRepository{getByIDResult: activeAccount(t)})

	if err := service.Confirm(context.Background(), "acct-1", "123456", RequestMeta{}); !errors.Is(err, ErrEnrollmentNotPending) {
		t.Fatalf("expected ErrEnrollmentNotPending, got %v", err)
	}
}

func TestTwoFactorService_Confirm_WrongCode(t *testing.T) {
	fixedNow := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	provider := security.NewTOTPProvider("catalog-iam-test")
	enrollment, err := provider.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}

	account := activeAccount(t)
	account.TwoFactorPending = &enrollment.Secret

	accounts := &mockAccountRepository{getByIDResult: account}
	service, _ := newTwoFactorService(accounts)
	service.WithClock(func() time.Time { return fixedNow })

	valid, err := totp.GenerateCode(enrollment.Secret, fixedNow)
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}
	wrong := "000000"
	if wrong == valid {
		wrong = "111111"
	}

	if err := service.Confirm(context.Background(), account.ID, wrong, RequestMeta{}); !errors.Is(err, ErrTwoFactorCodeInvalid) {
		t.Fatalf("expected ErrTwoFactorCodeInvalid, got %v", err)
	}
	if accounts.confirmSecretCalls != 0 {
		t.Fatalf("expected no promotion on invalid code")
	}
}

func TestTwoFactorService_Confirm_RacedPromotion(t *testing.T) {
	fixedNow := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	provider := security.NewTOTPProvider("catalog-iam-test")
	enrollment, err := provider.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}

	account := activeAccount(t)
	account.TwoFactorPending = &enrollment.Secret

	accounts := &mockAccountRepository{
		getByIDResult:    account,
		confirmSecretErr: repository.ErrStatusConflict,
	}
	service, _ := newTwoFactorService(accounts)
	service.WithClock(func() time.Time { return fixedNow })

	code, err := totp.GenerateCode(enrollment.Secret, fixedNow)
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}

	if err := service.Confirm(context.Background(), account.ID, code, RequestMeta{}); !errors.Is(err, ErrEnrollmentNotPending) {
		t.Fatalf("expected ErrEnrollmentNotPending on raced promotion, got %v", err)
	}
}

func TestTwoFactorService_Disable(t *testing.T) {
	fixedNow := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	provider := security.NewTOTPProvider("catalog-iam-test")
	enrollment, err := provider.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}

	account := activeAccount(t)
	account.TwoFactorSecret = &enrollment.Secret

	accounts := &mockAccountRepository{getByIDResult: account}
	service, events := newTwoFactorService(accounts)
	service.WithClock(func() time.Time { return fixedNow })

	code, err := totp.GenerateCode(enrollment.Secret, fixedNow)
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}

	if err := service.Disable(context.Background(), account.ID, strongRegistrationPassword, code, RequestMeta{}); err != nil {
		t.Fatalf("Disable returned error: %v", err)
	}

	if accounts.clearSecretsCalls != 1 {
		t.Fatalf("expected secrets to be cleared once, got %d", accounts.clearSecretsCalls)
	}

	event := events.lastEvent(t)
	if event.EventType != domain.EventTwoFactorDisabled {
		t.Fatalf("expected twofactor.disabled audit event, got %s", event.EventType)
	}
}

func TestTwoFactorService_Disable_WrongPassword(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	account := activeAccount(t)
	account.TwoFactorSecret = &secret

	accounts := &mockAccountRepository{getByIDResult: account}
	service, _ := newTwoFactorService(accounts)

	if err := service.Disable(context.Background(), account.ID, "Wr0ng!Password#42", "123456", RequestMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if accounts.clearSecretsCalls != 0 {
		t.Fatalf("expected secrets to stay on wrong password")
	}
}

func TestTwoFactorService_Disable_NotEnabled(t *testing.T) {
	service, _ := newTwoFactorService(&mockAccountRepository{getByIDResult: activeAccount(t)})

	if err := service.Disable(context.Background(), "acct-1", strongRegistrationPassword, "123456", RequestMeta{}); !errors.Is(err, ErrTwoFactorNotEnabled) {
		t.Fatalf("expected ErrTwoFactorNotEnabled, got %v", err)
	}
}
