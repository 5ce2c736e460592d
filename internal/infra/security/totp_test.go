package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestTOTPProvider_GenerateSecret(t *testing.T) {
	provider := NewTOTPProvider("catalog-iam-test")

	enrollment, err := provider.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}
	if enrollment.Secret == "" {
		t.Fatalf("expected non-empty secret")
	}
	if !strings.HasPrefix(enrollment.OtpauthURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning URI: %s", enrollment.OtpauthURI)
	}
	if !strings.Contains(enrollment.OtpauthURI, "catalog-iam-test") {
		t.Fatalf("expected issuer in provisioning URI: %s", enrollment.OtpauthURI)
	}

	if _, err := provider.GenerateSecret("  "); err == nil {
		t.Fatalf("expected error for empty account email")
	}
}

func TestTOTPProvider_ValidateCode(t *testing.T) {
	provider := NewTOTPProvider("catalog-iam-test")
	enrollment, err := provider.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}

	at := time.Date(2025, 5, 6, 12, 0, 15, 0, time.UTC)
	code, err := totp.GenerateCode(enrollment.Secret, at)
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}

	valid, err := provider.ValidateCode(enrollment.Secret, code, at)
	if err != nil {
		t.Fatalf("ValidateCode returned error: %v", err)
	}
	if !valid {
		t.Fatalf("expected current code to validate")
	}

	// One step of skew is tolerated on either side.
	valid, err = provider.ValidateCode(enrollment.Secret, code, at.Add(30*time.Second))
	if err != nil || !valid {
		t.Fatalf("expected code to validate one period late, got valid=%v err=%v", valid, err)
	}

	valid, err = provider.ValidateCode(enrollment.Secret, code, at.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("ValidateCode returned error: %v", err)
	}
	if valid {
		t.Fatalf("expected stale code to be rejected")
	}
}

func TestTOTPProvider_ValidateCode_WrongCode(t *testing.T) {
	provider := NewTOTPProvider("catalog-iam-test")
	enrollment, err := provider.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}

	at := time.Date(2025, 5, 6, 12, 0, 15, 0, time.UTC)
	code, err := totp.GenerateCode(enrollment.Secret, at)
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}
	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}

	valid, err := provider.ValidateCode(enrollment.Secret, wrong, at)
	if err != nil {
		t.Fatalf("ValidateCode returned error: %v", err)
	}
	if valid {
		t.Fatalf("expected wrong code to be rejected")
	}
}

func TestTOTPProvider_ValidateCode_MissingInputs(t *testing.T) {
	provider := NewTOTPProvider("catalog-iam-test")

	if _, err := provider.ValidateCode("", "123456", time.Now()); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}

	valid, err := provider.ValidateCode("JBSWY3DPEHPK3PXP", "  ", time.Now())
	if err != nil {
		t.Fatalf("ValidateCode returned error: %v", err)
	}
	if valid {
		t.Fatalf("expected empty code to be rejected")
	}
}
