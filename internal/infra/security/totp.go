package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/ordexa/catalog-iam/internal/core/port"
)

// ErrMissingSecret is returned when a TOTP secret is empty.
var ErrMissingSecret = errors.New("totp secret is required")

const (
	totpPeriod = 30
	totpDigits = otp.DigitsSix
	// One step of clock skew is accepted on either side of the current window.
	totpSkew = 1
)

// TOTPProvider generates and validates RFC 6238 time-based one-time codes.
type TOTPProvider struct {
	issuer string
}

// NewTOTPProvider constructs a provider labeling otpauth URIs with the given issuer.
func NewTOTPProvider(issuer string) *TOTPProvider {
	if strings.TrimSpace(issuer) == "" {
		issuer = "catalog-iam"
	}
	return &TOTPProvider{issuer: issuer}
}

// GenerateSecret creates a fresh TOTP secret and its provisioning URI.
func (p *TOTPProvider) GenerateSecret(accountEmail string) (port.TwoFactorEnrollment, error) {
	accountEmail = strings.TrimSpace(accountEmail)
	if accountEmail == "" {
		return port.TwoFactorEnrollment{}, fmt.Errorf("account email is required")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: accountEmail,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return port.TwoFactorEnrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}

	return port.TwoFactorEnrollment{
		Secret:     key.Secret(),
		OtpauthURI: key.URL(),
	}, nil
}

// ValidateCode checks the supplied code against the secret at the given moment,
// accepting one period of skew in either direction.
func (p *TOTPProvider) ValidateCode(secret, code string, at time.Time) (bool, error) {
	if strings.TrimSpace(secret) == "" {
		return false, ErrMissingSecret
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}

	valid, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("validate totp code: %w", err)
	}

	return valid, nil
}
