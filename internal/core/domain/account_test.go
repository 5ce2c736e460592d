package domain

import (
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "  Alice@Example.COM ", want: "alice@example.com"},
		{in: "bob@example.com", want: "bob@example.com"},
		{in: "\tCAROL@EXAMPLE.COM\n", want: "carol@example.com"},
	}

	for _, tc := range cases {
		if got := NormalizeEmail(tc.in); got != tc.want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAccount_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from AccountStatus
		to   AccountStatus
		want bool
	}{
		{AccountStatusPendingEmailVerification, AccountStatusPendingAdminApproval, true},
		{AccountStatusPendingEmailVerification, AccountStatusActive, false},
		{AccountStatusPendingEmailVerification, AccountStatusRejected, false},
		{AccountStatusPendingAdminApproval, AccountStatusActive, true},
		{AccountStatusPendingAdminApproval, AccountStatusRejected, true},
		{AccountStatusPendingAdminApproval, AccountStatusPendingEmailVerification, false},
		{AccountStatusActive, AccountStatusRejected, false},
		{AccountStatusActive, AccountStatusPendingAdminApproval, false},
		{AccountStatusRejected, AccountStatusActive, false},
		{AccountStatusRejected, AccountStatusPendingAdminApproval, false},
	}

	for _, tc := range cases {
		account := Account{Status: tc.from}
		if got := account.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseAccountStatus(t *testing.T) {
	for _, valid := range []string{
		"pending_email_verification",
		"pending_admin_approval",
		"active",
		"rejected",
	} {
		if _, ok := ParseAccountStatus(valid); !ok {
			t.Fatalf("expected %q to parse", valid)
		}
	}

	for _, invalid := range []string{"", "ACTIVE", "suspended"} {
		if _, ok := ParseAccountStatus(invalid); ok {
			t.Fatalf("expected %q to be rejected", invalid)
		}
	}
}

func TestParseAccountRole(t *testing.T) {
	if role, ok := ParseAccountRole("admin"); !ok || role != RoleAdmin {
		t.Fatalf("expected admin to parse, got %q ok=%v", role, ok)
	}
	if _, ok := ParseAccountRole("superuser"); ok {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestAccount_IsLocked(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	account := Account{}
	if account.IsLocked(now) {
		t.Fatalf("expected account without lockout to be unlocked")
	}

	until := now.Add(10 * time.Minute)
	account.LockedUntil = &until
	if !account.IsLocked(now) {
		t.Fatalf("expected account to be locked inside the window")
	}
	if account.IsLocked(until) {
		t.Fatalf("expected lockout to end exactly at the boundary")
	}
	if account.IsLocked(until.Add(time.Second)) {
		t.Fatalf("expected account to unlock after the window")
	}
}

func TestAccount_TwoFactorEnabled(t *testing.T) {
	account := Account{}
	if account.TwoFactorEnabled() {
		t.Fatalf("expected 2FA disabled without a secret")
	}

	empty := ""
	account.TwoFactorSecret = &empty
	if account.TwoFactorEnabled() {
		t.Fatalf("expected empty secret to count as disabled")
	}

	secret := "JBSWY3DPEHPK3PXP"
	account.TwoFactorSecret = &secret
	if !account.TwoFactorEnabled() {
		t.Fatalf("expected confirmed secret to enable 2FA")
	}

	pending := "PENDING"
	account.TwoFactorSecret = nil
	account.TwoFactorPending = &pending
	if account.TwoFactorEnabled() {
		t.Fatalf("expected pending enrollment not to enable 2FA")
	}
}

func TestActionToken_Lifecycle(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	token := ActionToken{ExpiresAt: now.Add(time.Hour)}

	if !token.IsActive(now) {
		t.Fatalf("expected fresh token to be active")
	}
	if token.IsExpired(now) {
		t.Fatalf("expected fresh token not to be expired")
	}
	if token.IsActive(now.Add(time.Hour)) {
		t.Fatalf("expected token to expire exactly at the boundary")
	}

	if !token.Consume(now) {
		t.Fatalf("expected first consume to succeed")
	}
	if token.UsedAt == nil || !token.UsedAt.Equal(now) {
		t.Fatalf("expected used_at to record the consume time")
	}
	if token.Consume(now.Add(time.Minute)) {
		t.Fatalf("expected second consume to fail")
	}
	if token.IsActive(now) {
		t.Fatalf("expected consumed token to be inactive")
	}
}

func TestActionToken_Revoke(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	token := ActionToken{ExpiresAt: now.Add(time.Hour)}

	if !token.Revoke(now) {
		t.Fatalf("expected first revoke to succeed")
	}
	if token.Revoke(now.Add(time.Minute)) {
		t.Fatalf("expected second revoke to fail")
	}
	if token.IsActive(now) {
		t.Fatalf("expected revoked token to be inactive")
	}
}

func TestTwoFactorChallenge_IsExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	challenge := TwoFactorChallenge{ExpiresAt: now.Add(5 * time.Minute)}

	if challenge.IsExpired(now) {
		t.Fatalf("expected challenge to be live before its deadline")
	}
	if !challenge.IsExpired(now.Add(5 * time.Minute)) {
		t.Fatalf("expected challenge to expire at the boundary")
	}
}
