package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func writeTestKey(t *testing.T, dir, kid string) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	path := filepath.Join(dir, kid+".pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	return key
}

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	writeTestKey(t, dir, "primary")

	provider, err := NewFileKeyProvider(dir)
	if err != nil {
		t.Fatalf("NewFileKeyProvider returned error: %v", err)
	}

	return NewJWTManager(provider)
}

func TestJWTManager_SignAndVerifySessionToken(t *testing.T) {
	manager := newTestManager(t)
	issuedAt := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	claims, err := NewSessionTokenClaims(SessionTokenOptions{
		AccountID: "acct-1",
		Role:      "user",
		Issuer:    "catalog-iam-test",
		Audience:  []string{"catalog-clients"},
		TTL:       15 * time.Minute,
		IssuedAt:  issuedAt,
	})
	if err != nil {
		t.Fatalf("NewSessionTokenClaims returned error: %v", err)
	}

	if claims.ID == "" {
		t.Fatalf("expected a generated jti")
	}
	if claims.Subject != "acct-1" {
		t.Fatalf("expected subject to default to the account id, got %s", claims.Subject)
	}
	if !claims.ExpiresAt.Time.Equal(issuedAt.Add(15 * time.Minute)) {
		t.Fatalf("expected expiry 15m after issue, got %v", claims.ExpiresAt.Time)
	}

	signed, err := manager.SignSessionToken("primary", claims)
	if err != nil {
		t.Fatalf("SignSessionToken returned error: %v", err)
	}

	parsed := &SessionTokenClaims{}
	token, err := jwt.ParseWithClaims(signed, parsed, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return manager.GetVerificationKey(kid)
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return issuedAt.Add(time.Minute) }))
	if err != nil {
		t.Fatalf("ParseWithClaims returned error: %v", err)
	}
	if !token.Valid {
		t.Fatalf("expected token to be valid")
	}

	if parsed.AccountID != "acct-1" || parsed.Role != "user" {
		t.Fatalf("expected account claims to survive the round trip, got %s/%s", parsed.AccountID, parsed.Role)
	}
	if parsed.Issuer != "catalog-iam-test" {
		t.Fatalf("expected issuer claim, got %s", parsed.Issuer)
	}
	if parsed.ID != claims.ID {
		t.Fatalf("expected jti %s, got %s", claims.ID, parsed.ID)
	}
}

func TestJWTManager_UnknownKid(t *testing.T) {
	manager := newTestManager(t)

	if _, err := manager.GetVerificationKey("retired"); !errors.Is(err, ErrKeyNotRegistered) {
		t.Fatalf("expected ErrKeyNotRegistered, got %v", err)
	}
	if _, err := manager.GetVerificationKey(""); !errors.Is(err, ErrKeyIDMissing) {
		t.Fatalf("expected ErrKeyIDMissing, got %v", err)
	}
}

func TestJWTManager_SignRequiresKid(t *testing.T) {
	manager := newTestManager(t)

	claims, err := NewSessionTokenClaims(SessionTokenOptions{
		AccountID: "acct-1",
		Issuer:    "catalog-iam-test",
	})
	if err != nil {
		t.Fatalf("NewSessionTokenClaims returned error: %v", err)
	}

	if _, err := manager.SignSessionToken("  ", claims); !errors.Is(err, ErrKeyIDMissing) {
		t.Fatalf("expected ErrKeyIDMissing, got %v", err)
	}
	if _, err := manager.SignSessionToken("primary", nil); err == nil {
		t.Fatalf("expected error for nil claims")
	}
}

func TestNewSessionTokenClaims_Validation(t *testing.T) {
	if _, err := NewSessionTokenClaims(SessionTokenOptions{Issuer: "catalog-iam-test"}); err == nil {
		t.Fatalf("expected error for missing account id")
	}
	if _, err := NewSessionTokenClaims(SessionTokenOptions{AccountID: "acct-1"}); err == nil {
		t.Fatalf("expected error for missing issuer")
	}
}

func TestJWTManager_JWKS(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		writeTestKey(t, dir, fmt.Sprintf("key-%d", i))
	}

	provider, err := NewFileKeyProvider(dir)
	if err != nil {
		t.Fatalf("NewFileKeyProvider returned error: %v", err)
	}
	manager := NewJWTManager(provider)

	raw, err := manager.JWKS()
	if err != nil {
		t.Fatalf("JWKS returned error: %v", err)
	}

	var payload struct {
		Keys []struct {
			Kty string `json:"kty"`
			Use string `json:"use"`
			Alg string `json:"alg"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal JWKS: %v", err)
	}

	if len(payload.Keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(payload.Keys))
	}
	for _, key := range payload.Keys {
		if key.Kty != "RSA" || key.Use != "sig" || key.Alg != "RS256" {
			t.Fatalf("unexpected key metadata: %+v", key)
		}
		if key.Kid == "" || key.N == "" || key.E == "" {
			t.Fatalf("expected populated key material: %+v", key)
		}
	}
}

func TestJWTManager_JWKS_Empty(t *testing.T) {
	manager := &JWTManager{publicKeys: map[string]*rsa.PublicKey{}}

	raw, err := manager.JWKS()
	if err != nil {
		t.Fatalf("JWKS returned error: %v", err)
	}
	if string(raw) != `{"keys":[]}` {
		t.Fatalf("expected empty key set, got %s", raw)
	}
}
