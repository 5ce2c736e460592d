package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/repository"
)

func challengeFixture(now time.Time) domain.TwoFactorChallenge {
	return domain.TwoFactorChallenge{
		ID:        "chal-1",
		AccountID: "acct-1",
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
}

func TestTwoFactorChallengeStore_SaveAndGet(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewTwoFactorChallengeStore(client, "2fa:challenge")

	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)
	challenge := challengeFixture(now)

	if err := store.Save(ctx, challenge, 5*time.Minute); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	ttl := server.TTL("2fa:challenge:chal-1")
	if ttl <= 0 || ttl > 5*time.Minute {
		t.Fatalf("expected challenge key TTL, got %v", ttl)
	}

	got, err := store.Get(ctx, challenge.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.AccountID != challenge.AccountID {
		t.Fatalf("expected account %s, got %s", challenge.AccountID, got.AccountID)
	}
	if got.Attempts != 0 {
		t.Fatalf("expected zero attempts, got %d", got.Attempts)
	}
	if !got.CreatedAt.Equal(challenge.CreatedAt) {
		t.Fatalf("expected created_at %v, got %v", challenge.CreatedAt, got.CreatedAt)
	}
	if !got.ExpiresAt.Equal(challenge.ExpiresAt) {
		t.Fatalf("expected expires_at %v, got %v", challenge.ExpiresAt, got.ExpiresAt)
	}
}

func TestTwoFactorChallengeStore_SaveValidation(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewTwoFactorChallengeStore(client, "")

	ctx := context.Background()
	now := time.Now().UTC()

	challenge := challengeFixture(now)
	if err := store.Save(ctx, challenge, 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}

	challenge.ID = " "
	if err := store.Save(ctx, challenge, time.Minute); err == nil {
		t.Fatalf("expected error for empty challenge id")
	}

	challenge = challengeFixture(now)
	challenge.AccountID = ""
	if err := store.Save(ctx, challenge, time.Minute); err == nil {
		t.Fatalf("expected error for empty account id")
	}
}

func TestTwoFactorChallengeStore_GetMissing(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewTwoFactorChallengeStore(client, "2fa:challenge")

	if _, err := store.Get(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTwoFactorChallengeStore_IncrementAttempts(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewTwoFactorChallengeStore(client, "2fa:challenge")

	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, challengeFixture(now), 5*time.Minute); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	count, err := store.IncrementAttempts(ctx, "chal-1")
	if err != nil {
		t.Fatalf("IncrementAttempts returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected attempt count 1, got %d", count)
	}

	count, err = store.IncrementAttempts(ctx, "chal-1")
	if err != nil {
		t.Fatalf("IncrementAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected attempt count 2, got %d", count)
	}

	got, err := store.Get(ctx, "chal-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Attempts != 2 {
		t.Fatalf("expected stored attempts 2, got %d", got.Attempts)
	}

	if _, err := store.IncrementAttempts(ctx, "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing challenge, got %v", err)
	}
}

func TestTwoFactorChallengeStore_ConsumeIsSingleUse(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewTwoFactorChallengeStore(client, "2fa:challenge")

	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, challengeFixture(now), 5*time.Minute); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := store.Consume(ctx, "chal-1")
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if got.AccountID != "acct-1" {
		t.Fatalf("expected consumed challenge for acct-1, got %s", got.AccountID)
	}

	if _, err := store.Consume(ctx, "chal-1"); !errors.Is(err, repository.ErrConsumed) {
		t.Fatalf("expected ErrConsumed on second consume, got %v", err)
	}
}

func TestTwoFactorChallengeStore_Delete(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewTwoFactorChallengeStore(client, "2fa:challenge")

	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, challengeFixture(now), 5*time.Minute); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if err := store.Delete(ctx, "chal-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get(ctx, "chal-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if err := store.Delete(ctx, "chal-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for double delete, got %v", err)
	}
}

func TestTwoFactorChallengeStore_ExpiresWithTTL(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewTwoFactorChallengeStore(client, "2fa:challenge")

	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, challengeFixture(now), 5*time.Minute); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	server.FastForward(6 * time.Minute)

	if _, err := store.Get(ctx, "chal-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}
