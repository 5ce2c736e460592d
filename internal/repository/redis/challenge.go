package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
	"github.com/ordexa/catalog-iam/internal/repository"
)

const (
	defaultChallengePrefix = "2fa:challenge"

	fieldAccountID = "account_id"
	fieldAttempts  = "attempts"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// TwoFactorChallengeStore keeps pending login challenges in Redis. The DEL
// reply count decides the single consumer: exactly one caller observes 1.
type TwoFactorChallengeStore struct {
	client *red.Client
	prefix string
}

// NewTwoFactorChallengeStore constructs a challenge store with the provided Redis client and key prefix.
func NewTwoFactorChallengeStore(client *red.Client, keyPrefix string) *TwoFactorChallengeStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}

	return &TwoFactorChallengeStore{
		client: client,
		prefix: prefix,
	}
}

// Save persists the challenge with the supplied TTL.
func (s *TwoFactorChallengeStore) Save(ctx context.Context, challenge domain.TwoFactorChallenge, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	key := s.key(challenge.ID)
	if key == "" {
		return errors.New("challenge id is required")
	}
	if strings.TrimSpace(challenge.AccountID) == "" {
		return errors.New("account id is required")
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldAccountID: challenge.AccountID,
		fieldAttempts:  strconv.Itoa(challenge.Attempts),
		fieldCreatedAt: strconv.FormatInt(challenge.CreatedAt.UTC().Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(challenge.ExpiresAt.UTC().Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store challenge: %w", err)
	}

	return nil
}

// Get retrieves the challenge without consuming it.
func (s *TwoFactorChallengeStore) Get(ctx context.Context, id string) (*domain.TwoFactorChallenge, error) {
	key := s.key(id)
	if key == "" {
		return nil, errors.New("challenge id is required")
	}

	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall challenge: %w", err)
	}

	return s.parse(id, values)
}

// IncrementAttempts increments the failed-attempt counter and returns the new value.
func (s *TwoFactorChallengeStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return 0, err
	}

	count, err := s.client.HIncrBy(ctx, s.key(id), fieldAttempts, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby challenge attempts: %w", err)
	}

	return int(count), nil
}

// Consume reads and deletes the challenge in one transaction. A second
// concurrent consumer sees a zero delete count and fails with ErrConsumed.
func (s *TwoFactorChallengeStore) Consume(ctx context.Context, id string) (*domain.TwoFactorChallenge, error) {
	key := s.key(id)
	if key == "" {
		return nil, errors.New("challenge id is required")
	}

	pipe := s.client.TxPipeline()
	getCmd := pipe.HGetAll(ctx, key)
	delCmd := pipe.Del(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis consume challenge: %w", err)
	}

	if delCmd.Val() == 0 {
		return nil, repository.ErrConsumed
	}

	return s.parse(id, getCmd.Val())
}

// Delete removes the challenge without returning it.
func (s *TwoFactorChallengeStore) Delete(ctx context.Context, id string) error {
	key := s.key(id)
	if key == "" {
		return errors.New("challenge id is required")
	}

	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis delete challenge: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (s *TwoFactorChallengeStore) parse(id string, values map[string]string) (*domain.TwoFactorChallenge, error) {
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	accountID := strings.TrimSpace(values[fieldAccountID])
	if accountID == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	attempts := 0
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			attempts = v
		}
	}

	return &domain.TwoFactorChallenge{
		ID:        id,
		AccountID: accountID,
		Attempts:  attempts,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *TwoFactorChallengeStore) key(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, trimmed)
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.TwoFactorChallengeStore = (*TwoFactorChallengeStore)(nil)
