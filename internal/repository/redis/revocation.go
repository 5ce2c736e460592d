package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/ordexa/catalog-iam/internal/core/port"
)

const defaultRevocationPrefix = "revoked"

// SessionRevocationStore persists revoked bearer token ids in Redis. Every
// validator instance reads the same keys, so a revocation written here is
// immediately visible across the fleet. Keys expire with the token so the
// registry does not grow without bound.
type SessionRevocationStore struct {
	client *red.Client
	prefix string
}

// NewSessionRevocationStore wires a Redis client into a revocation store.
func NewSessionRevocationStore(client *red.Client, keyPrefix string) *SessionRevocationStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}

	return &SessionRevocationStore{client: client, prefix: prefix}
}

// MarkSessionRevoked stores the supplied JTI with reason and TTL matching the remaining token lifetime.
func (s *SessionRevocationStore) MarkSessionRevoked(ctx context.Context, jti string, reason string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	key := s.key(jti)
	if key == "" {
		return errors.New("jti must not be empty")
	}

	value := strings.TrimSpace(reason)
	if value == "" {
		value = "session_revoked"
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked jti: %w", err)
	}

	return nil
}

// IsSessionRevoked reports whether the JTI has been revoked and returns the stored reason when present.
func (s *SessionRevocationStore) IsSessionRevoked(ctx context.Context, jti string) (bool, string, error) {
	key := s.key(jti)
	if key == "" {
		return false, "", errors.New("jti must not be empty")
	}

	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("redis get revoked jti: %w", err)
	}

	return true, value, nil
}

// ClearSessionRevocation removes the revocation entry, typically for tests.
func (s *SessionRevocationStore) ClearSessionRevocation(ctx context.Context, jti string) error {
	key := s.key(jti)
	if key == "" {
		return errors.New("jti must not be empty")
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete revoked jti: %w", err)
	}
	return nil
}

func (s *SessionRevocationStore) key(jti string) string {
	trimmed := strings.TrimSpace(jti)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, trimmed)
}

var _ port.SessionRevocationStore = (*SessionRevocationStore)(nil)
