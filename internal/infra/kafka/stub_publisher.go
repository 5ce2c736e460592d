package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountRegistered logs account.registered events.
func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	payload := map[string]any{
		"email":          event.Email,
		"company_name":   event.CompanyName,
		"company_number": event.CompanyNumber,
		"registered_at":  event.RegisteredAt,
		"metadata":       event.Metadata,
	}
	p.logEvent("account.registered", event.AccountID, event.RegisteredAt, payload)
	return nil
}

// PublishEmailVerified logs account.email_verified events.
func (p *StubPublisher) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	payload := map[string]any{
		"verified_at": event.VerifiedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("account.email_verified", event.AccountID, event.VerifiedAt, payload)
	return nil
}

// PublishAccountApproved logs account.approved events.
func (p *StubPublisher) PublishAccountApproved(_ context.Context, event domain.AccountApprovedEvent) error {
	payload := map[string]any{
		"approved_by": event.ApprovedBy,
		"approved_at": event.ApprovedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("account.approved", event.AccountID, event.ApprovedAt, payload)
	return nil
}

// PublishAccountRejected logs account.rejected events.
func (p *StubPublisher) PublishAccountRejected(_ context.Context, event domain.AccountRejectedEvent) error {
	payload := map[string]any{
		"rejected_by": event.RejectedBy,
		"reason":      event.Reason,
		"rejected_at": event.RejectedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("account.rejected", event.AccountID, event.RejectedAt, payload)
	return nil
}

// PublishAccountLocked logs account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"failed_attempts": event.FailedAttempts,
		"locked_until":    event.LockedUntil,
		"locked_at":       event.LockedAt,
		"metadata":        event.Metadata,
	}
	p.logEvent("account.locked", event.AccountID, event.LockedAt, payload)
	return nil
}

// PublishSessionRevoked logs session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"jti":        event.JTI,
		"reason":     event.Reason,
		"revoked_at": event.RevokedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent("session.revoked", event.AccountID, event.RevokedAt, payload)
	return nil
}

// PublishPasswordChanged logs account.password_changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"changed_by": event.ChangedBy,
		"changed_at": event.ChangedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent("account.password_changed", event.AccountID, event.ChangedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
