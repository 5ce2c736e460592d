package usecase

import (
	"context"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
)

// RequestMeta carries transport-level context attached to audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuditRecorder appends security events to the persistent audit log. A failed
// insert is logged and swallowed so audit trouble never blocks the guarded
// operation itself.
type AuditRecorder struct {
	events port.SecurityEventRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditRecorder constructs an AuditRecorder.
func NewAuditRecorder(events port.SecurityEventRepository, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the recorder clock for deterministic tests.
func (r *AuditRecorder) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Record appends one audit event. accountID may be nil for events that could
// not be tied to an account.
func (r *AuditRecorder) Record(ctx context.Context, accountID *string, eventType string, outcome domain.EventOutcome, meta RequestMeta, detail map[string]any) {
	if r == nil || r.events == nil {
		return
	}

	event := domain.SecurityEvent{
		ID:        uuid.NewString(),
		AccountID: accountID,
		EventType: eventType,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: r.now(),
	}

	if ip := strings.TrimSpace(meta.IP); ip != "" {
		event.IP = &ip
	}
	if ua := strings.TrimSpace(meta.UserAgent); ua != "" {
		event.UserAgent = &ua
	}

	if err := r.events.Insert(ctx, event); err != nil {
		r.logger.Warn("audit event insert failed",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// List pages through stored audit events, newest first.
func (r *AuditRecorder) List(ctx context.Context, filter port.SecurityEventFilter) ([]domain.SecurityEvent, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	return r.events.List(ctx, filter)
}
