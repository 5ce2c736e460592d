package port

import (
	"context"

	"github.com/ordexa/catalog-iam/internal/core/domain"
)

// SecurityEventFilter narrows audit log reads.
type SecurityEventFilter struct {
	AccountID *string
	EventType *string
	Limit     int
	Offset    int
}

// SecurityEventRepository stores append-only security audit records.
type SecurityEventRepository interface {
	Insert(ctx context.Context, event domain.SecurityEvent) error
	List(ctx context.Context, filter SecurityEventFilter) ([]domain.SecurityEvent, error)
}
