package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
)

// SecurityEventRepository implements port.SecurityEventRepository using PostgreSQL.
// The table is append-only; there is no update or delete path.
type SecurityEventRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSecurityEventRepository wires a PostgreSQL-backed audit log.
func NewSecurityEventRepository(pool *pgxpool.Pool) *SecurityEventRepository {
	return &SecurityEventRepository{
		pool:    pool,
		exec:    pool,
		builder: newBuilder(),
	}
}

// Insert appends a security event record.
func (r *SecurityEventRepository) Insert(ctx context.Context, event domain.SecurityEvent) error {
	query := r.builder.Insert("accounts.security_events").
		Columns("id", "account_id", "event_type", "outcome", "ip", "user_agent", "detail", "created_at").
		Values(
			event.ID,
			event.AccountID,
			event.EventType,
			event.Outcome,
			event.IP,
			event.UserAgent,
			event.Detail,
			event.CreatedAt,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert security event sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}

	return nil
}

// List pages through the audit log, newest first.
func (r *SecurityEventRepository) List(ctx context.Context, filter port.SecurityEventFilter) ([]domain.SecurityEvent, error) {
	query := r.builder.Select("id", "account_id", "event_type", "outcome", "ip", "user_agent", "detail", "created_at").
		From("accounts.security_events").
		OrderBy("created_at DESC")

	if filter.AccountID != nil {
		query = query.Where(squirrel.Eq{"account_id": *filter.AccountID})
	}
	if filter.EventType != nil {
		query = query.Where(squirrel.Eq{"event_type": *filter.EventType})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list security events sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.SecurityEvent, 0)
	for rows.Next() {
		var event domain.SecurityEvent
		if err := rows.Scan(
			&event.ID,
			&event.AccountID,
			&event.EventType,
			&event.Outcome,
			&event.IP,
			&event.UserAgent,
			&event.Detail,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security events: %w", err)
	}

	return events, nil
}

var _ port.SecurityEventRepository = (*SecurityEventRepository)(nil)
