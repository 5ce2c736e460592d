package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ordexa/catalog-iam/internal/core/domain"
	"github.com/ordexa/catalog-iam/internal/core/port"
	"github.com/ordexa/catalog-iam/internal/repository"
)

var (
	// ErrAccountNotFound indicates no account matches the supplied id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrApprovalConflict indicates the account is not awaiting an approval decision.
	ErrApprovalConflict = errors.New("account is not pending administrator approval")
)

const (
	defaultApprovalPageSize = 50
	maxApprovalPageSize     = 200
)

// ApprovalService drives the administrator decision on verified accounts.
// Only accounts in pending_admin_approval can be approved or rejected, and a
// decision is final.
type ApprovalService struct {
	accounts  port.AccountRepository
	publisher port.EventPublisher
	audit     *AuditRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewApprovalService constructs an ApprovalService.
func NewApprovalService(
	accounts port.AccountRepository,
	publisher port.EventPublisher,
	audit *AuditRecorder,
	logger *zap.Logger,
) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &ApprovalService{
		accounts:  accounts,
		publisher: publisher,
		audit:     audit,
		logger:    logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *ApprovalService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Approve activates a pending account. The status update carries the expected
// current status, so two racing decisions resolve to exactly one winner.
func (s *ApprovalService) Approve(ctx context.Context, accountID, approvedBy string, meta RequestMeta) (*domain.Account, error) {
	account, err := s.getPending(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateStatus(ctx, account.ID, domain.AccountStatusPendingAdminApproval, domain.AccountStatusActive); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrApprovalConflict
		}
		return nil, fmt.Errorf("approve account: %w", err)
	}

	now := s.now()
	account.Status = domain.AccountStatusActive
	account.UpdatedAt = now

	s.publishApproved(ctx, account.ID, approvedBy, now)
	s.audit.Record(ctx, &account.ID, domain.EventAccountApproved, domain.OutcomeSuccess, meta, map[string]any{
		"approved_by": approvedBy,
	})

	return account, nil
}

// Reject declines a pending account with a reason.
func (s *ApprovalService) Reject(ctx context.Context, accountID, rejectedBy, reason string, meta RequestMeta) (*domain.Account, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("rejection reason is required")
	}

	account, err := s.getPending(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateStatus(ctx, account.ID, domain.AccountStatusPendingAdminApproval, domain.AccountStatusRejected); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrApprovalConflict
		}
		return nil, fmt.Errorf("reject account: %w", err)
	}

	now := s.now()
	account.Status = domain.AccountStatusRejected
	account.UpdatedAt = now

	s.publishRejected(ctx, account.ID, rejectedBy, reason, now)
	s.audit.Record(ctx, &account.ID, domain.EventAccountRejected, domain.OutcomeSuccess, meta, map[string]any{
		"rejected_by": rejectedBy,
		"reason":      reason,
	})

	return account, nil
}

// ListPending pages through accounts awaiting a decision, oldest first.
func (s *ApprovalService) ListPending(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = defaultApprovalPageSize
	}
	if limit > maxApprovalPageSize {
		limit = maxApprovalPageSize
	}
	if offset < 0 {
		offset = 0
	}

	accounts, err := s.accounts.ListByStatus(ctx, domain.AccountStatusPendingAdminApproval, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list pending accounts: %w", err)
	}

	return accounts, nil
}

func (s *ApprovalService) getPending(ctx context.Context, accountID string) (*domain.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, ErrAccountNotFound
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	if account.Status != domain.AccountStatusPendingAdminApproval {
		return nil, ErrApprovalConflict
	}

	return account, nil
}

func (s *ApprovalService) publishApproved(ctx context.Context, accountID, approvedBy string, at time.Time) {
	if s.publisher == nil {
		return
	}

	event := domain.AccountApprovedEvent{
		EventID:    uuid.NewString(),
		AccountID:  accountID,
		ApprovedBy: approvedBy,
		ApprovedAt: at,
	}
	if err := s.publisher.PublishAccountApproved(ctx, event); err != nil {
		s.logger.Warn("publish account approved event failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}

func (s *ApprovalService) publishRejected(ctx context.Context, accountID, rejectedBy, reason string, at time.Time) {
	if s.publisher == nil {
		return
	}

	event := domain.AccountRejectedEvent{
		EventID:    uuid.NewString(),
		AccountID:  accountID,
		RejectedBy: rejectedBy,
		Reason:     reason,
		RejectedAt: at,
	}
	if err := s.publisher.PublishAccountRejected(ctx, event); err != nil {
		s.logger.Warn("publish account rejected event failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}
