package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lottodesk/platform/internal/admission"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/repository"
)

// Engine provides the foundational bill ledger operations:
//  1. FindExistingBill: idempotency check
//  2. LoadRuleSet: rule snapshot with limit rows locked for update
//  3. PostBill: bill header, items and outbox event
//  4. ApplyLimitUsage: usage increments, isolated in a savepoint
type Engine struct {
	closed repository.ClosedNumberRepository
	limits repository.LimitNumberRepository
	bills  repository.BillRepository
	outbox repository.OutboxRepository
	logger *slog.Logger
}

// NewEngine creates a ledger engine with the given repositories.
func NewEngine(
	closed repository.ClosedNumberRepository,
	limits repository.LimitNumberRepository,
	bills repository.BillRepository,
	outbox repository.OutboxRepository,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		closed: closed,
		limits: limits,
		bills:  bills,
		outbox: outbox,
		logger: logger,
	}
}

// FindExistingBill returns the bill already stored under key, or nil.
func (e *Engine) FindExistingBill(ctx context.Context, db repository.DBTX, operatorID uuid.UUID, key string) (*domain.Bill, error) {
	existing, err := e.bills.FindByIdempotencyKey(ctx, db, operatorID, key)
	if err != nil {
		return nil, fmt.Errorf("find existing bill: %w", err)
	}
	return existing, nil
}

// LoadRuleSet reads the closed entries and locks the limit entries that any
// item refers to. Must be called within a transaction; the locks hold until
// commit so concurrent submissions against the same limit serialize.
func (e *Engine) LoadRuleSet(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, items []domain.RequestedItem) (*admission.RuleSet, error) {
	keys := distinctKeys(items)
	closed, err := e.closed.ListByKeys(ctx, tx, operatorID, keys)
	if err != nil {
		return nil, fmt.Errorf("load closed numbers: %w", err)
	}
	limits, err := e.limits.LockByKeys(ctx, tx, operatorID, keys)
	if err != nil {
		return nil, fmt.Errorf("lock limit numbers: %w", err)
	}
	return admission.NewRuleSet(closed, limits), nil
}

// SnapshotRuleSet reads the same rules as LoadRuleSet without locking.
func (e *Engine) SnapshotRuleSet(ctx context.Context, db repository.DBTX, operatorID uuid.UUID, items []domain.RequestedItem) (*admission.RuleSet, error) {
	keys := distinctKeys(items)
	closed, err := e.closed.ListByKeys(ctx, db, operatorID, keys)
	if err != nil {
		return nil, fmt.Errorf("load closed numbers: %w", err)
	}
	limits, err := e.limits.ListByKeys(ctx, db, operatorID, keys)
	if err != nil {
		return nil, fmt.Errorf("load limit numbers: %w", err)
	}
	return admission.NewRuleSet(closed, limits), nil
}

// PostBill inserts the bill with all of its items and the submitted event.
func (e *Engine) PostBill(ctx context.Context, tx pgx.Tx, params domain.PostBillParams) (*domain.Bill, error) {
	bill := &domain.Bill{
		ID:             uuid.New(),
		OperatorID:     params.OperatorID,
		Amount:         params.Amount,
		Remark:         params.Remark,
		PeriodEnd:      params.PeriodEnd,
		IdempotencyKey: params.IdempotencyKey,
		Items:          params.Items,
	}
	if err := e.bills.Insert(ctx, tx, bill); err != nil {
		return nil, fmt.Errorf("insert bill: %w", err)
	}
	if err := e.outbox.Insert(ctx, tx, domain.NewBillSubmittedEvent(bill)); err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}
	return bill, nil
}

// ApplyLimitUsage adds the bill's usage deltas to their limit entries inside a
// savepoint. If the increments fail, the savepoint is rolled back, a reconcile
// event is queued and the bill stays; the returned flag reports that case.
// An error is returned only when the enclosing transaction itself is unusable.
func (e *Engine) ApplyLimitUsage(ctx context.Context, tx pgx.Tx, operatorID, billID uuid.UUID, deltas []domain.LimitUsageDelta) ([]domain.LimitNumber, bool, error) {
	if len(deltas) == 0 {
		return nil, false, nil
	}

	updated, applyErr := e.incrementInSavepoint(ctx, tx, operatorID, deltas)
	if applyErr == nil {
		if err := e.outbox.Insert(ctx, tx, domain.NewLimitUsageEvent(operatorID, billID, deltas, false, "")); err != nil {
			return nil, false, fmt.Errorf("insert outbox event: %w", err)
		}
		return updated, false, nil
	}

	e.logger.Error("limit usage not applied, bill kept for reconciliation",
		"operator_id", operatorID,
		"bill_id", billID,
		"deltas", len(deltas),
		"error", applyErr,
	)
	draft := domain.NewLimitUsageEvent(operatorID, billID, deltas, true, applyErr.Error())
	if err := e.outbox.Insert(ctx, tx, draft); err != nil {
		return nil, true, fmt.Errorf("insert reconcile event: %w", err)
	}
	return nil, true, nil
}

func (e *Engine) incrementInSavepoint(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, deltas []domain.LimitUsageDelta) ([]domain.LimitNumber, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin savepoint: %w", err)
	}
	updated, err := e.limits.IncrementUsage(ctx, sp, operatorID, deltas)
	if err != nil {
		_ = sp.Rollback(ctx)
		return nil, err
	}
	if err := sp.Commit(ctx); err != nil {
		return nil, fmt.Errorf("release savepoint: %w", err)
	}
	return updated, nil
}

func distinctKeys(items []domain.RequestedItem) []domain.NumberKey {
	seen := make(map[domain.NumberKey]struct{}, len(items))
	keys := make([]domain.NumberKey, 0, len(items))
	for _, it := range items {
		k := it.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
