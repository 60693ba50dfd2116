package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lottodesk/platform/internal/admission"
	"github.com/lottodesk/platform/internal/domain"
)

// SubmitResult is the outcome of ExecuteSubmitBill.
type SubmitResult struct {
	Bill       *domain.Bill
	Admission  admission.Result
	Idempotent bool
	// Reconcile is set when the bill was stored but its limit usage was not.
	Reconcile bool
	// Limits holds the limit entries after their usage was incremented.
	Limits []domain.LimitNumber
}

// ExecuteSubmitBill admits the requested items and stores the bill.
// All steps run within the caller's transaction; the caller commits.
//
// A replayed idempotency key returns the stored bill without re-admitting.
// A submission in which every item admits zero is rejected and stores nothing.
func (e *Engine) ExecuteSubmitBill(ctx context.Context, tx pgx.Tx, params domain.SubmitBillParams) (*SubmitResult, error) {
	if len(params.Items) == 0 {
		return nil, domain.ErrValidation("items must not be empty")
	}

	if params.IdempotencyKey != nil {
		existing, err := e.FindExistingBill(ctx, tx, params.OperatorID, *params.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &SubmitResult{Bill: existing, Idempotent: true}, nil
		}
	}

	rules, err := e.LoadRuleSet(ctx, tx, params.OperatorID, params.Items)
	if err != nil {
		return nil, fmt.Errorf("submit bill: %w", err)
	}

	result := admission.Admit(rules, params.Items)
	if !result.Admissible() {
		return nil, domain.ErrNoAdmissibleItems()
	}

	bill, err := e.PostBill(ctx, tx, domain.PostBillParams{
		OperatorID:     params.OperatorID,
		Remark:         params.Remark,
		PeriodEnd:      params.PeriodEnd,
		IdempotencyKey: params.IdempotencyKey,
		Amount:         result.Total,
		Items:          billItems(result.Outcomes),
	})
	if err != nil {
		return nil, fmt.Errorf("submit bill post: %w", err)
	}

	limits, reconcile, err := e.ApplyLimitUsage(ctx, tx, params.OperatorID, bill.ID, result.Usage)
	if err != nil {
		return nil, fmt.Errorf("submit bill usage: %w", err)
	}

	return &SubmitResult{
		Bill:      bill,
		Admission: result,
		Reconcile: reconcile,
		Limits:    limits,
	}, nil
}

func billItems(outcomes []admission.Outcome) []domain.BillItem {
	items := make([]domain.BillItem, len(outcomes))
	for i, o := range outcomes {
		items[i] = domain.BillItem{
			ID:              uuid.New(),
			Position:        i,
			BetType:         o.BetType,
			Number:          o.Number,
			Text:            o.Text,
			RequestedAmount: o.Requested,
			Amount:          o.Amount,
			Status:          o.Status,
		}
	}
	return items
}
