package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lottodesk/platform/internal/admission"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/guard"
	"github.com/lottodesk/platform/internal/infra"
	"github.com/lottodesk/platform/internal/ledger"
	"github.com/lottodesk/platform/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	// MaxBillItems caps the expanded line count of one submission.
	MaxBillItems = 500

	maxIdempotencyKey = 128
	maxRemark         = 500

	// EventLimitUsage is the limit board message sent after a committed bill.
	EventLimitUsage = "limit.usage"
)

// BillService submits and lists bills.
type BillService struct {
	db      DB
	ledger  *ledger.Engine
	bills   repository.BillRepository
	limiter guard.Limiter
	board   infra.Broadcaster
	metrics *infra.Metrics
	clock   Clock
	logger  *slog.Logger
}

// NewBillService creates a BillService. board and metrics may be nil.
func NewBillService(
	db DB,
	engine *ledger.Engine,
	bills repository.BillRepository,
	limiter guard.Limiter,
	board infra.Broadcaster,
	metrics *infra.Metrics,
	clock Clock,
	logger *slog.Logger,
) *BillService {
	return &BillService{
		db:      db,
		ledger:  engine,
		bills:   bills,
		limiter: limiter,
		board:   board,
		metrics: metrics,
		clock:   clock,
		logger:  logger,
	}
}

// ItemInput is one requested line as sent by the client. Amount is a pointer
// so a missing amount is rejected rather than read as zero.
type ItemInput struct {
	BetType domain.BetType   `json:"bet_type"`
	Number  string           `json:"number"`
	Amount  *decimal.Decimal `json:"amount"`
}

// SubmitInput is a bill submission. Items are evaluated in array order, flat
// items first, then the expansion of Groups.
type SubmitInput struct {
	Items          []ItemInput       `json:"items"`
	Groups         []domain.BetGroup `json:"groups"`
	Remark         *string           `json:"remark"`
	PeriodEnd      *time.Time        `json:"period_end"`
	IdempotencyKey string            `json:"-"`
}

// SubmitOutput is returned by Submit. Outcomes is empty on an idempotent replay.
type SubmitOutput struct {
	Bill       *domain.Bill
	Outcomes   []admission.Outcome
	Idempotent bool
	Reconcile  bool
}

// PreviewOutput is a dry-run admission.
type PreviewOutput struct {
	Outcomes []admission.Outcome `json:"outcomes"`
	Total    decimal.Decimal     `json:"total"`
}

// LimitUsageMessage is the limit board payload for one limit entry.
type LimitUsageMessage struct {
	LimitID     uuid.UUID       `json:"limit_id"`
	BetType     domain.BetType  `json:"bet_type"`
	Number      string          `json:"number"`
	AmountUsed  decimal.Decimal `json:"amount_used"`
	AmountLimit decimal.Decimal `json:"amount_limit"`
	Available   decimal.Decimal `json:"available"`
}

// Submit admits the requested items and stores the bill.
func (s *BillService) Submit(ctx context.Context, operatorID uuid.UUID, input SubmitInput) (*SubmitOutput, error) {
	if s.limiter != nil {
		if res := s.limiter.Check(ctx, "bills:"+operatorID.String()); !res.Allowed {
			return nil, domain.ErrRateLimited(res.Reason)
		}
	}

	items, err := s.requestedItems(input.Items, input.Groups)
	if err != nil {
		return nil, err
	}

	params := domain.SubmitBillParams{
		OperatorID: operatorID,
		Items:      items,
		PeriodEnd:  s.clock.periodEnd(),
	}
	if input.PeriodEnd != nil {
		params.PeriodEnd = *input.PeriodEnd
	}
	if input.Remark != nil {
		remark := strings.TrimSpace(*input.Remark)
		if len(remark) > maxRemark {
			return nil, domain.ErrValidation(fmt.Sprintf("remark must be at most %d characters", maxRemark))
		}
		params.Remark = &remark
	}
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		if len(key) > maxIdempotencyKey {
			return nil, domain.ErrValidation(fmt.Sprintf("Idempotency-Key must be at most %d characters", maxIdempotencyKey))
		}
		params.IdempotencyKey = &key
	}

	result, err := s.submitTx(ctx, params)
	if err != nil {
		return nil, err
	}

	out := &SubmitOutput{
		Bill:       result.Bill,
		Outcomes:   result.Admission.Outcomes,
		Idempotent: result.Idempotent,
		Reconcile:  result.Reconcile,
	}
	if result.Idempotent {
		return out, nil
	}

	s.observe(result)
	s.publishUsage(ctx, operatorID, result.Limits)

	s.logger.Info("bill submitted",
		"operator_id", operatorID,
		"bill_id", result.Bill.ID,
		"items", len(result.Bill.Items),
		"amount", result.Bill.Amount.String(),
		"reconcile", result.Reconcile,
	)
	return out, nil
}

// submitTx runs the ledger in one transaction. Two concurrent submissions
// with the same key race on the unique index; the loser returns the winner's
// bill.
func (s *BillService) submitTx(ctx context.Context, params domain.SubmitBillParams) (*ledger.SubmitResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.ledger.ExecuteSubmitBill(ctx, tx, params)
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) && appErr.Status < 500 {
			return nil, appErr
		}
		if params.IdempotencyKey != nil && repository.IsUniqueViolation(err) {
			_ = tx.Rollback(ctx)
			return s.replay(ctx, params.OperatorID, *params.IdempotencyKey)
		}
		return nil, domain.ErrInternal("submit bill", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if params.IdempotencyKey != nil && repository.IsUniqueViolation(err) {
			return s.replay(ctx, params.OperatorID, *params.IdempotencyKey)
		}
		return nil, domain.ErrInternal("commit tx", err)
	}
	return result, nil
}

func (s *BillService) replay(ctx context.Context, operatorID uuid.UUID, key string) (*ledger.SubmitResult, error) {
	existing, err := s.ledger.FindExistingBill(ctx, s.db, operatorID, key)
	if err != nil {
		return nil, domain.ErrInternal("find existing bill", err)
	}
	if existing == nil {
		return nil, domain.ErrConflict("bill with this Idempotency-Key is being submitted")
	}
	return &ledger.SubmitResult{Bill: existing, Idempotent: true}, nil
}

// Preview runs admission against the current rules without locking or
// persisting anything.
func (s *BillService) Preview(ctx context.Context, operatorID uuid.UUID, input SubmitInput) (*PreviewOutput, error) {
	items, err := s.requestedItems(input.Items, input.Groups)
	if err != nil {
		return nil, err
	}
	rules, err := s.ledger.SnapshotRuleSet(ctx, s.db, operatorID, items)
	if err != nil {
		return nil, domain.ErrInternal("load rules", err)
	}
	result := admission.Admit(rules, items)
	return &PreviewOutput{Outcomes: result.Outcomes, Total: result.Total}, nil
}

// List returns the operator's bills newest first within [From, Before).
func (s *BillService) List(ctx context.Context, operatorID uuid.UUID, filter domain.BillFilter) ([]domain.Bill, error) {
	if filter.From != nil && filter.Before != nil && !filter.From.Before(*filter.Before) {
		return nil, domain.ErrValidation("start must not be after end")
	}
	bills, err := s.bills.ListByOperator(ctx, s.db, operatorID, filter)
	if err != nil {
		return nil, domain.ErrInternal("list bills", err)
	}
	return bills, nil
}

func (s *BillService) requestedItems(flat []ItemInput, groups []domain.BetGroup) ([]domain.RequestedItem, error) {
	expanded, err := domain.ExpandGroups(groups)
	if err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	items := make([]domain.RequestedItem, 0, len(flat)+len(expanded))
	for i, in := range flat {
		if in.Amount == nil {
			return nil, domain.ErrValidation(fmt.Sprintf("item %d: amount is required", i))
		}
		items = append(items, domain.RequestedItem{BetType: in.BetType, Number: in.Number, Amount: *in.Amount})
	}
	items = append(items, expanded...)

	if len(items) == 0 {
		return nil, domain.ErrValidation("items must not be empty")
	}
	if len(items) > MaxBillItems {
		return nil, domain.ErrValidation(fmt.Sprintf("a bill may hold at most %d items", MaxBillItems))
	}
	requested := decimal.Zero
	for i, it := range items {
		if err := domain.ValidateNumber(it.BetType, it.Number); err != nil {
			return nil, domain.ErrValidation(fmt.Sprintf("item %d: %v", i, err))
		}
		if err := domain.ValidateMoney("amount", it.Amount); err != nil {
			return nil, domain.ErrValidation(fmt.Sprintf("item %d: %v", i, err))
		}
		requested = requested.Add(it.Amount)
	}
	// The admitted total never exceeds the requested one.
	if requested.GreaterThan(domain.MaxBillAmount) {
		return nil, domain.ErrValidation(fmt.Sprintf("bill total exceeds %s", domain.MaxBillAmount.StringFixed(2)))
	}
	return items, nil
}

func (s *BillService) observe(result *ledger.SubmitResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveAdmission(result.Admission.Counts())
	s.metrics.ObserveBill(result.Bill.Amount)
	if result.Reconcile {
		s.metrics.UsageReconcile.Inc()
	}
}

// publishUsage pushes the new usage of every touched limit to the operator's
// board. Delivery is best effort.
func (s *BillService) publishUsage(ctx context.Context, operatorID uuid.UUID, limits []domain.LimitNumber) {
	if s.board == nil || len(limits) == 0 {
		return
	}
	msgs := make([]LimitUsageMessage, len(limits))
	for i, l := range limits {
		msgs[i] = LimitUsageMessage{
			LimitID:     l.ID,
			BetType:     l.BetType,
			Number:      l.Number,
			AmountUsed:  l.AmountUsed,
			AmountLimit: l.AmountLimit,
			Available:   l.Available(),
		}
	}
	if err := s.board.Broadcast(ctx, infra.OperatorRoom(operatorID.String()), EventLimitUsage, msgs); err != nil {
		s.logger.Warn("limit board publish failed", "operator_id", operatorID, "error", err)
	}
}
