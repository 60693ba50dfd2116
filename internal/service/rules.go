package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/repository"
	"github.com/shopspring/decimal"
)

// RuleService manages an operator's closed and limited numbers. A number is
// never both closed and limited for the same bet type.
type RuleService struct {
	db     DB
	closed repository.ClosedNumberRepository
	limits repository.LimitNumberRepository
	rules  repository.RuleRepository
	clock  Clock
	logger *slog.Logger
}

// NewRuleService creates a RuleService.
func NewRuleService(
	db DB,
	closed repository.ClosedNumberRepository,
	limits repository.LimitNumberRepository,
	rules repository.RuleRepository,
	clock Clock,
	logger *slog.Logger,
) *RuleService {
	return &RuleService{db: db, closed: closed, limits: limits, rules: rules, clock: clock, logger: logger}
}

// AddClosedInput is the request to close a number.
type AddClosedInput struct {
	BetType domain.BetType `json:"bet_type"`
	Number  string         `json:"number"`
	Text    string         `json:"text"`
}

// AddLimitInput is the request to cap a number.
type AddLimitInput struct {
	BetType     domain.BetType   `json:"bet_type"`
	Number      string           `json:"number"`
	Text        string           `json:"text"`
	AmountLimit *decimal.Decimal `json:"amount_limit"`
	PeriodEnd   *time.Time       `json:"period_end"`
}

// ListClosed returns the operator's closed numbers.
func (s *RuleService) ListClosed(ctx context.Context, operatorID uuid.UUID) ([]domain.ClosedNumber, error) {
	list, err := s.closed.ListByOperator(ctx, s.db, operatorID)
	if err != nil {
		return nil, domain.ErrInternal("list closed numbers", err)
	}
	return list, nil
}

// AddClosed closes a number. Conflicts with an existing closed or limit entry.
func (s *RuleService) AddClosed(ctx context.Context, operatorID uuid.UUID, input AddClosedInput) (*domain.ClosedNumber, error) {
	input.Number = strings.TrimSpace(input.Number)
	if err := domain.ValidateNumber(input.BetType, input.Number); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	entry := &domain.ClosedNumber{
		ID:         uuid.New(),
		OperatorID: operatorID,
		BetType:    input.BetType,
		Number:     input.Number,
		Text:       textOrDefault(input.Text, input.BetType),
		PeriodEnd:  s.clock.periodEnd(),
	}

	err := s.withNumberLock(ctx, operatorID, input.BetType, input.Number, func(tx repository.DBTX) error {
		return s.closed.Create(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("number closed", "operator_id", operatorID, "bet_type", entry.BetType, "number", entry.Number)
	return entry, nil
}

// RemoveClosed deletes a closed entry owned by the operator.
func (s *RuleService) RemoveClosed(ctx context.Context, operatorID, id uuid.UUID) error {
	ok, err := s.closed.Delete(ctx, s.db, operatorID, id)
	if err != nil {
		return domain.ErrInternal("delete closed number", err)
	}
	if !ok {
		return domain.ErrNotFound("closed number", id.String())
	}
	return nil
}

// ListLimits returns the operator's limit entries.
func (s *RuleService) ListLimits(ctx context.Context, operatorID uuid.UUID) ([]domain.LimitNumber, error) {
	list, err := s.limits.ListByOperator(ctx, s.db, operatorID)
	if err != nil {
		return nil, domain.ErrInternal("list limit numbers", err)
	}
	return list, nil
}

// AddLimit caps a number with zero usage. Conflicts with an existing closed or
// limit entry.
func (s *RuleService) AddLimit(ctx context.Context, operatorID uuid.UUID, input AddLimitInput) (*domain.LimitNumber, error) {
	input.Number = strings.TrimSpace(input.Number)
	if err := domain.ValidateNumber(input.BetType, input.Number); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if input.AmountLimit == nil {
		return nil, domain.ErrValidation("amount_limit is required")
	}
	if err := domain.ValidateMoney("amount_limit", *input.AmountLimit); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	periodEnd := s.clock.periodEnd()
	if input.PeriodEnd != nil {
		periodEnd = *input.PeriodEnd
	}

	entry := &domain.LimitNumber{
		ID:          uuid.New(),
		OperatorID:  operatorID,
		BetType:     input.BetType,
		Number:      input.Number,
		Text:        textOrDefault(input.Text, input.BetType),
		AmountLimit: *input.AmountLimit,
		AmountUsed:  decimal.Zero,
		PeriodEnd:   periodEnd,
	}

	err := s.withNumberLock(ctx, operatorID, input.BetType, input.Number, func(tx repository.DBTX) error {
		return s.limits.Create(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("number limited", "operator_id", operatorID, "bet_type", entry.BetType,
		"number", entry.Number, "amount_limit", entry.AmountLimit.String())
	return entry, nil
}

// UpdateLimitAmount changes the cap of a limit entry. Usage is kept, so the
// new cap may already be exceeded.
func (s *RuleService) UpdateLimitAmount(ctx context.Context, operatorID, id uuid.UUID, amountLimit decimal.Decimal) (*domain.LimitNumber, error) {
	if err := domain.ValidateMoney("amount_limit", amountLimit); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	entry, err := s.limits.UpdateAmountLimit(ctx, s.db, operatorID, id, amountLimit)
	if err != nil {
		return nil, domain.ErrInternal("update limit number", err)
	}
	if entry == nil {
		return nil, domain.ErrNotFound("limit number", id.String())
	}
	return entry, nil
}

// RemoveLimit deletes a limit entry owned by the operator.
func (s *RuleService) RemoveLimit(ctx context.Context, operatorID, id uuid.UUID) error {
	ok, err := s.limits.Delete(ctx, s.db, operatorID, id)
	if err != nil {
		return domain.ErrInternal("delete limit number", err)
	}
	if !ok {
		return domain.ErrNotFound("limit number", id.String())
	}
	return nil
}

// withNumberLock runs create under the per-number advisory lock after
// checking that neither rule table holds the number yet.
func (s *RuleService) withNumberLock(ctx context.Context, operatorID uuid.UUID, betType domain.BetType, number string, create func(tx repository.DBTX) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if err := s.rules.LockNumber(ctx, tx, operatorID, betType, number); err != nil {
		return domain.ErrInternal("lock number", err)
	}

	closed, limit, err := s.rules.Lookup(ctx, tx, operatorID, betType, number)
	if err != nil {
		return domain.ErrInternal("lookup number", err)
	}
	if closed != nil {
		return domain.ErrConflict("number " + number + " is already closed for " + string(betType))
	}
	if limit != nil {
		return domain.ErrConflict("number " + number + " already has a limit for " + string(betType))
	}

	if err := create(tx); err != nil {
		if repository.IsUniqueViolation(err) {
			return domain.ErrConflict("number " + number + " already has a rule for " + string(betType))
		}
		return domain.ErrInternal("create rule", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit tx", err)
	}
	return nil
}

func textOrDefault(text string, betType domain.BetType) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	return betType.Text()
}
