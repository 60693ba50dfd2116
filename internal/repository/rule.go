package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lottodesk/platform/internal/domain"
)

type ruleRepo struct {
	closed ClosedNumberRepository
	limits LimitNumberRepository
}

// NewRuleRepository combines the closed and limit tables into the lookup primitive.
func NewRuleRepository(closed ClosedNumberRepository, limits LimitNumberRepository) RuleRepository {
	return &ruleRepo{closed: closed, limits: limits}
}

func (r *ruleRepo) Lookup(ctx context.Context, db DBTX, operatorID uuid.UUID, betType domain.BetType, number string) (*domain.ClosedNumber, *domain.LimitNumber, error) {
	c, err := r.closed.FindByNumber(ctx, db, operatorID, betType, number)
	if err != nil {
		return nil, nil, err
	}
	l, err := r.limits.FindByNumber(ctx, db, operatorID, betType, number)
	if err != nil {
		return nil, nil, err
	}
	return c, l, nil
}

func (r *ruleRepo) LockNumber(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, betType domain.BetType, number string) error {
	key := operatorID.String() + ":" + string(betType) + ":" + number
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock number %s: %w", key, err)
	}
	return nil
}
