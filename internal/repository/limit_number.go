package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/infra"
	"github.com/shopspring/decimal"
)

const limitColumns = `id, operator_id, bet_type, number, text, amount_limit, amount_used, period_end, created_at, updated_at`

type limitNumberRepo struct{}

// NewLimitNumberRepository returns a pgx-backed LimitNumberRepository.
func NewLimitNumberRepository() LimitNumberRepository {
	return &limitNumberRepo{}
}

func (r *limitNumberRepo) ListByOperator(ctx context.Context, db DBTX, operatorID uuid.UUID) ([]domain.LimitNumber, error) {
	rows, err := db.Query(ctx, `
		SELECT `+limitColumns+`
		FROM limit_numbers WHERE operator_id = $1
		ORDER BY bet_type, number`, operatorID)
	if err != nil {
		return nil, fmt.Errorf("list limit numbers: %w", err)
	}
	return collectLimits(rows)
}

func (r *limitNumberRepo) FindByNumber(ctx context.Context, db DBTX, operatorID uuid.UUID, betType domain.BetType, number string) (*domain.LimitNumber, error) {
	row := db.QueryRow(ctx, `
		SELECT `+limitColumns+`
		FROM limit_numbers
		WHERE operator_id = $1 AND bet_type = $2 AND number = $3`,
		operatorID, string(betType), number)
	l, err := scanLimit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (r *limitNumberRepo) ListByKeys(ctx context.Context, db DBTX, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.LimitNumber, error) {
	return r.byKeys(ctx, db, operatorID, keys, "")
}

// LockByKeys orders by id so concurrent submissions lock rows in the same order.
func (r *limitNumberRepo) LockByKeys(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.LimitNumber, error) {
	return r.byKeys(ctx, tx, operatorID, keys, "ORDER BY id FOR UPDATE")
}

func (r *limitNumberRepo) byKeys(ctx context.Context, db DBTX, operatorID uuid.UUID, keys []domain.NumberKey, suffix string) ([]domain.LimitNumber, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	betTypes, numbers := splitKeys(keys)
	rows, err := db.Query(ctx, `
		SELECT `+limitColumns+`
		FROM limit_numbers
		WHERE operator_id = $1
		  AND (bet_type, number) IN (SELECT * FROM unnest($2::text[], $3::text[]))
		`+suffix,
		operatorID, betTypes, numbers)
	if err != nil {
		return nil, fmt.Errorf("list limit numbers by key: %w", err)
	}
	return collectLimits(rows)
}

func (r *limitNumberRepo) Create(ctx context.Context, db DBTX, l *domain.LimitNumber) error {
	err := db.QueryRow(ctx, `
		INSERT INTO limit_numbers (id, operator_id, bet_type, number, text, amount_limit, amount_used, period_end)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		RETURNING created_at, updated_at`,
		l.ID, l.OperatorID, string(l.BetType), l.Number, l.Text,
		infra.DecimalToNumeric(l.AmountLimit), l.PeriodEnd,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert limit number: %w", err)
	}
	l.AmountUsed = decimal.Zero
	return nil
}

func (r *limitNumberRepo) UpdateAmountLimit(ctx context.Context, db DBTX, operatorID, id uuid.UUID, amountLimit decimal.Decimal) (*domain.LimitNumber, error) {
	row := db.QueryRow(ctx, `
		UPDATE limit_numbers SET amount_limit = $1, updated_at = now()
		WHERE id = $2 AND operator_id = $3
		RETURNING `+limitColumns,
		infra.DecimalToNumeric(amountLimit), id, operatorID)
	l, err := scanLimit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// IncrementUsage uses server-side arithmetic so concurrent increments never
// overwrite each other.
func (r *limitNumberRepo) IncrementUsage(ctx context.Context, db DBTX, operatorID uuid.UUID, deltas []domain.LimitUsageDelta) ([]domain.LimitNumber, error) {
	updated := make([]domain.LimitNumber, 0, len(deltas))
	for _, d := range deltas {
		row := db.QueryRow(ctx, `
			UPDATE limit_numbers
			SET amount_used = amount_used + $1, updated_at = now()
			WHERE id = $2 AND operator_id = $3
			RETURNING `+limitColumns,
			infra.DecimalToNumeric(d.Amount), d.LimitID, operatorID)
		l, err := scanLimit(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("increment usage: limit %s no longer exists", d.LimitID)
		}
		if err != nil {
			return nil, fmt.Errorf("increment usage for %s: %w", d.LimitID, err)
		}
		updated = append(updated, *l)
	}
	return updated, nil
}

func (r *limitNumberRepo) Delete(ctx context.Context, db DBTX, operatorID, id uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx,
		`DELETE FROM limit_numbers WHERE id = $1 AND operator_id = $2`, id, operatorID)
	if err != nil {
		return false, fmt.Errorf("delete limit number: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func collectLimits(rows pgx.Rows) ([]domain.LimitNumber, error) {
	defer rows.Close()
	out := []domain.LimitNumber{}
	for rows.Next() {
		l, err := scanLimit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanLimit(row pgx.Row) (*domain.LimitNumber, error) {
	var l domain.LimitNumber
	var betType string
	var limitNum, usedNum pgtype.Numeric
	err := row.Scan(&l.ID, &l.OperatorID, &betType, &l.Number, &l.Text,
		&limitNum, &usedNum, &l.PeriodEnd, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan limit number: %w", err)
	}
	l.BetType = domain.BetType(betType)

	var convErr error
	l.AmountLimit, convErr = infra.NumericToDecimal(limitNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert amount_limit: %w", convErr)
	}
	l.AmountUsed, convErr = infra.NumericToDecimal(usedNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert amount_used: %w", convErr)
	}
	return &l, nil
}
