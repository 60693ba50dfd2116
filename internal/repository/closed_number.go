package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lottodesk/platform/internal/domain"
)

const closedColumns = `id, operator_id, bet_type, number, text, period_end, created_at`

type closedNumberRepo struct{}

// NewClosedNumberRepository returns a pgx-backed ClosedNumberRepository.
func NewClosedNumberRepository() ClosedNumberRepository {
	return &closedNumberRepo{}
}

func (r *closedNumberRepo) ListByOperator(ctx context.Context, db DBTX, operatorID uuid.UUID) ([]domain.ClosedNumber, error) {
	rows, err := db.Query(ctx, `
		SELECT `+closedColumns+`
		FROM closed_numbers WHERE operator_id = $1
		ORDER BY bet_type, number`, operatorID)
	if err != nil {
		return nil, fmt.Errorf("list closed numbers: %w", err)
	}
	return collectClosed(rows)
}

func (r *closedNumberRepo) FindByNumber(ctx context.Context, db DBTX, operatorID uuid.UUID, betType domain.BetType, number string) (*domain.ClosedNumber, error) {
	row := db.QueryRow(ctx, `
		SELECT `+closedColumns+`
		FROM closed_numbers
		WHERE operator_id = $1 AND bet_type = $2 AND number = $3`,
		operatorID, string(betType), number)
	c, err := scanClosed(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *closedNumberRepo) ListByKeys(ctx context.Context, db DBTX, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.ClosedNumber, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	betTypes, numbers := splitKeys(keys)
	rows, err := db.Query(ctx, `
		SELECT `+closedColumns+`
		FROM closed_numbers
		WHERE operator_id = $1
		  AND (bet_type, number) IN (SELECT * FROM unnest($2::text[], $3::text[]))`,
		operatorID, betTypes, numbers)
	if err != nil {
		return nil, fmt.Errorf("list closed numbers by key: %w", err)
	}
	return collectClosed(rows)
}

func (r *closedNumberRepo) Create(ctx context.Context, db DBTX, c *domain.ClosedNumber) error {
	err := db.QueryRow(ctx, `
		INSERT INTO closed_numbers (id, operator_id, bet_type, number, text, period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		c.ID, c.OperatorID, string(c.BetType), c.Number, c.Text, c.PeriodEnd,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert closed number: %w", err)
	}
	return nil
}

func (r *closedNumberRepo) Delete(ctx context.Context, db DBTX, operatorID, id uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx,
		`DELETE FROM closed_numbers WHERE id = $1 AND operator_id = $2`, id, operatorID)
	if err != nil {
		return false, fmt.Errorf("delete closed number: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func collectClosed(rows pgx.Rows) ([]domain.ClosedNumber, error) {
	defer rows.Close()
	out := []domain.ClosedNumber{}
	for rows.Next() {
		c, err := scanClosed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanClosed(row pgx.Row) (*domain.ClosedNumber, error) {
	var c domain.ClosedNumber
	var betType string
	err := row.Scan(&c.ID, &c.OperatorID, &betType, &c.Number, &c.Text, &c.PeriodEnd, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan closed number: %w", err)
	}
	c.BetType = domain.BetType(betType)
	return &c, nil
}

func splitKeys(keys []domain.NumberKey) ([]string, []string) {
	betTypes := make([]string, len(keys))
	numbers := make([]string, len(keys))
	for i, k := range keys {
		betTypes[i] = string(k.BetType)
		numbers[i] = k.Number
	}
	return betTypes, numbers
}
