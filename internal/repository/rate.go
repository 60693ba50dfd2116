package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/infra"
	"github.com/shopspring/decimal"
)

const rateColumns = `id, operator_id, bet_type, text, price, created_at, updated_at`

type rateRepo struct{}

// NewRateRepository returns a pgx-backed RateRepository.
func NewRateRepository() RateRepository {
	return &rateRepo{}
}

func (r *rateRepo) ListByOperator(ctx context.Context, db DBTX, operatorID uuid.UUID) ([]domain.Rate, error) {
	rows, err := db.Query(ctx, `
		SELECT `+rateColumns+`
		FROM rates WHERE operator_id = $1
		ORDER BY array_position(ARRAY['twoTop','twoBottom','threeTop','threeTote'], bet_type)`, operatorID)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer rows.Close()

	rates := []domain.Rate{}
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, *rate)
	}
	return rates, rows.Err()
}

func (r *rateRepo) Create(ctx context.Context, db DBTX, rate *domain.Rate) error {
	err := db.QueryRow(ctx, `
		INSERT INTO rates (id, operator_id, bet_type, text, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		rate.ID, rate.OperatorID, string(rate.BetType), rate.Text, infra.DecimalToNumeric(rate.Price),
	).Scan(&rate.CreatedAt, &rate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert rate: %w", err)
	}
	return nil
}

func (r *rateRepo) UpdatePrice(ctx context.Context, db DBTX, operatorID, id uuid.UUID, price decimal.Decimal) (*domain.Rate, error) {
	row := db.QueryRow(ctx, `
		UPDATE rates SET price = $1, updated_at = now()
		WHERE id = $2 AND operator_id = $3
		RETURNING `+rateColumns,
		infra.DecimalToNumeric(price), id, operatorID)
	rate, err := scanRate(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rate, err
}

func scanRate(row pgx.Row) (*domain.Rate, error) {
	var rate domain.Rate
	var betType string
	var price pgtype.Numeric
	err := row.Scan(&rate.ID, &rate.OperatorID, &betType, &rate.Text, &price, &rate.CreatedAt, &rate.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan rate: %w", err)
	}
	rate.BetType = domain.BetType(betType)
	if rate.Price, err = infra.NumericToDecimal(price); err != nil {
		return nil, fmt.Errorf("convert price: %w", err)
	}
	return &rate, nil
}
