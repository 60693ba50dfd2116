package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/infra"
)

const billColumns = `id, operator_id, amount, remark, period_end, idempotency_key, created_at`

type billRepo struct{}

// NewBillRepository returns a pgx-backed BillRepository.
func NewBillRepository() BillRepository {
	return &billRepo{}
}

func (r *billRepo) FindByIdempotencyKey(ctx context.Context, db DBTX, operatorID uuid.UUID, key string) (*domain.Bill, error) {
	row := db.QueryRow(ctx, `
		SELECT `+billColumns+`
		FROM bills WHERE operator_id = $1 AND idempotency_key = $2`, operatorID, key)
	b, err := scanBill(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	bills := []domain.Bill{*b}
	if err := r.attachItems(ctx, db, bills); err != nil {
		return nil, err
	}
	return &bills[0], nil
}

// Insert stores the header first so the items' foreign key resolves.
func (r *billRepo) Insert(ctx context.Context, db DBTX, bill *domain.Bill) error {
	err := db.QueryRow(ctx, `
		INSERT INTO bills (id, operator_id, amount, remark, period_end, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		bill.ID, bill.OperatorID, infra.DecimalToNumeric(bill.Amount),
		bill.Remark, bill.PeriodEnd, bill.IdempotencyKey,
	).Scan(&bill.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}

	for i := range bill.Items {
		it := &bill.Items[i]
		it.BillID = bill.ID
		_, err := db.Exec(ctx, `
			INSERT INTO bill_items
			  (id, bill_id, position, bet_type, number, text, requested_amount, amount, status, won)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			it.ID, it.BillID, it.Position, string(it.BetType), it.Number, it.Text,
			infra.DecimalToNumeric(it.RequestedAmount), infra.DecimalToNumeric(it.Amount),
			string(it.Status), it.Won,
		)
		if err != nil {
			return fmt.Errorf("insert bill item %d: %w", it.Position, err)
		}
	}
	return nil
}

func (r *billRepo) ListByOperator(ctx context.Context, db DBTX, operatorID uuid.UUID, filter domain.BillFilter) ([]domain.Bill, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + billColumns + ` FROM bills WHERE operator_id = $1`)
	args := []interface{}{operatorID}
	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&sb, ` AND created_at >= $%d`, len(args))
	}
	if filter.Before != nil {
		args = append(args, *filter.Before)
		fmt.Fprintf(&sb, ` AND created_at < $%d`, len(args))
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)

	rows, err := db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	bills := []domain.Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		bills = append(bills, *b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}

	if err := r.attachItems(ctx, db, bills); err != nil {
		return nil, err
	}
	return bills, nil
}

// attachItems loads items for all bills in one query and distributes them.
func (r *billRepo) attachItems(ctx context.Context, db DBTX, bills []domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(bills))
	index := make(map[uuid.UUID]int, len(bills))
	for i := range bills {
		ids[i] = bills[i].ID
		index[bills[i].ID] = i
		bills[i].Items = []domain.BillItem{}
	}

	rows, err := db.Query(ctx, `
		SELECT id, bill_id, position, bet_type, number, text, requested_amount, amount, status, won
		FROM bill_items WHERE bill_id = ANY($1)
		ORDER BY bill_id, position`, ids)
	if err != nil {
		return fmt.Errorf("list bill items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.BillItem
		var betType, status string
		var requested, amount pgtype.Numeric
		if err := rows.Scan(&it.ID, &it.BillID, &it.Position, &betType, &it.Number, &it.Text,
			&requested, &amount, &status, &it.Won); err != nil {
			return fmt.Errorf("scan bill item: %w", err)
		}
		it.BetType = domain.BetType(betType)
		it.Status = domain.AdmissionStatus(status)
		if it.RequestedAmount, err = infra.NumericToDecimal(requested); err != nil {
			return fmt.Errorf("convert requested_amount: %w", err)
		}
		if it.Amount, err = infra.NumericToDecimal(amount); err != nil {
			return fmt.Errorf("convert item amount: %w", err)
		}
		i := index[it.BillID]
		bills[i].Items = append(bills[i].Items, it)
	}
	return rows.Err()
}

func scanBill(row pgx.Row) (*domain.Bill, error) {
	var b domain.Bill
	var amount pgtype.Numeric
	err := row.Scan(&b.ID, &b.OperatorID, &amount, &b.Remark, &b.PeriodEnd, &b.IdempotencyKey, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan bill: %w", err)
	}
	if b.Amount, err = infra.NumericToDecimal(amount); err != nil {
		return nil, fmt.Errorf("convert bill amount: %w", err)
	}
	return &b, nil
}
