package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/shopspring/decimal"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// OperatorRepository provides access to operators.
type OperatorRepository interface {
	// FindByID returns an operator by ID, or nil if absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Operator, error)

	// FindByUsername matches case-insensitively.
	FindByUsername(ctx context.Context, db DBTX, username string) (*domain.Operator, error)

	// Create inserts a new operator.
	Create(ctx context.Context, db DBTX, op *domain.Operator) error
}

// RateRepository provides access to rates.
type RateRepository interface {
	// ListByOperator returns the operator's rates in bet-type table order.
	ListByOperator(ctx context.Context, db DBTX, operatorID uuid.UUID) ([]domain.Rate, error)

	// Create inserts a rate row.
	Create(ctx context.Context, db DBTX, rate *domain.Rate) error

	// UpdatePrice sets the price of a rate owned by operatorID. Returns nil if
	// no such rate belongs to the operator.
	UpdatePrice(ctx context.Context, db DBTX, operatorID, id uuid.UUID, price decimal.Decimal) (*domain.Rate, error)
}

// ClosedNumberRepository provides access to closed_numbers.
type ClosedNumberRepository interface {
	ListByOperator(ctx context.Context, db DBTX, operatorID uuid.UUID) ([]domain.ClosedNumber, error)

	// FindByNumber returns the entry for (bet type, number), or nil.
	FindByNumber(ctx context.Context, db DBTX, operatorID uuid.UUID, betType domain.BetType, number string) (*domain.ClosedNumber, error)

	// ListByKeys returns the entries matching any of keys.
	ListByKeys(ctx context.Context, db DBTX, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.ClosedNumber, error)

	Create(ctx context.Context, db DBTX, c *domain.ClosedNumber) error

	// Delete removes an entry owned by operatorID and reports whether a row went away.
	Delete(ctx context.Context, db DBTX, operatorID, id uuid.UUID) (bool, error)
}

// LimitNumberRepository provides access to limit_numbers.
type LimitNumberRepository interface {
	ListByOperator(ctx context.Context, db DBTX, operatorID uuid.UUID) ([]domain.LimitNumber, error)

	// FindByNumber returns the entry for (bet type, number), or nil.
	FindByNumber(ctx context.Context, db DBTX, operatorID uuid.UUID, betType domain.BetType, number string) (*domain.LimitNumber, error)

	// ListByKeys returns the entries matching any of keys without locking.
	ListByKeys(ctx context.Context, db DBTX, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.LimitNumber, error)

	// LockByKeys acquires row-level locks (SELECT FOR UPDATE, ordered by id)
	// on the entries matching keys and returns them.
	LockByKeys(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.LimitNumber, error)

	Create(ctx context.Context, db DBTX, l *domain.LimitNumber) error

	// UpdateAmountLimit changes the cap only; amount_used is untouched.
	// Returns nil if no such entry belongs to the operator.
	UpdateAmountLimit(ctx context.Context, db DBTX, operatorID, id uuid.UUID, amountLimit decimal.Decimal) (*domain.LimitNumber, error)

	// IncrementUsage adds each delta to amount_used with server-side
	// arithmetic and returns the updated rows.
	IncrementUsage(ctx context.Context, db DBTX, operatorID uuid.UUID, deltas []domain.LimitUsageDelta) ([]domain.LimitNumber, error)

	// Delete removes an entry owned by operatorID and reports whether a row went away.
	Delete(ctx context.Context, db DBTX, operatorID, id uuid.UUID) (bool, error)
}

// RuleRepository is the lookup primitive over both rule tables.
type RuleRepository interface {
	// Lookup returns the closed entry and the limit entry for a number, if any.
	Lookup(ctx context.Context, db DBTX, operatorID uuid.UUID, betType domain.BetType, number string) (*domain.ClosedNumber, *domain.LimitNumber, error)

	// LockNumber takes a transaction-scoped advisory lock on (operator, bet
	// type, number) so close and limit of the same number serialize.
	LockNumber(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, betType domain.BetType, number string) error
}

// BillRepository provides access to bills and bill_items.
type BillRepository interface {
	// FindByIdempotencyKey returns the bill submitted under key, items included, or nil.
	FindByIdempotencyKey(ctx context.Context, db DBTX, operatorID uuid.UUID, key string) (*domain.Bill, error)

	// Insert writes the bill header and every item.
	Insert(ctx context.Context, db DBTX, bill *domain.Bill) error

	// ListByOperator returns bills newest first, each with items in position order.
	ListByOperator(ctx context.Context, db DBTX, operatorID uuid.UUID, filter domain.BillFilter) ([]domain.Bill, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the bill).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events, locking them with SKIP
	// LOCKED when db is a transaction so relays do not double-publish.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxEvent, error)

	// MarkPublished stamps published_at on the given events.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}

// LoginAttemptRepository provides access to login_attempts.
type LoginAttemptRepository interface {
	Record(ctx context.Context, db DBTX, attempt domain.LoginAttempt) error

	// CountFailuresSince counts failed attempts for username after the cutoff.
	CountFailuresSince(ctx context.Context, db DBTX, username string, since time.Time) (int, error)
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
