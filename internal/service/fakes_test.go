package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/repository"
	"github.com/shopspring/decimal"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var uniqueViolation = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

// fixedClock pins "now" to 2026-03-05 10:00 in Bangkok.
func fixedClock() Clock {
	loc := time.FixedZone("ICT", 7*3600)
	return Clock{Location: loc, Now: func() time.Time {
		return time.Date(2026, 3, 5, 10, 0, 0, 0, loc)
	}}
}

// --- db / tx ---

// fakeDB hands out fakeTx values. Repositories are faked, so no SQL runs.
type fakeDB struct {
	repository.DBTX
	mu       sync.Mutex
	txs      []*fakeTx
	beginErr error
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	tx := &fakeTx{}
	d.txs = append(d.txs, tx)
	return tx, nil
}

func (d *fakeDB) commits() int {
	n := 0
	for _, tx := range d.txs {
		if tx.committed {
			n++
		}
	}
	return n
}

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	parent     *fakeTx
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return &fakeTx{parent: t}, nil }

func (t *fakeTx) Commit(context.Context) error {
	if !t.rolledBack {
		t.committed = true
	}
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// --- operators / rates / outbox ---

type fakeOperators struct {
	repository.OperatorRepository
	byID      map[uuid.UUID]*domain.Operator
	createErr error
}

func newFakeOperators() *fakeOperators {
	return &fakeOperators{byID: make(map[uuid.UUID]*domain.Operator)}
}

func (f *fakeOperators) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Operator, error) {
	return f.byID[id], nil
}

func (f *fakeOperators) FindByUsername(_ context.Context, _ repository.DBTX, username string) (*domain.Operator, error) {
	for _, op := range f.byID {
		if strings.EqualFold(op.Username, username) {
			return op, nil
		}
	}
	return nil, nil
}

func (f *fakeOperators) Create(_ context.Context, _ repository.DBTX, op *domain.Operator) error {
	if f.createErr != nil {
		return f.createErr
	}
	op.CreatedAt = time.Now()
	f.byID[op.ID] = op
	return nil
}

type fakeRates struct {
	repository.RateRepository
	rates []domain.Rate
}

func (f *fakeRates) ListByOperator(_ context.Context, _ repository.DBTX, operatorID uuid.UUID) ([]domain.Rate, error) {
	var out []domain.Rate
	for _, r := range f.rates {
		if r.OperatorID == operatorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRates) Create(_ context.Context, _ repository.DBTX, rate *domain.Rate) error {
	f.rates = append(f.rates, *rate)
	return nil
}

func (f *fakeRates) UpdatePrice(_ context.Context, _ repository.DBTX, operatorID, id uuid.UUID, price decimal.Decimal) (*domain.Rate, error) {
	for i := range f.rates {
		if f.rates[i].ID == id && f.rates[i].OperatorID == operatorID {
			f.rates[i].Price = price
			r := f.rates[i]
			return &r, nil
		}
	}
	return nil, nil
}

type fakeOutbox struct {
	repository.OutboxRepository
	drafts []domain.OutboxDraft
}

func (f *fakeOutbox) Insert(_ context.Context, _ repository.DBTX, draft domain.OutboxDraft) error {
	f.drafts = append(f.drafts, draft)
	return nil
}

type fakeGuard struct {
	locked   error
	attempts []bool
}

func (g *fakeGuard) CheckLocked(context.Context, string) error { return g.locked }

func (g *fakeGuard) RecordAttempt(_ context.Context, _, _ string, success bool) {
	g.attempts = append(g.attempts, success)
}

// --- rule tables ---

type fakeClosed struct {
	repository.ClosedNumberRepository
	entries   []domain.ClosedNumber
	createErr error
}

func (f *fakeClosed) ListByOperator(_ context.Context, _ repository.DBTX, operatorID uuid.UUID) ([]domain.ClosedNumber, error) {
	var out []domain.ClosedNumber
	for _, c := range f.entries {
		if c.OperatorID == operatorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClosed) ListByKeys(ctx context.Context, db repository.DBTX, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.ClosedNumber, error) {
	all, _ := f.ListByOperator(ctx, db, operatorID)
	var out []domain.ClosedNumber
	for _, c := range all {
		if hasKey(keys, c.Key()) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClosed) Create(_ context.Context, _ repository.DBTX, c *domain.ClosedNumber) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.entries = append(f.entries, *c)
	return nil
}

func (f *fakeClosed) Delete(_ context.Context, _ repository.DBTX, operatorID, id uuid.UUID) (bool, error) {
	for i, c := range f.entries {
		if c.ID == id && c.OperatorID == operatorID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeLimits struct {
	repository.LimitNumberRepository
	entries []domain.LimitNumber
}

func (f *fakeLimits) ListByOperator(_ context.Context, _ repository.DBTX, operatorID uuid.UUID) ([]domain.LimitNumber, error) {
	var out []domain.LimitNumber
	for _, l := range f.entries {
		if l.OperatorID == operatorID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLimits) ListByKeys(ctx context.Context, db repository.DBTX, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.LimitNumber, error) {
	all, _ := f.ListByOperator(ctx, db, operatorID)
	var out []domain.LimitNumber
	for _, l := range all {
		if hasKey(keys, l.Key()) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLimits) LockByKeys(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.LimitNumber, error) {
	return f.ListByKeys(ctx, tx, operatorID, keys)
}

func (f *fakeLimits) Create(_ context.Context, _ repository.DBTX, l *domain.LimitNumber) error {
	f.entries = append(f.entries, *l)
	return nil
}

func (f *fakeLimits) UpdateAmountLimit(_ context.Context, _ repository.DBTX, operatorID, id uuid.UUID, amountLimit decimal.Decimal) (*domain.LimitNumber, error) {
	for i := range f.entries {
		if f.entries[i].ID == id && f.entries[i].OperatorID == operatorID {
			f.entries[i].AmountLimit = amountLimit
			l := f.entries[i]
			return &l, nil
		}
	}
	return nil, nil
}

func (f *fakeLimits) IncrementUsage(_ context.Context, _ repository.DBTX, _ uuid.UUID, deltas []domain.LimitUsageDelta) ([]domain.LimitNumber, error) {
	var out []domain.LimitNumber
	for _, d := range deltas {
		for i := range f.entries {
			if f.entries[i].ID == d.LimitID {
				f.entries[i].AmountUsed = f.entries[i].AmountUsed.Add(d.Amount)
				out = append(out, f.entries[i])
			}
		}
	}
	return out, nil
}

func (f *fakeLimits) Delete(_ context.Context, _ repository.DBTX, operatorID, id uuid.UUID) (bool, error) {
	for i, l := range f.entries {
		if l.ID == id && l.OperatorID == operatorID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeRules struct {
	closed *fakeClosed
	limits *fakeLimits
	locks  []string
}

func (f *fakeRules) Lookup(_ context.Context, _ repository.DBTX, operatorID uuid.UUID, betType domain.BetType, number string) (*domain.ClosedNumber, *domain.LimitNumber, error) {
	key := domain.NumberKey{BetType: betType, Number: number}
	var c *domain.ClosedNumber
	var l *domain.LimitNumber
	for _, e := range f.closed.entries {
		if e.OperatorID == operatorID && e.Key() == key {
			e := e
			c = &e
		}
	}
	for _, e := range f.limits.entries {
		if e.OperatorID == operatorID && e.Key() == key {
			e := e
			l = &e
		}
	}
	return c, l, nil
}

func (f *fakeRules) LockNumber(_ context.Context, _ pgx.Tx, _ uuid.UUID, betType domain.BetType, number string) error {
	f.locks = append(f.locks, string(betType)+":"+number)
	return nil
}

// --- bills ---

type fakeBills struct {
	repository.BillRepository
	stored []*domain.Bill
	// raced is returned by lookups once an insert has hit insertErr, as if a
	// concurrent submission had committed first.
	raced     *domain.Bill
	insertErr error
	inserted  bool
}

func (f *fakeBills) FindByIdempotencyKey(_ context.Context, _ repository.DBTX, operatorID uuid.UUID, key string) (*domain.Bill, error) {
	if f.inserted && f.raced != nil {
		return f.raced, nil
	}
	for _, b := range f.stored {
		if b.OperatorID == operatorID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeBills) Insert(_ context.Context, _ repository.DBTX, bill *domain.Bill) error {
	f.inserted = true
	if f.insertErr != nil {
		return f.insertErr
	}
	bill.CreatedAt = time.Now()
	f.stored = append(f.stored, bill)
	return nil
}

func (f *fakeBills) ListByOperator(_ context.Context, _ repository.DBTX, operatorID uuid.UUID, _ domain.BillFilter) ([]domain.Bill, error) {
	var out []domain.Bill
	for i := len(f.stored) - 1; i >= 0; i-- {
		if f.stored[i].OperatorID == operatorID {
			out = append(out, *f.stored[i])
		}
	}
	return out, nil
}

// --- guards / board ---

type fakeLimiter struct{ allowed bool }

func (l fakeLimiter) Check(context.Context, string) domain.GuardResult {
	if l.allowed {
		return domain.GuardResult{Allowed: true}
	}
	return domain.GuardResult{Allowed: false, Reason: "rate limit exceeded", Guard: "rate_limiter"}
}

type boardMessage struct {
	room  string
	event string
	data  interface{}
}

type fakeBoard struct{ sent []boardMessage }

func (b *fakeBoard) Broadcast(_ context.Context, room, event string, data interface{}) error {
	b.sent = append(b.sent, boardMessage{room: room, event: event, data: data})
	return nil
}

func hasKey(keys []domain.NumberKey, k domain.NumberKey) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
