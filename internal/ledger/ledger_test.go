package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

// fakeTx only supports savepoints; repositories are faked so no SQL runs.
type fakeTx struct {
	pgx.Tx
	savepoints int
	committed  int
	rolledBack int
	beginErr   error
	parent     *fakeTx
}

func (f *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.savepoints++
	return &fakeTx{parent: f}, nil
}

func (f *fakeTx) Commit(ctx context.Context) error {
	if f.parent != nil {
		f.parent.committed++
	}
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if f.parent != nil {
		f.parent.rolledBack++
	}
	return nil
}

type fakeClosed struct {
	repository.ClosedNumberRepository
	entries []domain.ClosedNumber
}

func (f *fakeClosed) ListByKeys(_ context.Context, _ repository.DBTX, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.ClosedNumber, error) {
	var out []domain.ClosedNumber
	for _, c := range f.entries {
		if c.OperatorID == operatorID && containsKey(keys, c.Key()) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeLimits struct {
	repository.LimitNumberRepository
	entries      []domain.LimitNumber
	locked       int
	incrementErr error
	increments   []domain.LimitUsageDelta
}

func (f *fakeLimits) match(operatorID uuid.UUID, keys []domain.NumberKey) []domain.LimitNumber {
	var out []domain.LimitNumber
	for _, l := range f.entries {
		if l.OperatorID == operatorID && containsKey(keys, l.Key()) {
			out = append(out, l)
		}
	}
	return out
}

func (f *fakeLimits) ListByKeys(_ context.Context, _ repository.DBTX, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.LimitNumber, error) {
	return f.match(operatorID, keys), nil
}

func (f *fakeLimits) LockByKeys(_ context.Context, _ pgx.Tx, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.LimitNumber, error) {
	f.locked++
	return f.match(operatorID, keys), nil
}

func (f *fakeLimits) IncrementUsage(_ context.Context, _ repository.DBTX, _ uuid.UUID, deltas []domain.LimitUsageDelta) ([]domain.LimitNumber, error) {
	if f.incrementErr != nil {
		return nil, f.incrementErr
	}
	var out []domain.LimitNumber
	for _, d := range deltas {
		for i := range f.entries {
			if f.entries[i].ID == d.LimitID {
				f.entries[i].AmountUsed = f.entries[i].AmountUsed.Add(d.Amount)
				out = append(out, f.entries[i])
			}
		}
	}
	f.increments = append(f.increments, deltas...)
	return out, nil
}

type fakeBills struct {
	repository.BillRepository
	stored    []*domain.Bill
	insertErr error
}

func (f *fakeBills) FindByIdempotencyKey(_ context.Context, _ repository.DBTX, operatorID uuid.UUID, key string) (*domain.Bill, error) {
	for _, b := range f.stored {
		if b.OperatorID == operatorID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeBills) Insert(_ context.Context, _ repository.DBTX, bill *domain.Bill) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.stored = append(f.stored, bill)
	return nil
}

type fakeOutbox struct {
	repository.OutboxRepository
	drafts []domain.OutboxDraft
}

func (f *fakeOutbox) Insert(_ context.Context, _ repository.DBTX, draft domain.OutboxDraft) error {
	f.drafts = append(f.drafts, draft)
	return nil
}

func (f *fakeOutbox) types() []domain.EventType {
	out := make([]domain.EventType, len(f.drafts))
	for i, d := range f.drafts {
		out[i] = d.EventType
	}
	return out
}

func containsKey(keys []domain.NumberKey, k domain.NumberKey) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}

type fixture struct {
	engine *Engine
	closed *fakeClosed
	limits *fakeLimits
	bills  *fakeBills
	outbox *fakeOutbox
	tx     *fakeTx
	op     uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		closed: &fakeClosed{},
		limits: &fakeLimits{},
		bills:  &fakeBills{},
		outbox: &fakeOutbox{},
		tx:     &fakeTx{},
		op:     uuid.New(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.engine = NewEngine(f.closed, f.limits, f.bills, f.outbox, logger)
	return f
}

func (f *fixture) addLimit(bt domain.BetType, number, amountLimit, used string) domain.LimitNumber {
	l := domain.LimitNumber{
		ID:          uuid.New(),
		OperatorID:  f.op,
		BetType:     bt,
		Number:      number,
		AmountLimit: decimal.RequireFromString(amountLimit),
		AmountUsed:  decimal.RequireFromString(used),
	}
	f.limits.entries = append(f.limits.entries, l)
	return l
}

func (f *fixture) addClosed(bt domain.BetType, number string) {
	f.closed.entries = append(f.closed.entries, domain.ClosedNumber{
		ID: uuid.New(), OperatorID: f.op, BetType: bt, Number: number,
	})
}

func req(bt domain.BetType, number, amount string) domain.RequestedItem {
	return domain.RequestedItem{BetType: bt, Number: number, Amount: decimal.RequireFromString(amount)}
}

func strPtr(s string) *string { return &s }

// --- ExecuteSubmitBill ---

func TestExecuteSubmitBill_StoresBillAndIncrementsUsage(t *testing.T) {
	f := newFixture()
	f.addClosed(domain.BetTwoTop, "13")
	l := f.addLimit(domain.BetThreeTop, "456", "100", "95")

	res, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, domain.SubmitBillParams{
		OperatorID: f.op,
		Items: []domain.RequestedItem{
			req(domain.BetTwoTop, "12", "50"),
			req(domain.BetTwoTop, "13", "40"),
			req(domain.BetThreeTop, "456", "30"),
		},
		Remark: strPtr("walk-in"),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Bill)
	assert.False(t, res.Idempotent)
	assert.False(t, res.Reconcile)

	assert.Equal(t, "55", res.Bill.Amount.String())
	require.Len(t, res.Bill.Items, 3)
	for i, it := range res.Bill.Items {
		assert.Equal(t, i, it.Position)
	}
	assert.Equal(t, domain.StatusAdmitted, res.Bill.Items[0].Status)
	assert.Equal(t, domain.StatusClosed, res.Bill.Items[1].Status)
	assert.Equal(t, domain.StatusOverLimit, res.Bill.Items[2].Status)
	assert.Equal(t, "5", res.Bill.Items[2].Amount.String())
	assert.Equal(t, "30", res.Bill.Items[2].RequestedAmount.String())

	assert.Equal(t, 1, f.limits.locked)
	require.Len(t, f.limits.increments, 1)
	assert.Equal(t, l.ID, f.limits.increments[0].LimitID)
	require.Len(t, res.Limits, 1)
	assert.Equal(t, "100", res.Limits[0].AmountUsed.String())

	assert.Equal(t, 1, f.tx.savepoints)
	assert.Equal(t, 1, f.tx.committed)
	assert.Equal(t, []domain.EventType{domain.EventBillSubmitted, domain.EventLimitUsageApplied}, f.outbox.types())
}

func TestExecuteSubmitBill_NothingAdmissibleStoresNothing(t *testing.T) {
	f := newFixture()
	f.addClosed(domain.BetTwoTop, "13")
	f.addLimit(domain.BetTwoBottom, "13", "50", "50")

	res, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, domain.SubmitBillParams{
		OperatorID: f.op,
		Items: []domain.RequestedItem{
			req(domain.BetTwoTop, "13", "10"),
			req(domain.BetTwoBottom, "13", "10"),
		},
	})
	assert.Nil(t, res)

	var appErr *domain.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NO_ADMISSIBLE_ITEMS", appErr.Code)
	assert.Empty(t, f.bills.stored)
	assert.Empty(t, f.outbox.drafts)
	assert.Empty(t, f.limits.increments)
}

func TestExecuteSubmitBill_EmptyItems(t *testing.T) {
	f := newFixture()
	_, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, domain.SubmitBillParams{OperatorID: f.op})

	var appErr *domain.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestExecuteSubmitBill_IdempotentReplay(t *testing.T) {
	f := newFixture()
	l := f.addLimit(domain.BetTwoTop, "19", "100", "0")
	params := domain.SubmitBillParams{
		OperatorID:     f.op,
		Items:          []domain.RequestedItem{req(domain.BetTwoTop, "19", "40")},
		IdempotencyKey: strPtr("abc-1"),
	}

	first, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, params)
	require.NoError(t, err)
	second, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, params)
	require.NoError(t, err)

	assert.True(t, second.Idempotent)
	assert.Equal(t, first.Bill.ID, second.Bill.ID)
	assert.Len(t, f.bills.stored, 1)
	assert.Len(t, f.limits.increments, 1)
	assert.Equal(t, "40", f.limits.entries[0].AmountUsed.String())
	assert.Equal(t, l.ID, f.limits.entries[0].ID)
}

func TestExecuteSubmitBill_KeysAreScopedPerOperator(t *testing.T) {
	f := newFixture()
	key := strPtr("shared")
	_, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, domain.SubmitBillParams{
		OperatorID: f.op, Items: []domain.RequestedItem{req(domain.BetTwoTop, "19", "10")}, IdempotencyKey: key,
	})
	require.NoError(t, err)

	other, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, domain.SubmitBillParams{
		OperatorID: uuid.New(), Items: []domain.RequestedItem{req(domain.BetTwoTop, "19", "10")}, IdempotencyKey: key,
	})
	require.NoError(t, err)
	assert.False(t, other.Idempotent)
	assert.Len(t, f.bills.stored, 2)
}

func TestExecuteSubmitBill_UsageFailureKeepsBill(t *testing.T) {
	f := newFixture()
	f.addLimit(domain.BetTwoTop, "19", "100", "0")
	f.limits.incrementErr = errors.New("deadlock detected")

	res, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, domain.SubmitBillParams{
		OperatorID: f.op,
		Items:      []domain.RequestedItem{req(domain.BetTwoTop, "19", "40")},
	})
	require.NoError(t, err)
	assert.True(t, res.Reconcile)
	assert.Len(t, f.bills.stored, 1)
	assert.Empty(t, res.Limits)
	assert.Equal(t, 1, f.tx.rolledBack)
	assert.Equal(t, 0, f.tx.committed)

	require.Equal(t, []domain.EventType{domain.EventBillSubmitted, domain.EventLimitUsageReconcile}, f.outbox.types())
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(f.outbox.drafts[1].Payload, &payload))
	assert.Equal(t, "deadlock detected", payload["error"])
}

func TestExecuteSubmitBill_SavepointFailureIsReconciled(t *testing.T) {
	f := newFixture()
	f.addLimit(domain.BetTwoTop, "19", "100", "0")
	f.tx.beginErr = errors.New("conn busy")

	res, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, domain.SubmitBillParams{
		OperatorID: f.op,
		Items:      []domain.RequestedItem{req(domain.BetTwoTop, "19", "40")},
	})
	require.NoError(t, err)
	assert.True(t, res.Reconcile)
	assert.Empty(t, f.limits.increments)
}

func TestExecuteSubmitBill_NoLimitsSkipsSavepoint(t *testing.T) {
	f := newFixture()

	res, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, domain.SubmitBillParams{
		OperatorID: f.op,
		Items:      []domain.RequestedItem{req(domain.BetTwoTop, "19", "40")},
	})
	require.NoError(t, err)
	assert.False(t, res.Reconcile)
	assert.Equal(t, 0, f.tx.savepoints)
	assert.Equal(t, []domain.EventType{domain.EventBillSubmitted}, f.outbox.types())
}

func TestExecuteSubmitBill_InsertErrorIsWrapped(t *testing.T) {
	f := newFixture()
	sentinel := errors.New("unique violation")
	f.bills.insertErr = sentinel

	_, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, domain.SubmitBillParams{
		OperatorID: f.op,
		Items:      []domain.RequestedItem{req(domain.BetTwoTop, "19", "40")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Empty(t, f.outbox.drafts)
}

func TestExecuteSubmitBill_OtherOperatorsRulesIgnored(t *testing.T) {
	f := newFixture()
	f.closed.entries = append(f.closed.entries, domain.ClosedNumber{
		ID: uuid.New(), OperatorID: uuid.New(), BetType: domain.BetTwoTop, Number: "19",
	})

	res, err := f.engine.ExecuteSubmitBill(context.Background(), f.tx, domain.SubmitBillParams{
		OperatorID: f.op,
		Items:      []domain.RequestedItem{req(domain.BetTwoTop, "19", "40")},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAdmitted, res.Bill.Items[0].Status)
}

// --- SnapshotRuleSet ---

func TestSnapshotRuleSet_DoesNotLock(t *testing.T) {
	f := newFixture()
	f.addLimit(domain.BetTwoTop, "19", "100", "0")

	rs, err := f.engine.SnapshotRuleSet(context.Background(), f.tx, f.op, []domain.RequestedItem{
		req(domain.BetTwoTop, "19", "1"),
	})
	require.NoError(t, err)
	_, l := rs.Lookup(domain.BetTwoTop, "19")
	assert.NotNil(t, l)
	assert.Equal(t, 0, f.limits.locked)
}

func TestDistinctKeys(t *testing.T) {
	keys := distinctKeys([]domain.RequestedItem{
		req(domain.BetTwoTop, "19", "1"),
		req(domain.BetTwoBottom, "19", "1"),
		req(domain.BetTwoTop, "19", "2"),
	})
	assert.Equal(t, []domain.NumberKey{
		{BetType: domain.BetTwoTop, Number: "19"},
		{BetType: domain.BetTwoBottom, Number: "19"},
	}, keys)
}
