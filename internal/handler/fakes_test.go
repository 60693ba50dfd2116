package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lottodesk/platform/internal/auth"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/ledger"
	"github.com/lottodesk/platform/internal/repository"
	"github.com/lottodesk/platform/internal/service"
	"github.com/shopspring/decimal"
)

// testAPI wires the real services over in-memory tables behind a chi router
// that authenticates every request as op.
type testAPI struct {
	router http.Handler
	op     uuid.UUID
	closed *memClosed
	limits *memLimits
	bills  *memBills
	rates  *memRates
}

func newTestAPI() *testAPI {
	a := &testAPI{
		op:     uuid.New(),
		closed: &memClosed{},
		limits: &memLimits{},
		bills:  &memBills{},
		rates:  &memRates{},
	}
	db := &memDB{}
	logger := noopLogger()
	loc := time.FixedZone("ICT", 7*3600)
	clock := service.Clock{Location: loc, Now: func() time.Time {
		return time.Date(2026, 3, 5, 10, 0, 0, 0, loc)
	}}

	engine := ledger.NewEngine(a.closed, a.limits, a.bills, memOutbox{}, logger)
	billH := NewBillHandler(service.NewBillService(db, engine, a.bills, nil, nil, nil, clock, logger), loc, logger)
	ruleH := NewRuleHandler(service.NewRuleService(db, a.closed, a.limits, memRules{a.closed, a.limits}, clock, logger), logger)
	rateH := NewRateHandler(service.NewRateService(db, a.rates), logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims := &auth.Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: a.op.String()},
				Realm:            auth.RealmOperator,
			}
			next.ServeHTTP(w, req.WithContext(auth.WithClaims(req.Context(), claims)))
		})
	})
	r.Post("/bills", billH.Submit)
	r.Post("/bills/preview", billH.Preview)
	r.Post("/limit-numbers", ruleH.AddLimit)
	r.Patch("/limit-numbers/{id}", ruleH.UpdateLimitAmount)
	r.Patch("/rates/{id}", rateH.UpdatePrice)
	a.router = r
	return a
}

func (a *testAPI) do(t *testing.T, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) close(bt domain.BetType, number string) {
	a.closed.entries = append(a.closed.entries, domain.ClosedNumber{ID: uuid.New(), OperatorID: a.op, BetType: bt, Number: number})
}

func (a *testAPI) limit(bt domain.BetType, number, amountLimit, used string) domain.LimitNumber {
	l := domain.LimitNumber{
		ID:          uuid.New(),
		OperatorID:  a.op,
		BetType:     bt,
		Number:      number,
		AmountLimit: decimal.RequireFromString(amountLimit),
		AmountUsed:  decimal.RequireFromString(used),
	}
	a.limits.entries = append(a.limits.entries, l)
	return l
}

// --- db / tx ---

type memDB struct{ repository.DBTX }

func (memDB) Begin(context.Context) (pgx.Tx, error) { return &memTx{}, nil }

type memTx struct {
	pgx.Tx
	done bool
}

func (t *memTx) Begin(context.Context) (pgx.Tx, error) { return &memTx{}, nil }

func (t *memTx) Commit(context.Context) error {
	t.done = true
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	return nil
}

// --- tables ---

type memClosed struct {
	repository.ClosedNumberRepository
	entries []domain.ClosedNumber
}

func (m *memClosed) ListByKeys(_ context.Context, _ repository.DBTX, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.ClosedNumber, error) {
	var out []domain.ClosedNumber
	for _, c := range m.entries {
		if c.OperatorID == operatorID && containsKey(keys, c.Key()) {
			out = append(out, c)
		}
	}
	return out, nil
}

type memLimits struct {
	repository.LimitNumberRepository
	entries []domain.LimitNumber
}

func (m *memLimits) ListByKeys(_ context.Context, _ repository.DBTX, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.LimitNumber, error) {
	var out []domain.LimitNumber
	for _, l := range m.entries {
		if l.OperatorID == operatorID && containsKey(keys, l.Key()) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLimits) LockByKeys(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, keys []domain.NumberKey) ([]domain.LimitNumber, error) {
	return m.ListByKeys(ctx, tx, operatorID, keys)
}

func (m *memLimits) Create(_ context.Context, _ repository.DBTX, l *domain.LimitNumber) error {
	m.entries = append(m.entries, *l)
	return nil
}

func (m *memLimits) UpdateAmountLimit(_ context.Context, _ repository.DBTX, operatorID, id uuid.UUID, amountLimit decimal.Decimal) (*domain.LimitNumber, error) {
	for i := range m.entries {
		if m.entries[i].ID == id && m.entries[i].OperatorID == operatorID {
			m.entries[i].AmountLimit = amountLimit
			l := m.entries[i]
			return &l, nil
		}
	}
	return nil, nil
}

func (m *memLimits) IncrementUsage(_ context.Context, _ repository.DBTX, _ uuid.UUID, deltas []domain.LimitUsageDelta) ([]domain.LimitNumber, error) {
	var out []domain.LimitNumber
	for _, d := range deltas {
		for i := range m.entries {
			if m.entries[i].ID == d.LimitID {
				m.entries[i].AmountUsed = m.entries[i].AmountUsed.Add(d.Amount)
				out = append(out, m.entries[i])
			}
		}
	}
	return out, nil
}

type memRules struct {
	closed *memClosed
	limits *memLimits
}

func (m memRules) Lookup(_ context.Context, _ repository.DBTX, operatorID uuid.UUID, betType domain.BetType, number string) (*domain.ClosedNumber, *domain.LimitNumber, error) {
	key := domain.NumberKey{BetType: betType, Number: number}
	var c *domain.ClosedNumber
	var l *domain.LimitNumber
	for i := range m.closed.entries {
		if e := m.closed.entries[i]; e.OperatorID == operatorID && e.Key() == key {
			c = &e
		}
	}
	for i := range m.limits.entries {
		if e := m.limits.entries[i]; e.OperatorID == operatorID && e.Key() == key {
			l = &e
		}
	}
	return c, l, nil
}

func (memRules) LockNumber(context.Context, pgx.Tx, uuid.UUID, domain.BetType, string) error {
	return nil
}

type memBills struct {
	repository.BillRepository
	stored []*domain.Bill
}

func (m *memBills) FindByIdempotencyKey(_ context.Context, _ repository.DBTX, operatorID uuid.UUID, key string) (*domain.Bill, error) {
	for _, b := range m.stored {
		if b.OperatorID == operatorID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return b, nil
		}
	}
	return nil, nil
}

func (m *memBills) Insert(_ context.Context, _ repository.DBTX, bill *domain.Bill) error {
	bill.CreatedAt = time.Now()
	m.stored = append(m.stored, bill)
	return nil
}

type memOutbox struct{ repository.OutboxRepository }

func (memOutbox) Insert(context.Context, repository.DBTX, domain.OutboxDraft) error { return nil }

type memRates struct {
	repository.RateRepository
	rates []domain.Rate
}

func (m *memRates) UpdatePrice(_ context.Context, _ repository.DBTX, operatorID, id uuid.UUID, price decimal.Decimal) (*domain.Rate, error) {
	for i := range m.rates {
		if m.rates[i].ID == id && m.rates[i].OperatorID == operatorID {
			m.rates[i].Price = price
			r := m.rates[i]
			return &r, nil
		}
	}
	return nil, nil
}

func containsKey(keys []domain.NumberKey, k domain.NumberKey) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}
