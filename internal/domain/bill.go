package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdmissionStatus is the outcome of admitting one requested line.
type AdmissionStatus string

const (
	StatusAdmitted  AdmissionStatus = "admitted"
	StatusClosed    AdmissionStatus = "closed"
	StatusOverLimit AdmissionStatus = "over_limit"
)

// RequestedItem is one proposed bet line.
type RequestedItem struct {
	BetType BetType         `json:"bet_type"`
	Number  string          `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
}

// Key returns the rule lookup key.
func (r RequestedItem) Key() NumberKey { return NumberKey{BetType: r.BetType, Number: r.Number} }

// Bill is an immutable record of one submission.
type Bill struct {
	ID             uuid.UUID       `json:"id"`
	OperatorID     uuid.UUID       `json:"operator_id"`
	Amount         decimal.Decimal `json:"amount"`
	Remark         *string         `json:"remark"`
	PeriodEnd      time.Time       `json:"period_end"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Items          []BillItem      `json:"items"`
}

// BillItem is one admitted or rejected line of a bill. Amount is the final
// admitted amount; Position keeps submission order.
type BillItem struct {
	ID              uuid.UUID       `json:"id"`
	BillID          uuid.UUID       `json:"bill_id"`
	Position        int             `json:"position"`
	BetType         BetType         `json:"bet_type"`
	Number          string          `json:"number"`
	Text            string          `json:"text"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	Amount          decimal.Decimal `json:"amount"`
	Status          AdmissionStatus `json:"status"`
	Won             bool            `json:"won"`
}

// LimitUsageDelta is the amount to add to one limit entry's used counter.
type LimitUsageDelta struct {
	LimitID uuid.UUID       `json:"limit_id"`
	BetType BetType         `json:"bet_type"`
	Number  string          `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
}

// PostBillParams holds everything the ledger needs to persist a bill.
type PostBillParams struct {
	OperatorID     uuid.UUID
	Remark         *string
	PeriodEnd      time.Time
	IdempotencyKey *string
	Amount         decimal.Decimal
	Items          []BillItem
}

// BillFilter narrows ListBills to created_at in [From, Before).
type BillFilter struct {
	From   *time.Time
	Before *time.Time
}

// SubmitBillParams is a validated submission ready for admission.
type SubmitBillParams struct {
	OperatorID     uuid.UUID
	Items          []RequestedItem
	Remark         *string
	PeriodEnd      time.Time
	IdempotencyKey *string
}
