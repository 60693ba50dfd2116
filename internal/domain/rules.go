package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rate is an operator's payout price for one bet type.
type Rate struct {
	ID         uuid.UUID       `json:"id"`
	OperatorID uuid.UUID       `json:"operator_id"`
	BetType    BetType         `json:"bet_type"`
	Text       string          `json:"text"`
	Price      decimal.Decimal `json:"price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NumberKey identifies a number within one operator's rule tables.
type NumberKey struct {
	BetType BetType
	Number  string
}

// ClosedNumber blocks sale of a number for one bet type.
type ClosedNumber struct {
	ID         uuid.UUID `json:"id"`
	OperatorID uuid.UUID `json:"operator_id"`
	BetType    BetType   `json:"bet_type"`
	Number     string    `json:"number"`
	Text       string    `json:"text"`
	PeriodEnd  time.Time `json:"period_end"`
	CreatedAt  time.Time `json:"created_at"`
}

// Key returns the rule lookup key.
func (c ClosedNumber) Key() NumberKey { return NumberKey{BetType: c.BetType, Number: c.Number} }

// LimitNumber caps the total stake admitted for a number across all bills.
// AmountUsed only grows through admitted bills; editing AmountLimit keeps it.
type LimitNumber struct {
	ID          uuid.UUID       `json:"id"`
	OperatorID  uuid.UUID       `json:"operator_id"`
	BetType     BetType         `json:"bet_type"`
	Number      string          `json:"number"`
	Text        string          `json:"text"`
	AmountLimit decimal.Decimal `json:"amount_limit"`
	AmountUsed  decimal.Decimal `json:"amount_used"`
	PeriodEnd   time.Time       `json:"period_end"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Key returns the rule lookup key.
func (l LimitNumber) Key() NumberKey { return NumberKey{BetType: l.BetType, Number: l.Number} }

// Available is the remaining stake before the cap, possibly negative.
func (l LimitNumber) Available() decimal.Decimal {
	return l.AmountLimit.Sub(l.AmountUsed)
}
