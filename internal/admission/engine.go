// Package admission decides how much of each requested bet line an operator can
// accept, given a snapshot of the operator's closed and limited numbers.
//
// Admission is a pure function: it performs no I/O and never mutates the
// snapshot. Lines are evaluated in the order they are submitted, and lines that
// hit the same limited number share its remaining balance, so reordering a
// submission can change which line is admitted in full and which is cut.
package admission

import (
	"github.com/google/uuid"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/shopspring/decimal"
)

// RuleSet is an immutable lookup over one operator's closed and limit entries.
type RuleSet struct {
	closed map[domain.NumberKey]domain.ClosedNumber
	limits map[domain.NumberKey]domain.LimitNumber
}

// NewRuleSet indexes the given entries by (bet type, number).
func NewRuleSet(closed []domain.ClosedNumber, limits []domain.LimitNumber) *RuleSet {
	rs := &RuleSet{
		closed: make(map[domain.NumberKey]domain.ClosedNumber, len(closed)),
		limits: make(map[domain.NumberKey]domain.LimitNumber, len(limits)),
	}
	for _, c := range closed {
		rs.closed[c.Key()] = c
	}
	for _, l := range limits {
		rs.limits[l.Key()] = l
	}
	return rs
}

// Lookup returns the closed entry and the limit entry for a number, if any.
func (rs *RuleSet) Lookup(betType domain.BetType, number string) (*domain.ClosedNumber, *domain.LimitNumber) {
	key := domain.NumberKey{BetType: betType, Number: number}
	var closed *domain.ClosedNumber
	var limit *domain.LimitNumber
	if c, ok := rs.closed[key]; ok {
		closed = &c
	}
	if l, ok := rs.limits[key]; ok {
		limit = &l
	}
	return closed, limit
}

// Outcome is the admission decision for one requested line.
type Outcome struct {
	BetType   domain.BetType         `json:"bet_type"`
	Number    string                 `json:"number"`
	Text      string                 `json:"text"`
	Requested decimal.Decimal        `json:"requested_amount"`
	Amount    decimal.Decimal        `json:"amount"`
	Status    domain.AdmissionStatus `json:"status"`
	LimitID   *uuid.UUID             `json:"limit_id,omitempty"`
}

// Result is the admission decision for a whole submission.
type Result struct {
	Outcomes []Outcome
	// Total is the receivable amount: the sum of every outcome's Amount,
	// partial over-limit admissions included.
	Total decimal.Decimal
	// Usage holds one delta per limit entry that admitted a non-zero amount,
	// in order of first use.
	Usage []domain.LimitUsageDelta
}

// Admissible reports whether at least one line admitted a non-zero amount.
func (r Result) Admissible() bool {
	return r.Total.IsPositive()
}

// Counts returns the number of outcomes per status.
func (r Result) Counts() map[domain.AdmissionStatus]int {
	counts := make(map[domain.AdmissionStatus]int, 3)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Admit evaluates items in order against rules.
//
// A closed number always rejects its line. A limited number admits up to
// amount_limit - (amount_used + usage earlier in this submission); a line that
// exceeds it is cut to the remaining balance, rounded to 2 places, and marked
// over limit. Numbers with no rule are admitted in full.
func Admit(rules *RuleSet, items []domain.RequestedItem) Result {
	res := Result{
		Outcomes: make([]Outcome, 0, len(items)),
		Total:    decimal.Zero,
	}
	session := make(map[uuid.UUID]decimal.Decimal)
	usageIdx := make(map[uuid.UUID]int)

	for _, item := range items {
		out := Outcome{
			BetType:   item.BetType,
			Number:    item.Number,
			Text:      item.BetType.Text(),
			Requested: item.Amount,
			Amount:    item.Amount,
			Status:    domain.StatusAdmitted,
		}

		closed, limit := rules.Lookup(item.BetType, item.Number)
		switch {
		case closed != nil:
			out.Status = domain.StatusClosed
			out.Amount = decimal.Zero

		case limit != nil:
			id := limit.ID
			out.LimitID = &id

			used, seen := session[id]
			if !seen {
				used = limit.AmountUsed
			}
			available := limit.AmountLimit.Sub(used)

			switch {
			case !available.IsPositive():
				out.Status = domain.StatusOverLimit
				out.Amount = decimal.Zero
			case item.Amount.GreaterThan(available):
				out.Status = domain.StatusOverLimit
				out.Amount = available.Round(2)
			}
			session[id] = used.Add(out.Amount)

			if out.Amount.IsPositive() {
				if i, ok := usageIdx[id]; ok {
					res.Usage[i].Amount = res.Usage[i].Amount.Add(out.Amount)
				} else {
					usageIdx[id] = len(res.Usage)
					res.Usage = append(res.Usage, domain.LimitUsageDelta{
						LimitID: id,
						BetType: limit.BetType,
						Number:  limit.Number,
						Amount:  out.Amount,
					})
				}
			}
		}

		res.Total = res.Total.Add(out.Amount)
		res.Outcomes = append(res.Outcomes, out)
	}

	return res
}
