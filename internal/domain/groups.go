package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BetGroup is the counter-entry shape: a list of numbers sharing per-target
// stakes. Zero stakes are skipped.
type BetGroup struct {
	Numbers []string        `json:"numbers"`
	Top     decimal.Decimal `json:"top"`
	Bottom  decimal.Decimal `json:"bottom"`
	Tote    decimal.Decimal `json:"tote"`
	Reverse bool            `json:"reverse"`
}

// ExpandGroups turns bet groups into requested items, number by number, in the
// order top, bottom, tote. With Reverse set each number is first replaced by
// its distinct digit permutations.
func ExpandGroups(groups []BetGroup) ([]RequestedItem, error) {
	var items []RequestedItem
	for gi, g := range groups {
		if g.Top.IsNegative() || g.Bottom.IsNegative() || g.Tote.IsNegative() {
			return nil, fmt.Errorf("group %d: stakes must not be negative", gi)
		}

		numbers := g.Numbers
		if g.Reverse {
			numbers = nil
			for _, n := range g.Numbers {
				numbers = append(numbers, Permutations(n)...)
			}
		}

		for _, n := range numbers {
			switch len(n) {
			case 2:
				if g.Tote.IsPositive() {
					return nil, fmt.Errorf("group %d: tote needs a 3-digit number, got %q", gi, n)
				}
				if g.Top.IsPositive() {
					items = append(items, RequestedItem{BetType: BetTwoTop, Number: n, Amount: g.Top})
				}
				if g.Bottom.IsPositive() {
					items = append(items, RequestedItem{BetType: BetTwoBottom, Number: n, Amount: g.Bottom})
				}
			case 3:
				if g.Bottom.IsPositive() {
					return nil, fmt.Errorf("group %d: bottom needs a 2-digit number, got %q", gi, n)
				}
				if g.Top.IsPositive() {
					items = append(items, RequestedItem{BetType: BetThreeTop, Number: n, Amount: g.Top})
				}
				if g.Tote.IsPositive() {
					items = append(items, RequestedItem{BetType: BetThreeTote, Number: n, Amount: g.Tote})
				}
			default:
				return nil, fmt.Errorf("group %d: number %q must have 2 or 3 digits", gi, n)
			}
		}
	}
	return items, nil
}

// Permutations returns the distinct digit orderings of a 2- or 3-digit number,
// starting with the number itself. Other lengths are returned unchanged.
func Permutations(number string) []string {
	d := []byte(number)
	var candidates []string
	switch len(d) {
	case 2:
		candidates = []string{number, string([]byte{d[1], d[0]})}
	case 3:
		candidates = []string{
			string([]byte{d[0], d[1], d[2]}),
			string([]byte{d[0], d[2], d[1]}),
			string([]byte{d[1], d[0], d[2]}),
			string([]byte{d[1], d[2], d[0]}),
			string([]byte{d[2], d[0], d[1]}),
			string([]byte{d[2], d[1], d[0]}),
		}
	default:
		return []string{number}
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
