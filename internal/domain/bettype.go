package domain

import "github.com/shopspring/decimal"

// BetType enumerates the supported lotto bet types.
type BetType string

const (
	BetTwoTop    BetType = "twoTop"
	BetTwoBottom BetType = "twoBottom"
	BetThreeTop  BetType = "threeTop"
	BetThreeTote BetType = "threeTote"
)

// BetFamily groups bet types by how many digits their numbers carry.
type BetFamily string

const (
	FamilyTwoDigit   BetFamily = "two_digit"
	FamilyThreeDigit BetFamily = "three_digit"
)

// BetTypeSpec is one row of the static bet-type table.
type BetTypeSpec struct {
	Type         BetType
	Family       BetFamily
	Digits       int
	Text         string
	DefaultPrice decimal.Decimal
}

// betTypes is ordered as rates are seeded and listed.
var betTypes = []BetTypeSpec{
	{Type: BetTwoTop, Family: FamilyTwoDigit, Digits: 2, Text: "2 ตัวบน", DefaultPrice: decimal.NewFromInt(100)},
	{Type: BetTwoBottom, Family: FamilyTwoDigit, Digits: 2, Text: "2 ตัวล่าง", DefaultPrice: decimal.NewFromInt(100)},
	{Type: BetThreeTop, Family: FamilyThreeDigit, Digits: 3, Text: "3 ตัวบน", DefaultPrice: decimal.NewFromInt(800)},
	{Type: BetThreeTote, Family: FamilyThreeDigit, Digits: 3, Text: "3 ตัวโต๊ด", DefaultPrice: decimal.NewFromInt(125)},
}

var betTypeIndex = func() map[BetType]BetTypeSpec {
	m := make(map[BetType]BetTypeSpec, len(betTypes))
	for _, s := range betTypes {
		m[s.Type] = s
	}
	return m
}()

// BetTypes returns the table rows in seeding order.
func BetTypes() []BetTypeSpec {
	out := make([]BetTypeSpec, len(betTypes))
	copy(out, betTypes)
	return out
}

// LookupBetType returns the table row for t.
func LookupBetType(t BetType) (BetTypeSpec, bool) {
	s, ok := betTypeIndex[t]
	return s, ok
}

// Valid reports whether t is one of the known bet types.
func (t BetType) Valid() bool {
	_, ok := betTypeIndex[t]
	return ok
}

// Digits returns the fixed digit count for t, or 0 when t is unknown.
func (t BetType) Digits() int {
	return betTypeIndex[t].Digits
}

// Text returns the display text for t.
func (t BetType) Text() string {
	return betTypeIndex[t].Text
}
