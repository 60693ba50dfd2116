package domain

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]{3,32}$`)
	digitsRegex   = regexp.MustCompile(`^[0-9]+$`)
)

// MaxMoney is the largest amount accepted for any money field (numeric(12,2)).
var MaxMoney = decimal.RequireFromString("9999999999.99")

// MaxBillAmount bounds the sum of a bill's lines (bills.amount numeric(14,2)).
var MaxBillAmount = decimal.RequireFromString("999999999999.99")

// ValidateUsername checks operator usernames.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 3-32 letters, digits, dots, dashes or underscores")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if len(password) > 72 {
		return fmt.Errorf("password must be at most 72 bytes")
	}
	return nil
}

// ValidateBetType checks that t is one of the known bet types.
func ValidateBetType(t BetType) error {
	if t == "" {
		return fmt.Errorf("bet_type is required")
	}
	if !t.Valid() {
		return fmt.Errorf("unknown bet_type %q", string(t))
	}
	return nil
}

// ValidateNumber checks that number is a zero-padded digit string of the exact
// length the bet type requires.
func ValidateNumber(t BetType, number string) error {
	if err := ValidateBetType(t); err != nil {
		return err
	}
	if number == "" {
		return fmt.Errorf("number is required")
	}
	if !digitsRegex.MatchString(number) {
		return fmt.Errorf("number %q must contain digits only", number)
	}
	if want := t.Digits(); len(number) != want {
		return fmt.Errorf("number %q must have %d digits for %s", number, want, t)
	}
	return nil
}

// ValidateMoney checks a non-negative amount with at most two decimal places.
func ValidateMoney(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%s must not be negative", field)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%s must have at most 2 decimal places", field)
	}
	if amount.GreaterThan(MaxMoney) {
		return fmt.Errorf("%s exceeds %s", field, MaxMoney.StringFixed(2))
	}
	return nil
}
