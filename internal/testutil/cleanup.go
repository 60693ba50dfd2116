//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll empties every table. Operators cascade to their rates, rules and bills.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := env.Pool.Exec(ctx,
		"TRUNCATE TABLE bill_items, bills, limit_numbers, closed_numbers, rates, operators, event_outbox, login_attempts CASCADE")
	if err != nil {
		env.t.Fatalf("CleanAll: %v", err)
	}
}
