//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorCode checks that the response body contains the expected error code.
func AssertErrorCode(t *testing.T, resp *http.Response, expectedCode string) {
	t.Helper()
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, errResp.Code, errResp.Message)
	}
}

// CountBills returns the number of bills stored for an operator.
func CountBills(t *testing.T, env *TestEnv, operatorID uuid.UUID) int {
	t.Helper()
	return env.count(t, "SELECT COUNT(*) FROM bills WHERE operator_id = $1", operatorID)
}

// CountBillItems returns the number of bill lines stored for an operator.
func CountBillItems(t *testing.T, env *TestEnv, operatorID uuid.UUID) int {
	t.Helper()
	return env.count(t,
		"SELECT COUNT(*) FROM bill_items bi JOIN bills b ON b.id = bi.bill_id WHERE b.operator_id = $1", operatorID)
}

// CountOutboxEvents returns the number of outbox events for an aggregate.
func CountOutboxEvents(t *testing.T, env *TestEnv, aggregateID uuid.UUID) int {
	t.Helper()
	return env.count(t, "SELECT COUNT(*) FROM event_outbox WHERE aggregate_id = $1", aggregateID.String())
}

// AmountUsed reads a limit entry's usage straight from the table.
func AmountUsed(t *testing.T, env *TestEnv, limitID uuid.UUID) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var used string
	err := env.Pool.QueryRow(ctx,
		"SELECT amount_used::text FROM limit_numbers WHERE id = $1", limitID).Scan(&used)
	if err != nil {
		t.Fatalf("AmountUsed: %v", err)
	}
	return used
}

func (env *TestEnv) count(t *testing.T, sql string, args ...interface{}) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var n int
	if err := env.Pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
