package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventOperatorRegistered  EventType = "lotto.operator.registered"
	EventBillSubmitted       EventType = "lotto.bill.submitted"
	EventLimitUsageApplied   EventType = "lotto.limit.usage.applied"
	EventLimitUsageReconcile EventType = "lotto.limit.usage.reconcile"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateOperator AggregateType = "operator"
	AggregateBill     AggregateType = "bill"
	AggregateLimit    AggregateType = "limit"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	PartitionKey  string          `json:"partition_key"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// OutboxEvent is a stored draft together with its sequence id.
type OutboxEvent struct {
	SeqID int64 `json:"seq_id"`
	OutboxDraft
}
