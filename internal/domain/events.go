package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewOperatorRegisteredEvent creates the operator lifecycle event.
func NewOperatorRegisteredEvent(op *Operator) OutboxDraft {
	payload, _ := json.Marshal(map[string]string{
		"operator_id": op.ID.String(),
		"username":    op.Username,
	})
	return newDraft(AggregateOperator, op.ID.String(), EventOperatorRegistered, op.ID, payload)
}

// NewBillSubmittedEvent carries the full bill, items included.
func NewBillSubmittedEvent(bill *Bill) OutboxDraft {
	payload, _ := json.Marshal(bill)
	return newDraft(AggregateBill, bill.ID.String(), EventBillSubmitted, bill.OperatorID, payload)
}

// NewLimitUsageEvent records usage increments for a bill. When reconcile is
// true the increments were not applied and need operator follow-up.
func NewLimitUsageEvent(operatorID, billID uuid.UUID, deltas []LimitUsageDelta, reconcile bool, cause string) OutboxDraft {
	evtType := EventLimitUsageApplied
	if reconcile {
		evtType = EventLimitUsageReconcile
	}
	body := map[string]interface{}{
		"operator_id": operatorID.String(),
		"bill_id":     billID.String(),
		"deltas":      deltas,
	}
	if cause != "" {
		body["error"] = cause
	}
	payload, _ := json.Marshal(body)
	return newDraft(AggregateLimit, billID.String(), evtType, operatorID, payload)
}

func newDraft(aggType AggregateType, aggID string, evtType EventType, operatorID uuid.UUID, payload []byte) OutboxDraft {
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: aggType,
		AggregateID:   aggID,
		EventType:     evtType,
		PartitionKey:  operatorID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
