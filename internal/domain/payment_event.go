package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PaymentEventType string

const (
	PaymentEventTypeCreated   PaymentEventType = "created"
	PaymentEventTypeUpdated   PaymentEventType = "updated"
	PaymentEventTypeCompleted PaymentEventType = "completed"
	PaymentEventTypeFailed    PaymentEventType = "failed"
	PaymentEventTypeDeleted   PaymentEventType = "deleted"
)

type PaymentEvent struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	EventType PaymentEventType
	Actor     string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// EventTypeFor picks the audit event recorded for an update that moves a
// payment from one status to another.
func EventTypeFor(from, to PaymentStatus) PaymentEventType {
	if from == to {
		return PaymentEventTypeUpdated
	}
	switch to {
	case PaymentStatusCompleted:
		return PaymentEventTypeCompleted
	case PaymentStatusFailed:
		return PaymentEventTypeFailed
	}
	return PaymentEventTypeUpdated
}
