package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type GatewayEventKind string

const (
	GatewayEventKindPaymentURL GatewayEventKind = "payment_url"
	GatewayEventKindReturn     GatewayEventKind = "return"
	GatewayEventKindQuery      GatewayEventKind = "query"
)

// GatewayEvent is the raw record of one exchange with the payment gateway,
// kept for reconciliation.
type GatewayEvent struct {
	ID           uuid.UUID
	OrderRef     string
	PaymentID    *uuid.UUID
	Kind         GatewayEventKind
	ResponseCode string
	Params       json.RawMessage
	CreatedAt    time.Time
}
