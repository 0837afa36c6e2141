package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// GatewayActor is the actor tag stamped on every write made on behalf of the
// payment gateway.
const GatewayActor = "system:gateway"

type Payment struct {
	ID            uuid.UUID
	Code          string
	PayerName     string
	PaymentDate   time.Time
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
	Status        PaymentStatus
	Version       int64
	CreatedAt     time.Time
	CreatedBy     string
	UpdatedAt     time.Time
	UpdatedBy     string
	Invoices      []PaymentInvoice
}

// PaymentInvoice links a payment to one invoice it settles. Position keeps the
// order in which the invoices were given.
type PaymentInvoice struct {
	PaymentID uuid.UUID
	InvoiceID int64
	Position  int
	Amount    decimal.Decimal
}

func (p *Payment) InvoiceIDs() []int64 {
	ids := make([]int64, len(p.Invoices))
	for i, l := range p.Invoices {
		ids[i] = l.InvoiceID
	}
	return ids
}

type PaymentSortField string

const (
	PaymentSortPayer  PaymentSortField = "payer"
	PaymentSortAmount PaymentSortField = "amount"
	PaymentSortMethod PaymentSortField = "method"
	PaymentSortDate   PaymentSortField = "date"
)
