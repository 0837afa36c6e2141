package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid InvoiceStatus = "unpaid"
	InvoiceStatusPaid   InvoiceStatus = "paid"
)

// Invoice bills exactly one appointment and shares its identifier:
// ID == *AppointmentID once the pair is provisioned. AppointmentID is nil only
// between the invoice insert and the back-patch inside the same transaction.
type Invoice struct {
	ID             int64
	InitialAmount  decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	Status         InvoiceStatus
	AppointmentID  *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CheckCorrelation enforces the shared-key invariant between an invoice and
// the appointment it bills.
func CheckCorrelation(invoiceID, appointmentID int64) error {
	if invoiceID <= 0 || invoiceID != appointmentID {
		return ErrCorrelationViolated
	}
	return nil
}
