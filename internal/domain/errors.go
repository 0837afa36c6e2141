package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every specific error below wraps exactly one of these.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrExternalProtocol = errors.New("external protocol error")
	ErrPersistence      = errors.New("persistence failure")
)

var (
	ErrPaymentNotFound     = fmt.Errorf("payment %w", ErrNotFound)
	ErrInvoiceNotFound     = fmt.Errorf("invoice %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrServiceNotFound     = fmt.Errorf("service %w", ErrNotFound)
	ErrDoctorNotFound      = fmt.Errorf("doctor %w", ErrNotFound)

	ErrInvalidAmount            = fmt.Errorf("amount must be greater than zero: %w", ErrValidation)
	ErrInvalidStatus            = fmt.Errorf("unknown payment status: %w", ErrValidation)
	ErrAppointmentNotInProgress = fmt.Errorf("appointment is not in progress: %w", ErrValidation)
	ErrAppointmentNoService     = fmt.Errorf("appointment has no assigned service: %w", ErrValidation)

	ErrPaymentCompleted       = fmt.Errorf("cannot edit a completed payment: %w", ErrConflict)
	ErrPaymentCompletedDelete = fmt.Errorf("cannot delete a completed payment: %w", ErrConflict)
	ErrTransitionNotAllowed   = fmt.Errorf("status transition not allowed: %w", ErrConflict)
	ErrInvoiceAlreadyPaid     = fmt.Errorf("invoice already paid: %w", ErrConflict)
	ErrPatientExists          = fmt.Errorf("patient already exists: %w", ErrConflict)
	ErrVersionConflict        = fmt.Errorf("payment was modified concurrently: %w", ErrConflict)
	ErrCorrelationViolated    = fmt.Errorf("invoice id must equal appointment id: %w", ErrConflict)
	ErrPaymentNotPending      = fmt.Errorf("payment is not awaiting online payment: %w", ErrConflict)
	ErrNoCheckout             = fmt.Errorf("no payment url was issued for this payment: %w", ErrConflict)

	ErrInvalidSignature   = fmt.Errorf("invalid gateway signature: %w", ErrExternalProtocol)
	ErrMalformedCallback  = fmt.Errorf("malformed gateway response: %w", ErrExternalProtocol)
	ErrAmountMismatch     = fmt.Errorf("gateway amount does not match payment: %w", ErrExternalProtocol)
	ErrGatewayUnavailable = fmt.Errorf("gateway unavailable: %w", ErrExternalProtocol)
)

type FieldViolation struct {
	Field   string
	Message string
}

// ValidationError collects every field that failed validation so callers can
// report them all at once.
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldViolation{Field: field, Message: message})
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// OrNil returns nil when no field was rejected.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// HasKind reports whether err already carries one of the error kinds above.
func HasKind(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrExternalProtocol, ErrPersistence} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Persistence tags an untyped storage failure as ErrPersistence while keeping
// its text. Errors that already carry a kind pass through unchanged.
func Persistence(step string, err error) error {
	if HasKind(err) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %w", step, ErrPersistence, err)
}
