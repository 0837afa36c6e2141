package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// domainErrors is checked in order; the first match wins. Specific errors come
// before the kind they wrap.
var domainErrors = []struct {
	err    error
	appErr *AppError
}{
	{domain.ErrPaymentNotFound, ErrPaymentNotFound},
	{domain.ErrInvoiceNotFound, ErrInvoiceNotFound},
	{domain.ErrAppointmentNotFound, ErrAppointmentNotFound},
	{domain.ErrServiceNotFound, ErrServiceNotFound},
	{domain.ErrDoctorNotFound, ErrDoctorNotFound},
	{domain.ErrNotFound, ErrResourceNotFound},

	{domain.ErrInvalidAmount, ErrInvalidAmount},
	{domain.ErrInvalidStatus, ErrInvalidStatus},
	{domain.ErrAppointmentNotInProgress, ErrAppointmentNotInProgress},
	{domain.ErrAppointmentNoService, ErrAppointmentNoService},
	{domain.ErrValidation, ErrValidationFailed},

	{domain.ErrPaymentCompleted, ErrPaymentCompleted},
	{domain.ErrPaymentCompletedDelete, ErrPaymentCompletedDelete},
	{domain.ErrTransitionNotAllowed, ErrTransitionNotAllowed},
	{domain.ErrInvoiceAlreadyPaid, ErrInvoiceAlreadyPaid},
	{domain.ErrPatientExists, ErrPatientExists},
	{domain.ErrVersionConflict, ErrVersionConflict},
	{domain.ErrPaymentNotPending, ErrPaymentNotPending},
	{domain.ErrNoCheckout, ErrNoCheckout},
	{domain.ErrConflict, ErrConflict},

	{domain.ErrInvalidSignature, ErrInvalidSignature},
	{domain.ErrAmountMismatch, ErrAmountMismatch},
	{domain.ErrGatewayUnavailable, ErrGatewayUnavailable},
	{domain.ErrExternalProtocol, ErrMalformedCallback},
}

func lookupDomainError(err error) *AppError {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.appErr
		}
	}
	return nil
}

// RespondDomainError maps a service error onto the response envelope. Field
// level validation failures are reported with one detail per field.
func RespondDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		RespondValidationError(w, fieldErrors(verr))
		return
	}

	appErr := lookupDomainError(err)
	if appErr == nil {
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}
	RespondAppError(w, appErr, nil)
}

// RespondUpstreamError is RespondDomainError for answers the service fetched
// from the gateway itself. A bad answer there is the gateway's fault, not the
// caller's.
func RespondUpstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrExternalProtocol) && !errors.Is(err, domain.ErrGatewayUnavailable) {
		RespondAppError(w, ErrGatewayRejected, nil)
		return
	}
	RespondDomainError(w, err)
}

func fieldErrors(verr *domain.ValidationError) []FieldError {
	fields := make([]FieldError, len(verr.Fields))
	for i, f := range verr.Fields {
		fields[i] = FieldError{Field: f.Field, Message: f.Message}
	}
	return fields
}
