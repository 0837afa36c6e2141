package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Not allowed for this role"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrConflict         = &AppError{http.StatusConflict, "CONFLICT", "Request conflicts with the current state"}
	ErrRateLimited      = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrPaymentNotFound     = &AppError{http.StatusNotFound, "PAYMENT_NOT_FOUND", "Payment not found"}
	ErrInvoiceNotFound     = &AppError{http.StatusNotFound, "INVOICE_NOT_FOUND", "Invoice not found"}
	ErrAppointmentNotFound = &AppError{http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "Appointment not found"}
	ErrServiceNotFound     = &AppError{http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found"}
	ErrDoctorNotFound      = &AppError{http.StatusNotFound, "DOCTOR_NOT_FOUND", "Doctor not found"}

	ErrInvalidAmount            = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidStatus            = &AppError{http.StatusBadRequest, "INVALID_STATUS", "Unknown payment status"}
	ErrAppointmentNotInProgress = &AppError{http.StatusBadRequest, "APPOINTMENT_NOT_IN_PROGRESS", "Appointment is not in progress"}
	ErrAppointmentNoService     = &AppError{http.StatusBadRequest, "APPOINTMENT_NO_SERVICE", "Appointment has no assigned service"}

	ErrPaymentCompleted       = &AppError{http.StatusConflict, "PAYMENT_COMPLETED", "Cannot edit a completed payment"}
	ErrPaymentCompletedDelete = &AppError{http.StatusConflict, "PAYMENT_COMPLETED", "Cannot delete a completed payment"}
	ErrTransitionNotAllowed   = &AppError{http.StatusConflict, "TRANSITION_NOT_ALLOWED", "Status transition not allowed"}
	ErrInvoiceAlreadyPaid     = &AppError{http.StatusConflict, "INVOICE_ALREADY_PAID", "Invoice already paid"}
	ErrPatientExists          = &AppError{http.StatusConflict, "PATIENT_EXISTS", "A patient with this phone or national ID already exists"}
	ErrVersionConflict        = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrPaymentNotPending      = &AppError{http.StatusConflict, "PAYMENT_NOT_PENDING", "Payment is not awaiting online payment"}
	ErrNoCheckout             = &AppError{http.StatusConflict, "NO_CHECKOUT", "No payment URL was issued for this payment"}

	ErrInvalidSignature   = &AppError{http.StatusBadRequest, "INVALID_SIGNATURE", "Gateway signature is invalid"}
	ErrAmountMismatch     = &AppError{http.StatusBadRequest, "AMOUNT_MISMATCH", "Gateway amount does not match the payment"}
	ErrMalformedCallback  = &AppError{http.StatusBadRequest, "MALFORMED_CALLBACK", "Gateway response could not be read"}
	ErrGatewayUnavailable = &AppError{http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "Payment gateway is unavailable"}
	ErrGatewayRejected    = &AppError{http.StatusBadGateway, "GATEWAY_REJECTED", "Payment gateway rejected the query"}

	ErrIdempotencyConflict = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
