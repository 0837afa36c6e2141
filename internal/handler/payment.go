package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/clinic-settlement/internal/auth"
	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/logging"
	"github.com/josh-kwaku/clinic-settlement/internal/service/ledger"
)

type paymentService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	List(ctx context.Context, f ledger.ListFilter) (domain.Page[domain.Payment], error)
	Create(ctx context.Context, in ledger.CreateInput) (*domain.Payment, error)
	Update(ctx context.Context, id uuid.UUID, in ledger.UpdateInput) (*domain.Payment, error)
	Delete(ctx context.Context, id uuid.UUID, actor string) error
	CreateFromAppointment(ctx context.Context, in ledger.FromAppointmentInput) (*domain.Payment, error)
	History(ctx context.Context, id uuid.UUID) ([]domain.PaymentEvent, error)
}

type PaymentHandler struct {
	payments paymentService
	loc      *time.Location
}

// NewPaymentHandler builds the payment endpoints. Calendar dates in requests
// are read in loc.
func NewPaymentHandler(payments paymentService, loc *time.Location) *PaymentHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PaymentHandler{payments: payments, loc: loc}
}

type createPaymentRequest struct {
	PayerName     string          `json:"payerName"`
	PaymentDate   string          `json:"paymentDate"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	Notes         string          `json:"notes"`
	Status        string          `json:"status"`
	InvoiceIDs    []int64         `json:"invoiceIds"`
}

type updatePaymentRequest struct {
	PayerName       string          `json:"payerName"`
	PaymentDate     string          `json:"paymentDate"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   string          `json:"paymentMethod"`
	Notes           string          `json:"notes"`
	Status          string          `json:"status"`
	ExpectedVersion *int64          `json:"expectedVersion"`
}

func (r updatePaymentRequest) Validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(r.PayerName) == "" {
		errs = append(errs, FieldError{Field: "payerName", Message: "required"})
	}
	if r.PaymentDate == "" {
		errs = append(errs, FieldError{Field: "paymentDate", Message: "required"})
	}
	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if strings.TrimSpace(r.PaymentMethod) == "" {
		errs = append(errs, FieldError{Field: "paymentMethod", Message: "required"})
	}
	if r.Status == "" {
		errs = append(errs, FieldError{Field: "status", Message: "required"})
	} else if !domain.PaymentStatus(r.Status).IsValid() {
		errs = append(errs, FieldError{Field: "status", Message: "must be pending, completed, failed or refunded"})
	}

	return errs
}

type fromAppointmentRequest struct {
	AppointmentID int64  `json:"appointmentId"`
	PaymentMethod string `json:"paymentMethod"`
	Notes         string `json:"notes"`
}

func (r fromAppointmentRequest) Validate() []FieldError {
	var errs []FieldError

	if r.AppointmentID <= 0 {
		errs = append(errs, FieldError{Field: "appointmentId", Message: "required"})
	}
	if strings.TrimSpace(r.PaymentMethod) == "" {
		errs = append(errs, FieldError{Field: "paymentMethod", Message: "required"})
	}

	return errs
}

type paymentDTO struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	PayerName     string          `json:"payerName"`
	PaymentDate   time.Time       `json:"paymentDate"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	Notes         string          `json:"notes"`
	Status        string          `json:"status"`
	Version       int64           `json:"version"`
	InvoiceIDs    []int64         `json:"invoiceIds"`
	CreatedAt     time.Time       `json:"createdAt"`
	CreatedBy     string          `json:"createdBy"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	UpdatedBy     string          `json:"updatedBy"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	return paymentDTO{
		ID:            p.ID,
		Code:          p.Code,
		PayerName:     p.PayerName,
		PaymentDate:   p.PaymentDate,
		Amount:        p.Amount,
		PaymentMethod: p.PaymentMethod,
		Notes:         p.Notes,
		Status:        string(p.Status),
		Version:       p.Version,
		InvoiceIDs:    p.InvoiceIDs(),
		CreatedAt:     p.CreatedAt,
		CreatedBy:     p.CreatedBy,
		UpdatedAt:     p.UpdatedAt,
		UpdatedBy:     p.UpdatedBy,
	}
}

type pageDTO[T any] struct {
	Items           []T  `json:"items"`
	Page            int  `json:"page"`
	PageSize        int  `json:"pageSize"`
	TotalCount      int  `json:"totalCount"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

type paymentEventDTO struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"eventType"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrPaymentNotFound, nil)
		return
	}

	p, err := h.payments.Get(r.Context(), paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var errs []FieldError

	f := ledger.ListFilter{
		SearchTerm:    q.Get("searchTerm"),
		PaymentMethod: q.Get("paymentMethod"),
		SortBy:        q.Get("sortBy"),
		SortOrder:     q.Get("sortOrder"),
		Status:        q.Get("status"),
	}
	f.Page, errs = intParam(q.Get("page"), "page", errs)
	f.PageSize, errs = intParam(q.Get("pageSize"), "pageSize", errs)
	f.FromDate, errs = h.dateParam(q.Get("fromDate"), "fromDate", errs)
	f.ToDate, errs = h.dateParam(q.Get("toDate"), "toDate", errs)
	if len(errs) > 0 {
		RespondValidationError(w, errs)
		return
	}

	page, err := h.payments.List(r.Context(), f)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment listing failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	items := make([]paymentDTO, len(page.Items))
	for i := range page.Items {
		items[i] = toPaymentDTO(&page.Items[i])
	}
	RespondSuccess(w, http.StatusOK, pageDTO[paymentDTO]{
		Items:           items,
		Page:            page.Page,
		PageSize:        page.PageSize,
		TotalCount:      page.TotalCount,
		TotalPages:      page.TotalPages,
		HasNextPage:     page.HasNextPage,
		HasPreviousPage: page.HasPreviousPage,
	})
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actor := auth.ActorFromContext(r.Context())
	if actor == "" {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	paymentDate, errs := h.dateParam(req.PaymentDate, "paymentDate", nil)
	if len(errs) > 0 {
		RespondValidationError(w, errs)
		return
	}

	p, err := h.payments.Create(r.Context(), ledger.CreateInput{
		PayerName:     req.PayerName,
		PaymentDate:   paymentDate,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Status:        domain.PaymentStatus(req.Status),
		InvoiceIDs:    req.InvoiceIDs,
		Actor:         actor,
	})
	if err != nil {
		log.Warn("payment creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payment/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, toPaymentDTO(p))
}

func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrPaymentNotFound, nil)
		return
	}

	override := false
	if v := r.URL.Query().Get("override"); v != "" {
		override, err = strconv.ParseBool(v)
		if err != nil {
			RespondValidationError(w, []FieldError{{Field: "override", Message: "must be true or false"}})
			return
		}
	}
	if override && !principal.Role.CanOverride() {
		log.Warn("override refused", "role", principal.Role, "payment_id", paymentID)
		RespondAppError(w, ErrForbidden, nil)
		return
	}

	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	errs := req.Validate()
	paymentDate, errs := h.dateParam(req.PaymentDate, "paymentDate", errs)
	if len(errs) > 0 {
		RespondValidationError(w, errs)
		return
	}

	p, err := h.payments.Update(r.Context(), paymentID, ledger.UpdateInput{
		PayerName:       req.PayerName,
		PaymentDate:     *paymentDate,
		Amount:          req.Amount,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		Status:          domain.PaymentStatus(req.Status),
		Override:        override,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           principal.Actor(),
	})
	if err != nil {
		log.Warn("payment update failed", "payment_id", paymentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	if actor == "" {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrPaymentNotFound, nil)
		return
	}

	if err := h.payments.Delete(r.Context(), paymentID, actor); err != nil {
		logging.FromContext(r.Context()).Warn("payment delete failed", "payment_id", paymentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{"id": paymentID, "deleted": true})
}

func (h *PaymentHandler) CreateFromAppointment(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actor := auth.ActorFromContext(r.Context())
	if actor == "" {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req fromAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, err := h.payments.CreateFromAppointment(r.Context(), ledger.FromAppointmentInput{
		AppointmentID: req.AppointmentID,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Actor:         actor,
	})
	if err != nil {
		log.Warn("payment from appointment failed", "appointment_id", req.AppointmentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payment/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, toPaymentDTO(p))
}

func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrPaymentNotFound, nil)
		return
	}

	events, err := h.payments.History(r.Context(), paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment history lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	out := make([]paymentEventDTO, len(events))
	for i, e := range events {
		out[i] = paymentEventDTO{
			ID:        e.ID,
			EventType: string(e.EventType),
			Actor:     e.Actor,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		}
	}
	RespondSuccess(w, http.StatusOK, out)
}

// DateLayout is the calendar-day format of date fields in requests.
const DateLayout = "2006-01-02"

// dateParam reads a YYYY-MM-DD day in the handler's location, or a full
// RFC 3339 timestamp. An empty value yields nil.
func (h *PaymentHandler) dateParam(raw, field string, errs []FieldError) (*time.Time, []FieldError) {
	if raw == "" {
		return nil, errs
	}
	return parseDate(raw, field, h.loc, errs)
}

func parseDate(raw, field string, loc *time.Location, errs []FieldError) (*time.Time, []FieldError) {
	if t, err := time.ParseInLocation(DateLayout, raw, loc); err == nil {
		return &t, errs
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, errs
	}
	return nil, append(errs, FieldError{Field: field, Message: "must be a date in YYYY-MM-DD format"})
}

func intParam(raw, field string, errs []FieldError) (int, []FieldError) {
	if raw == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, append(errs, FieldError{Field: field, Message: "must be an integer"})
	}
	return n, errs
}
