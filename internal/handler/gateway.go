package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/clinic-settlement/internal/logging"
	"github.com/josh-kwaku/clinic-settlement/internal/service"
)

type gatewayService interface {
	CreatePaymentURL(ctx context.Context, req service.CheckoutRequest) (*service.Checkout, error)
	HandleReturn(ctx context.Context, query url.Values) (*service.GatewayOutcome, error)
	Reconcile(ctx context.Context, paymentID uuid.UUID, clientIP string) (*service.GatewayOutcome, error)
}

type GatewayHandler struct {
	gateway gatewayService
}

func NewGatewayHandler(gateway gatewayService) *GatewayHandler {
	return &GatewayHandler{gateway: gateway}
}

type checkoutRequest struct {
	PaymentID string `json:"paymentId"`
	BankCode  string `json:"bankCode"`
	OrderInfo string `json:"orderInfo"`
}

type checkoutDTO struct {
	PaymentID  uuid.UUID  `json:"paymentId"`
	OrderRef   string     `json:"orderRef"`
	PaymentURL string     `json:"paymentUrl"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

type gatewayOutcomeDTO struct {
	PaymentID    *uuid.UUID `json:"paymentId"`
	OrderRef     string     `json:"orderRef"`
	Status       string     `json:"status"`
	Success      bool       `json:"success"`
	ResponseCode string     `json:"responseCode"`
	Message      string     `json:"message"`
	Changed      bool       `json:"changed"`
}

func toGatewayOutcomeDTO(o *service.GatewayOutcome) gatewayOutcomeDTO {
	dto := gatewayOutcomeDTO{
		OrderRef:     o.OrderRef,
		Success:      o.Success,
		ResponseCode: o.ResponseCode,
		Message:      o.Message,
		Changed:      o.Changed,
	}
	if o.Payment != nil {
		id := o.Payment.ID
		dto.PaymentID = &id
		dto.Status = string(o.Payment.Status)
	}
	return dto
}

// CreatePaymentURL issues the redirect URL (rendered as a QR code by the
// front desk) for a pending payment.
func (h *GatewayHandler) CreatePaymentURL(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "paymentId", Message: "must be a UUID"}})
		return
	}

	checkout, err := h.gateway.CreatePaymentURL(r.Context(), service.CheckoutRequest{
		PaymentID: paymentID,
		ClientIP:  ClientIP(r),
		BankCode:  req.BankCode,
		OrderInfo: req.OrderInfo,
	})
	if err != nil {
		log.Warn("payment url creation failed", "payment_id", paymentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, checkoutDTO{
		PaymentID:  checkout.PaymentID,
		OrderRef:   checkout.OrderRef,
		PaymentURL: checkout.URL,
		ExpiresAt:  checkout.ExpiresAt,
	})
}

// Return receives the customer's browser back from the gateway. The query
// string signature is the only credential.
func (h *GatewayHandler) Return(w http.ResponseWriter, r *http.Request) {
	out, err := h.gateway.HandleReturn(r.Context(), r.URL.Query())
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toGatewayOutcomeDTO(out))
}

// Query reconciles a payment against the gateway's own record.
func (h *GatewayHandler) Query(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrPaymentNotFound, nil)
		return
	}

	out, err := h.gateway.Reconcile(r.Context(), paymentID, ClientIP(r))
	if err != nil {
		logging.FromContext(r.Context()).Warn("gateway reconcile failed", "payment_id", paymentID, "error", err)
		RespondUpstreamError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toGatewayOutcomeDTO(out))
}

// ClientIP prefers the first X-Forwarded-For hop and falls back to the peer
// address. The header is caller-supplied: use it only where the value is
// informational, never to key a security decision.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	return PeerIP(r)
}

// PeerIP is the address of the connection's remote end, ignoring headers.
func PeerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
