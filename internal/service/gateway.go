package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/clinic-settlement/internal/clock"
	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/gateway"
	"github.com/josh-kwaku/clinic-settlement/internal/logging"
	"github.com/josh-kwaku/clinic-settlement/internal/service/ledger"
)

type gatewayLedger interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ApplyGatewayResult(ctx context.Context, res ledger.GatewayResult) (*domain.Payment, bool, error)
}

type gatewayEventRepo interface {
	Create(ctx context.Context, event *domain.GatewayEvent) error
	Latest(ctx context.Context, orderRef string, kind domain.GatewayEventKind) (*domain.GatewayEvent, error)
}

type transactionQuerier interface {
	QueryTransaction(ctx context.Context, p gateway.QueryParams) (*gateway.Outcome, error)
}

// GatewayService runs the online checkout: it issues signed payment URLs,
// accepts the gateway's return callback and reconciles through querydr.
type GatewayService struct {
	ledger  gatewayLedger
	events  gatewayEventRepo
	adapter *gateway.Adapter
	client  transactionQuerier
	clock   clock.Clock
}

func NewGatewayService(
	payments gatewayLedger,
	events gatewayEventRepo,
	adapter *gateway.Adapter,
	client transactionQuerier,
	clk clock.Clock,
) *GatewayService {
	return &GatewayService{
		ledger:  payments,
		events:  events,
		adapter: adapter,
		client:  client,
		clock:   clk,
	}
}

type CheckoutRequest struct {
	PaymentID uuid.UUID
	ClientIP  string
	BankCode  string
	OrderInfo string
}

type Checkout struct {
	PaymentID uuid.UUID
	OrderRef  string
	URL       string
	ExpiresAt *time.Time
}

// CreatePaymentURL signs a redirect URL for a pending payment and records the
// parameters that were sent.
func (s *GatewayService) CreatePaymentURL(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	log := logging.FromContext(ctx)

	p, err := s.ledger.Get(ctx, req.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("CreatePaymentURL: %w", err)
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, fmt.Errorf("CreatePaymentURL: status %s: %w", p.Status, domain.ErrPaymentNotPending)
	}

	now := s.clock.Now()
	pu, err := s.adapter.BuildPaymentURL(gateway.PaymentRequest{
		PaymentCode: p.Code,
		Amount:      p.Amount,
		OrderInfo:   req.OrderInfo,
		ClientIP:    req.ClientIP,
		BankCode:    req.BankCode,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePaymentURL: %w: %w", domain.ErrValidation, err)
	}

	s.record(ctx, domain.GatewayEventKindPaymentURL, pu.OrderRef, &p.ID, "", pu.Params)

	log.Info("payment url issued", "payment_id", p.ID, "order_ref", pu.OrderRef)
	checkout := &Checkout{
		PaymentID: p.ID,
		OrderRef:  pu.OrderRef,
		URL:       pu.URL,
	}
	if d := s.adapter.ExpireAfter(); d > 0 {
		expires := now.Add(d)
		checkout.ExpiresAt = &expires
	}
	return checkout, nil
}

// GatewayOutcome is what the return and query flows report back.
type GatewayOutcome struct {
	Payment      *domain.Payment
	OrderRef     string
	Success      bool
	ResponseCode string
	Message      string
	Changed      bool
}

// HandleReturn verifies the gateway's return callback and applies its
// verdict. Every callback is recorded, including the rejected ones.
func (s *GatewayService) HandleReturn(ctx context.Context, query url.Values) (*GatewayOutcome, error) {
	log := logging.FromContext(ctx)

	out, err := s.adapter.ParseCallback(query)
	if err != nil {
		s.record(ctx, domain.GatewayEventKindReturn, query.Get("vnp_TxnRef"), nil, query.Get("vnp_ResponseCode"), flatten(query))
		log.Warn("gateway callback rejected", "order_ref", query.Get("vnp_TxnRef"), "error", err)
		return nil, fmt.Errorf("HandleReturn: %w", err)
	}
	if out.TestMode {
		log.Warn("gateway callback accepted without signature", "order_ref", out.OrderRef)
	}

	res, err := s.applyOutcome(ctx, out, out.ResponseCode)
	var paymentID *uuid.UUID
	if res != nil && res.Payment != nil {
		paymentID = &res.Payment.ID
	}
	s.record(ctx, domain.GatewayEventKindReturn, out.OrderRef, paymentID, out.ResponseCode, out.Params)
	if err != nil {
		log.Warn("gateway callback not applied", "order_ref", out.OrderRef, "response_code", out.ResponseCode, "error", err)
		return nil, fmt.Errorf("HandleReturn: %w", err)
	}
	return res, nil
}

// Reconcile asks the gateway for the state of a payment's transaction. A
// timeout or any other transport failure leaves the payment as it is.
func (s *GatewayService) Reconcile(ctx context.Context, paymentID uuid.UUID, clientIP string) (*GatewayOutcome, error) {
	log := logging.FromContext(ctx)

	p, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}
	orderRef, err := gateway.DeriveOrderReference(p.Code)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w: %w", domain.ErrValidation, err)
	}

	txnDate, err := s.transactionDate(ctx, orderRef)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}

	out, err := s.client.QueryTransaction(ctx, gateway.QueryParams{
		OrderRef:        orderRef,
		OrderInfo:       "Query " + p.Code,
		TransactionDate: txnDate,
		ClientIP:        clientIP,
		Now:             s.clock.Now(),
	})
	if err != nil {
		log.Warn("gateway query failed", "payment_id", p.ID, "order_ref", orderRef, "error", err)
		return nil, fmt.Errorf("Reconcile: %w", err)
	}
	s.record(ctx, domain.GatewayEventKindQuery, orderRef, &p.ID, out.TransactionStatus, out.Params)
	if out.OrderRef != orderRef {
		log.Warn("gateway answered for another order", "payment_id", p.ID, "order_ref", orderRef, "answered", out.OrderRef)
		return nil, fmt.Errorf("Reconcile: asked %s, got %s: %w", orderRef, out.OrderRef, gateway.ErrOrderMismatch)
	}

	if !out.Success && gateway.InFlight(out.TransactionStatus) {
		log.Info("gateway transaction still in flight", "payment_id", p.ID, "transaction_status", out.TransactionStatus)
		return &GatewayOutcome{
			Payment:      p,
			OrderRef:     orderRef,
			ResponseCode: out.TransactionStatus,
			Message:      out.Message,
		}, nil
	}

	res, err := s.applyOutcome(ctx, out, out.TransactionStatus)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}
	return res, nil
}

// applyOutcome hands a verified verdict to the ledger. code is the response
// code the verdict was read from: vnp_ResponseCode for returns and
// vnp_TransactionStatus for queries.
func (s *GatewayService) applyOutcome(ctx context.Context, out *gateway.Outcome, code string) (*GatewayOutcome, error) {
	p, changed, err := s.ledger.ApplyGatewayResult(ctx, ledger.GatewayResult{
		OrderRef:      out.OrderRef,
		Success:       out.Success,
		Amount:        out.Amount,
		ResponseCode:  code,
		TransactionNo: out.TransactionNo,
		Message:       out.Message,
		TestMode:      out.TestMode,
	})
	if err != nil {
		return nil, err
	}
	return &GatewayOutcome{
		Payment:      p,
		OrderRef:     out.OrderRef,
		Success:      out.Success,
		ResponseCode: code,
		Message:      out.Message,
		Changed:      changed,
	}, nil
}

// transactionDate returns the vnp_CreateDate of the last URL issued for the
// order. The gateway needs it to find the transaction.
func (s *GatewayService) transactionDate(ctx context.Context, orderRef string) (string, error) {
	ev, err := s.events.Latest(ctx, orderRef, domain.GatewayEventKindPaymentURL)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("order %s: %w", orderRef, domain.ErrNoCheckout)
		}
		return "", domain.Persistence("load payment url", err)
	}

	var params map[string]string
	if err := json.Unmarshal(ev.Params, &params); err != nil {
		return "", fmt.Errorf("decode payment url params: %w: %w", domain.ErrPersistence, err)
	}
	date := params["vnp_CreateDate"]
	if date == "" {
		return "", fmt.Errorf("payment url for %s has no create date: %w", orderRef, domain.ErrPersistence)
	}
	return date, nil
}

// record stores a gateway exchange. A failed write is logged and does not
// undo the flow that produced it.
func (s *GatewayService) record(ctx context.Context, kind domain.GatewayEventKind, orderRef string, paymentID *uuid.UUID, code string, params map[string]string) {
	log := logging.FromContext(ctx)

	raw, err := json.Marshal(params)
	if err != nil {
		log.Error("failed to encode gateway event", "kind", kind, "order_ref", orderRef, "error", err)
		return
	}

	event := &domain.GatewayEvent{
		ID:           uuid.New(),
		OrderRef:     orderRef,
		PaymentID:    paymentID,
		Kind:         kind,
		ResponseCode: code,
		Params:       raw,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		log.Error("failed to record gateway event", "kind", kind, "order_ref", orderRef, "error", err)
	}
}

func flatten(query url.Values) map[string]string {
	out := make(map[string]string, len(query))
	for k := range query {
		out[k] = query.Get(k)
	}
	return out
}
