package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/logging"
)

// GatewayResult is a verified verdict from the payment gateway about one
// order reference.
type GatewayResult struct {
	OrderRef      string
	Success       bool
	Amount        decimal.Decimal
	ResponseCode  string
	TransactionNo string
	Message       string
	// TestMode marks a verdict accepted without a signature check.
	TestMode bool
}

// ApplyGatewayResult moves the payment behind an order reference to Completed
// or Failed on behalf of the gateway. Repeated verdicts that match the
// current status are acknowledged without a write; changed reports whether
// anything was stored.
func (s *Service) ApplyGatewayResult(ctx context.Context, res GatewayResult) (p *domain.Payment, changed bool, err error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("ApplyGatewayResult: begin tx: %w: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	existing, err := s.payments.GetByOrderRefForUpdate(ctx, tx, res.OrderRef)
	if err != nil {
		return nil, false, domain.Persistence("ApplyGatewayResult", err)
	}

	target := domain.PaymentStatusFailed
	if res.Success {
		target = domain.PaymentStatusCompleted
		if !res.Amount.Equal(existing.Amount) {
			return nil, false, fmt.Errorf("ApplyGatewayResult: gateway %s, payment %s: %w", res.Amount, existing.Amount, domain.ErrAmountMismatch)
		}
	}

	if existing.Status == target && (target == domain.PaymentStatusFailed || existing.UpdatedBy == domain.GatewayActor) {
		log.Info("gateway result already applied", "payment_id", existing.ID, "order_ref", res.OrderRef, "status", target)
		return existing, false, nil
	}

	if err := domain.CheckTransition(existing.Status, target, domain.AuthorityGateway); err != nil {
		return nil, false, fmt.Errorf("ApplyGatewayResult: %w", err)
	}

	next := *existing
	next.Status = target
	detail := map[string]any{
		"order_ref":      res.OrderRef,
		"response_code":  res.ResponseCode,
		"transaction_no": res.TransactionNo,
		"message":        res.Message,
	}
	if res.TestMode {
		detail["test_mode"] = true
	}
	updated, err := s.apply(ctx, tx, existing, &next, domain.GatewayActor, detail)
	if err != nil {
		return nil, false, fmt.Errorf("ApplyGatewayResult: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("ApplyGatewayResult: commit: %w: %w", domain.ErrPersistence, err)
	}

	log.Info("gateway result applied",
		"payment_id", updated.ID,
		"order_ref", res.OrderRef,
		"from", existing.Status,
		"to", updated.Status,
		"response_code", res.ResponseCode,
	)
	return updated, true, nil
}
