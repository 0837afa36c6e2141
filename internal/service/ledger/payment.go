package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/logging"
)

type CreateInput struct {
	PayerName     string
	PaymentDate   *time.Time
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
	// Status defaults to Completed: a directly recorded payment is money
	// already collected.
	Status     domain.PaymentStatus
	InvoiceIDs []int64
	Actor      string
}

// Create records a payment. When invoices are linked the amount is their
// summed totals and, for a completed payment, each invoice is settled. Either
// everything is written or nothing is.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	if err := validateCreate(&in); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Create: begin tx: %w: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	now := s.clock.Now()
	amount := in.Amount
	links := make([]domain.PaymentInvoice, 0, len(in.InvoiceIDs))
	if len(in.InvoiceIDs) > 0 {
		amount = decimal.Zero
		for i, id := range in.InvoiceIDs {
			inv, err := s.invoices.GetForUpdate(ctx, tx, id)
			if err != nil {
				return nil, domain.Persistence("Create: load invoice", err)
			}
			if inv.Status == domain.InvoiceStatusPaid {
				return nil, fmt.Errorf("Create: invoice %d: %w", inv.ID, domain.ErrInvoiceAlreadyPaid)
			}
			amount = amount.Add(inv.TotalAmount)
			links = append(links, domain.PaymentInvoice{InvoiceID: inv.ID, Position: i, Amount: inv.TotalAmount})
		}
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("Create: %w", domain.ErrInvalidAmount)
	}

	code, err := s.paymentCode(ctx, tx, now)
	if err != nil {
		return nil, domain.Persistence("Create: allocate code", err)
	}

	p := &domain.Payment{
		ID:            uuid.New(),
		Code:          code,
		PayerName:     in.PayerName,
		PaymentDate:   now,
		Amount:        amount,
		PaymentMethod: in.PaymentMethod,
		Notes:         in.Notes,
		Status:        in.Status,
		Version:       1,
		CreatedAt:     now,
		CreatedBy:     in.Actor,
		UpdatedAt:     now,
		UpdatedBy:     in.Actor,
	}
	if in.PaymentDate != nil {
		p.PaymentDate = in.PaymentDate.UTC()
	}
	for i := range links {
		links[i].PaymentID = p.ID
	}
	p.Invoices = links

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, domain.Persistence("Create: insert payment", err)
	}

	if p.Status == domain.PaymentStatusCompleted {
		if err := s.setInvoiceStatus(ctx, tx, links, domain.InvoiceStatusPaid, now); err != nil {
			return nil, domain.Persistence("Create: settle invoices", err)
		}
	}

	if err := s.writeEvent(ctx, tx, p.ID, domain.PaymentEventTypeCreated, in.Actor, map[string]any{
		"code":        p.Code,
		"status":      p.Status,
		"amount":      p.Amount,
		"invoice_ids": p.InvoiceIDs(),
	}, now); err != nil {
		return nil, domain.Persistence("Create", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Create: commit: %w: %w", domain.ErrPersistence, err)
	}

	log.Info("payment created",
		"payment_id", p.ID,
		"code", p.Code,
		"status", p.Status,
		"amount", p.Amount,
		"invoice_ids", p.InvoiceIDs(),
	)
	return p, nil
}

func validateCreate(in *CreateInput) error {
	verr := &domain.ValidationError{}

	if in.Status == "" {
		in.Status = domain.PaymentStatusCompleted
	}
	if in.Status != domain.PaymentStatusPending && in.Status != domain.PaymentStatusCompleted {
		verr.Add("status", "a new payment must be pending or completed")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		verr.Add("paymentMethod", "is required")
	}

	seen := make(map[int64]bool, len(in.InvoiceIDs))
	for _, id := range in.InvoiceIDs {
		if id <= 0 {
			verr.Add("invoiceIds", fmt.Sprintf("invalid invoice id %d", id))
			continue
		}
		if seen[id] {
			verr.Add("invoiceIds", fmt.Sprintf("invoice %d listed twice", id))
		}
		seen[id] = true
	}

	if err := verr.OrNil(); err != nil {
		return err
	}
	if len(in.InvoiceIDs) == 0 && !in.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	return nil
}

type UpdateInput struct {
	PayerName     string
	PaymentDate   time.Time
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
	Status        domain.PaymentStatus
	// Override lifts the status lock. Only administrators may set it.
	Override bool
	// ExpectedVersion, when set, must match the stored version. Left nil the
	// last write wins.
	ExpectedVersion *int64
	Actor           string
}

// Update overwrites the editable fields of a payment subject to the status
// transition table.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("Update: %w", domain.ErrInvalidAmount)
	}
	if !in.Status.IsValid() {
		return nil, fmt.Errorf("Update: %q: %w", in.Status, domain.ErrInvalidStatus)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Update: begin tx: %w: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	existing, err := s.payments.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, domain.Persistence("Update", err)
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion != existing.Version {
		return nil, fmt.Errorf("Update: have version %d, stored %d: %w", *in.ExpectedVersion, existing.Version, domain.ErrVersionConflict)
	}

	authority := domain.AuthorityFor(in.Actor, existing, in.Override)
	if err := domain.CheckTransition(existing.Status, in.Status, authority); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	next := *existing
	next.PayerName = in.PayerName
	next.PaymentDate = in.PaymentDate.UTC()
	next.Amount = in.Amount
	next.PaymentMethod = in.PaymentMethod
	next.Notes = in.Notes
	next.Status = in.Status

	updated, err := s.apply(ctx, tx, existing, &next, in.Actor, map[string]any{
		"authority": authority.String(),
		"override":  in.Override,
	})
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Update: commit: %w: %w", domain.ErrPersistence, err)
	}

	log.Info("payment updated",
		"payment_id", updated.ID,
		"from", existing.Status,
		"to", updated.Status,
		"authority", authority.String(),
		"version", updated.Version,
	)
	return updated, nil
}

// apply persists next over existing inside tx, settles or releases the linked
// invoices when the payment enters or leaves Completed, and records the audit
// event.
func (s *Service) apply(ctx context.Context, tx *sql.Tx, existing, next *domain.Payment, actor string, detail map[string]any) (*domain.Payment, error) {
	now := s.clock.Now()
	next.UpdatedAt = now
	next.UpdatedBy = actor

	if err := s.payments.Update(ctx, tx, next); err != nil {
		return nil, domain.Persistence("apply: write payment", err)
	}

	wasCompleted := existing.Status == domain.PaymentStatusCompleted
	isCompleted := next.Status == domain.PaymentStatusCompleted
	switch {
	case isCompleted && !wasCompleted:
		if err := s.setInvoiceStatus(ctx, tx, next.Invoices, domain.InvoiceStatusPaid, now); err != nil {
			return nil, domain.Persistence("apply: settle invoices", err)
		}
	case wasCompleted && !isCompleted:
		if err := s.setInvoiceStatus(ctx, tx, next.Invoices, domain.InvoiceStatusUnpaid, now); err != nil {
			return nil, domain.Persistence("apply: release invoices", err)
		}
	}

	payload := map[string]any{
		"from":    existing.Status,
		"to":      next.Status,
		"amount":  next.Amount,
		"version": next.Version,
	}
	for k, v := range detail {
		payload[k] = v
	}
	if err := s.writeEvent(ctx, tx, next.ID, domain.EventTypeFor(existing.Status, next.Status), actor, payload, now); err != nil {
		return nil, domain.Persistence("apply", err)
	}
	return next, nil
}

// Delete removes a payment that has not been completed. Only a completed
// payment settles invoices, so the linked invoices keep their status; another
// payment may have settled them since.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Delete: begin tx: %w: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	existing, err := s.payments.GetForUpdate(ctx, tx, id)
	if err != nil {
		return domain.Persistence("Delete", err)
	}
	if existing.Status == domain.PaymentStatusCompleted {
		return fmt.Errorf("Delete: %w", domain.ErrPaymentCompletedDelete)
	}

	now := s.clock.Now()
	if err := s.payments.Delete(ctx, tx, id); err != nil {
		return domain.Persistence("Delete", err)
	}
	if err := s.writeEvent(ctx, tx, id, domain.PaymentEventTypeDeleted, actor, map[string]any{
		"code":        existing.Code,
		"status":      existing.Status,
		"amount":      existing.Amount,
		"invoice_ids": existing.InvoiceIDs(),
	}, now); err != nil {
		return domain.Persistence("Delete", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Delete: commit: %w: %w", domain.ErrPersistence, err)
	}

	log.Info("payment deleted", "payment_id", id, "invoice_ids", existing.InvoiceIDs())
	return nil
}

type FromAppointmentInput struct {
	AppointmentID int64
	PaymentMethod string
	Notes         string
	Actor         string
}

// CreateFromAppointment opens a pending payment for an appointment in
// progress. The amount is the price of its service and the payment is linked
// to the appointment's invoice, which is priced but left unpaid until the
// payment completes.
func (s *Service) CreateFromAppointment(ctx context.Context, in FromAppointmentInput) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	appt, err := s.appointments.GetDetailed(ctx, in.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("CreateFromAppointment: %w", err)
	}
	if appt.Status != domain.AppointmentStatusInProgress {
		return nil, fmt.Errorf("CreateFromAppointment: status %s: %w", appt.Status, domain.ErrAppointmentNotInProgress)
	}
	if appt.Service == nil {
		return nil, fmt.Errorf("CreateFromAppointment: %w", domain.ErrAppointmentNoService)
	}
	price := appt.Service.Price
	if !price.IsPositive() {
		return nil, fmt.Errorf("CreateFromAppointment: service %d: %w", appt.Service.ID, domain.ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateFromAppointment: begin tx: %w: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	// The invoice billing an appointment carries the appointment's identifier.
	inv, err := s.invoices.GetForUpdate(ctx, tx, appt.ID)
	if err != nil {
		return nil, domain.Persistence("CreateFromAppointment: load invoice", err)
	}
	if inv.AppointmentID != nil {
		if err := domain.CheckCorrelation(inv.ID, *inv.AppointmentID); err != nil {
			return nil, fmt.Errorf("CreateFromAppointment: %w", err)
		}
	}
	if inv.Status == domain.InvoiceStatusPaid {
		return nil, fmt.Errorf("CreateFromAppointment: invoice %d: %w", inv.ID, domain.ErrInvoiceAlreadyPaid)
	}

	now := s.clock.Now()
	if err := s.invoices.SetAmounts(ctx, tx, inv.ID, price, decimal.Zero, price, now); err != nil {
		return nil, domain.Persistence("CreateFromAppointment: price invoice", err)
	}

	code, err := s.paymentCode(ctx, tx, now)
	if err != nil {
		return nil, domain.Persistence("CreateFromAppointment: allocate code", err)
	}

	id := uuid.New()
	p := &domain.Payment{
		ID:            id,
		Code:          code,
		PaymentDate:   now,
		Amount:        price,
		PaymentMethod: in.PaymentMethod,
		Notes:         in.Notes,
		Status:        domain.PaymentStatusPending,
		Version:       1,
		CreatedAt:     now,
		CreatedBy:     in.Actor,
		UpdatedAt:     now,
		UpdatedBy:     in.Actor,
		Invoices: []domain.PaymentInvoice{
			{PaymentID: id, InvoiceID: inv.ID, Position: 0, Amount: price},
		},
	}
	if appt.Patient != nil {
		p.PayerName = appt.Patient.FullName
	}

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, domain.Persistence("CreateFromAppointment: insert payment", err)
	}
	if err := s.writeEvent(ctx, tx, p.ID, domain.PaymentEventTypeCreated, in.Actor, map[string]any{
		"code":           p.Code,
		"status":         p.Status,
		"amount":         p.Amount,
		"appointment_id": appt.ID,
		"invoice_ids":    p.InvoiceIDs(),
	}, now); err != nil {
		return nil, domain.Persistence("CreateFromAppointment", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CreateFromAppointment: commit: %w: %w", domain.ErrPersistence, err)
	}

	log.Info("payment created from appointment",
		"payment_id", p.ID,
		"code", p.Code,
		"appointment_id", appt.ID,
		"invoice_id", inv.ID,
		"amount", p.Amount,
	)
	return p, nil
}
