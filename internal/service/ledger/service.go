package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/clinic-settlement/internal/clock"
	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/repository"
)

type paymentRepo interface {
	NextCodeValue(ctx context.Context, tx *sql.Tx) (int64, error)
	Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Payment, error)
	GetByOrderRefForUpdate(ctx context.Context, tx *sql.Tx, orderRef string) (*domain.Payment, error)
	List(ctx context.Context, f repository.PaymentFilter) ([]domain.Payment, int, error)
	Update(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
	Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

type invoiceRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.Invoice, error)
	SetStatus(ctx context.Context, tx *sql.Tx, id int64, status domain.InvoiceStatus, at time.Time) error
	SetAmounts(ctx context.Context, tx *sql.Tx, id int64, initial, discount, total decimal.Decimal, at time.Time) error
}

type appointmentRepo interface {
	GetDetailed(ctx context.Context, id int64) (*domain.Appointment, error)
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.PaymentEvent) error
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentEvent, error)
}

// Service owns payments and the settlement state of the invoices they cover.
// Every read goes to the database; nothing is cached between calls.
type Service struct {
	payments     paymentRepo
	invoices     invoiceRepo
	appointments appointmentRepo
	events       eventRepo
	db           *sql.DB
	clock        clock.Clock
	loc          *time.Location
}

func NewService(
	payments paymentRepo,
	invoices invoiceRepo,
	appointments appointmentRepo,
	events eventRepo,
	db *sql.DB,
	clk clock.Clock,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		payments:     payments,
		invoices:     invoices,
		appointments: appointments,
		events:       events,
		db:           db,
		clock:        clk,
		loc:          loc,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

// History returns the audit trail of a payment, oldest first. It remains
// readable after the payment is deleted.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]domain.PaymentEvent, error) {
	events, err := s.events.GetByPaymentID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return events, nil
}

// paymentCode builds "PAY" + yyMMdd + 8 digits. The last 14 characters are
// always digits, which is what the gateway echoes back as the order reference.
func (s *Service) paymentCode(ctx context.Context, tx *sql.Tx, now time.Time) (string, error) {
	n, err := s.payments.NextCodeValue(ctx, tx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PAY%s%08d", now.In(s.loc).Format("060102"), n%100_000_000), nil
}

func (s *Service) writeEvent(ctx context.Context, tx *sql.Tx, paymentID uuid.UUID, eventType domain.PaymentEventType, actor string, payload map[string]any, now time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("writeEvent: marshal payload: %w", err)
	}

	event := &domain.PaymentEvent{
		ID:        uuid.New(),
		PaymentID: paymentID,
		EventType: eventType,
		Actor:     actor,
		Payload:   raw,
		CreatedAt: now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("writeEvent: %w", err)
	}
	return nil
}

// setInvoiceStatus moves every linked invoice to the given status. Settling
// an invoice that is already paid is a conflict.
func (s *Service) setInvoiceStatus(ctx context.Context, tx *sql.Tx, links []domain.PaymentInvoice, status domain.InvoiceStatus, now time.Time) error {
	for _, l := range links {
		inv, err := s.invoices.GetForUpdate(ctx, tx, l.InvoiceID)
		if err != nil {
			return err
		}
		if status == domain.InvoiceStatusPaid && inv.Status == domain.InvoiceStatusPaid {
			return fmt.Errorf("invoice %d: %w", inv.ID, domain.ErrInvoiceAlreadyPaid)
		}
		if err := s.invoices.SetStatus(ctx, tx, l.InvoiceID, status, now); err != nil {
			return err
		}
	}
	return nil
}
