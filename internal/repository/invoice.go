package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

const invoiceColumns = `id, initial_amount, discount_amount, total_amount, status,
	appointment_id, created_at, updated_at`

type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts the invoice and fills in the identifier allocated by the
// database.
func (r *InvoiceRepository) Create(ctx context.Context, tx *sql.Tx, inv *domain.Invoice) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO invoices (initial_amount, discount_amount, total_amount, status, appointment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		inv.InitialAmount, inv.DiscountAmount, inv.TotalAmount, inv.Status,
		inv.AppointmentID, inv.CreatedAt, inv.UpdatedAt,
	).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %d: %w", id, domain.ErrInvoiceNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(tx.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %d: %w", id, domain.ErrInvoiceNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepository) SetStatus(ctx context.Context, tx *sql.Tx, id int64, status domain.InvoiceStatus, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET status = $1, updated_at = $2 WHERE id = $3`,
		status, at, id,
	)
	if err != nil {
		return fmt.Errorf("SetStatus: %w", err)
	}
	return expectOneRow(res, "SetStatus", domain.ErrInvoiceNotFound)
}

func (r *InvoiceRepository) SetAmounts(ctx context.Context, tx *sql.Tx, id int64, initial, discount, total decimal.Decimal, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET initial_amount = $1, discount_amount = $2, total_amount = $3, updated_at = $4
		WHERE id = $5`,
		initial, discount, total, at, id,
	)
	if err != nil {
		return fmt.Errorf("SetAmounts: %w", err)
	}
	return expectOneRow(res, "SetAmounts", domain.ErrInvoiceNotFound)
}

// SetAppointmentRef back-patches the invoice's appointment reference. Any
// reference other than the invoice's own identifier is refused before it
// reaches the database.
func (r *InvoiceRepository) SetAppointmentRef(ctx context.Context, tx *sql.Tx, invoiceID, appointmentID int64, at time.Time) error {
	if err := domain.CheckCorrelation(invoiceID, appointmentID); err != nil {
		return fmt.Errorf("SetAppointmentRef: invoice %d, appointment %d: %w", invoiceID, appointmentID, err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET appointment_id = $1, updated_at = $2 WHERE id = $3`,
		appointmentID, at, invoiceID,
	)
	if err != nil {
		if isCheckViolation(err, "invoices_appointment_correlation") {
			return fmt.Errorf("SetAppointmentRef: %w", domain.ErrCorrelationViolated)
		}
		return fmt.Errorf("SetAppointmentRef: %w", err)
	}
	return expectOneRow(res, "SetAppointmentRef", domain.ErrInvoiceNotFound)
}

func expectOneRow(res sql.Result, op string, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}

func scanInvoice(s scanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var appointmentID sql.NullInt64
	err := s.Scan(
		&inv.ID, &inv.InitialAmount, &inv.DiscountAmount, &inv.TotalAmount, &inv.Status,
		&appointmentID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if appointmentID.Valid {
		inv.AppointmentID = &appointmentID.Int64
	}
	return &inv, nil
}
