package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

type AppointmentRepository struct {
	db *sql.DB
}

func NewAppointmentRepository(db *sql.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create inserts an appointment under a caller-supplied identifier, which
// must be the identifier of the invoice that bills it.
func (r *AppointmentRepository) Create(ctx context.Context, tx *sql.Tx, a *domain.Appointment) error {
	if a.ID <= 0 {
		return fmt.Errorf("Create: appointment id %d: %w", a.ID, domain.ErrCorrelationViolated)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO appointments (
			id, patient_id, service_id, appointment_date, shift, status, reason, created_at, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.PatientID, a.ServiceID, a.AppointmentDate, a.Shift, a.Status,
		a.Reason, a.CreatedAt, a.CreatedBy,
	)
	if err != nil {
		if constraint, ok := isForeignKeyViolation(err); ok && constraint == "appointments_service_id_fkey" {
			return fmt.Errorf("Create: %w", domain.ErrServiceNotFound)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// GetDetailed loads an appointment with its patient and, when assigned, its
// service.
func (r *AppointmentRepository) GetDetailed(ctx context.Context, id int64) (*domain.Appointment, error) {
	var (
		a         domain.Appointment
		p         domain.Patient
		serviceID sql.NullInt64
		svcName   sql.NullString
		svcPrice  decimal.NullDecimal
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT a.id, a.patient_id, a.service_id, a.appointment_date, a.shift, a.status,
			a.reason, a.created_at, a.created_by,
			p.id, p.full_name, p.phone, p.national_id, p.email, p.address, p.created_at, p.created_by,
			s.name, s.price
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.id = $1`, id,
	).Scan(
		&a.ID, &a.PatientID, &serviceID, &a.AppointmentDate, &a.Shift, &a.Status,
		&a.Reason, &a.CreatedAt, &a.CreatedBy,
		&p.ID, &p.FullName, &p.Phone, &p.NationalID, &p.Email, &p.Address, &p.CreatedAt, &p.CreatedBy,
		&svcName, &svcPrice,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetDetailed: %d: %w", id, domain.ErrAppointmentNotFound)
		}
		return nil, fmt.Errorf("GetDetailed: %w", err)
	}

	a.Patient = &p
	if serviceID.Valid {
		a.ServiceID = &serviceID.Int64
		a.Service = &domain.Service{
			ID:    serviceID.Int64,
			Name:  svcName.String,
			Price: svcPrice.Decimal,
		}
	}
	return &a, nil
}
