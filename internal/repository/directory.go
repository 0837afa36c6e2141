package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

// DirectoryRepository reads the clinic's service and doctor catalogues and
// records doctor assignments.
type DirectoryRepository struct {
	db *sql.DB
}

func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	var s domain.Service
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, price FROM services WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetService: %d: %w", id, domain.ErrServiceNotFound)
		}
		return nil, fmt.Errorf("GetService: %w", err)
	}
	return &s, nil
}

func (r *DirectoryRepository) DoctorExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("DoctorExists: %w", err)
	}
	return exists, nil
}

func (r *DirectoryRepository) AssignDoctor(ctx context.Context, tx *sql.Tx, a *domain.DoctorAssignment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO appointment_doctors (appointment_id, doctor_id, created_at) VALUES ($1, $2, $3)`,
		a.AppointmentID, a.DoctorID, a.CreatedAt,
	)
	if err != nil {
		if constraint, ok := isForeignKeyViolation(err); ok && constraint == "appointment_doctors_doctor_id_fkey" {
			return fmt.Errorf("AssignDoctor: %w", domain.ErrDoctorNotFound)
		}
		return fmt.Errorf("AssignDoctor: %w", err)
	}
	return nil
}
