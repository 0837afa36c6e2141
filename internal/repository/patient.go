package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

type PatientRepository struct {
	db *sql.DB
}

func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// ExistsByNationalIDOrPhone reports whether a patient already holds either
// identity value.
func (r *PatientRepository) ExistsByNationalIDOrPhone(ctx context.Context, tx *sql.Tx, nationalID, phone string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE national_id = $1 OR phone = $2)`,
		nationalID, phone,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ExistsByNationalIDOrPhone: %w", err)
	}
	return exists, nil
}

func (r *PatientRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Patient) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO patients (full_name, phone, national_id, email, address, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.FullName, p.Phone, p.NationalID, p.Email, p.Address, p.CreatedAt, p.CreatedBy,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrPatientExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}
