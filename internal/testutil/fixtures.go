package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

const TestActor = "user:test"

var patientSeq atomic.Int64

func SeedService(t *testing.T, db *sql.DB, name string, price decimal.Decimal) *domain.Service {
	t.Helper()

	s := &domain.Service{Name: name, Price: price}
	err := db.QueryRow(
		`INSERT INTO services (name, price) VALUES ($1, $2) RETURNING id`,
		name, price,
	).Scan(&s.ID)
	if err != nil {
		t.Fatalf("seed service %s: %v", name, err)
	}
	return s
}

func SeedDoctor(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()

	var id int64
	if err := db.QueryRow(`INSERT INTO doctors (full_name) VALUES ($1) RETURNING id`, name).Scan(&id); err != nil {
		t.Fatalf("seed doctor %s: %v", name, err)
	}
	return id
}

// SeedPatient inserts a patient with a unique phone and national ID.
func SeedPatient(t *testing.T, db *sql.DB, name string) *domain.Patient {
	t.Helper()

	n := patientSeq.Add(1)
	p := &domain.Patient{
		FullName:   name,
		Phone:      fmt.Sprintf("09%08d", n),
		NationalID: fmt.Sprintf("%012d", 100000000000+n),
		CreatedAt:  time.Now().UTC(),
		CreatedBy:  TestActor,
	}
	err := db.QueryRow(
		`INSERT INTO patients (full_name, phone, national_id, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		p.FullName, p.Phone, p.NationalID, p.CreatedAt, p.CreatedBy,
	).Scan(&p.ID)
	if err != nil {
		t.Fatalf("seed patient %s: %v", name, err)
	}
	return p
}

// SeedInvoice inserts a standalone unpaid invoice with the given total.
func SeedInvoice(t *testing.T, db *sql.DB, total decimal.Decimal) *domain.Invoice {
	t.Helper()

	inv := &domain.Invoice{
		InitialAmount:  total,
		DiscountAmount: decimal.Zero,
		TotalAmount:    total,
		Status:         domain.InvoiceStatusUnpaid,
	}
	err := db.QueryRow(
		`INSERT INTO invoices (initial_amount, discount_amount, total_amount, status)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		inv.InitialAmount, inv.DiscountAmount, inv.TotalAmount, inv.Status,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return inv
}

// SeedAppointment provisions an invoice and an appointment sharing its
// identifier. serviceID may be nil.
func SeedAppointment(t *testing.T, db *sql.DB, patientID int64, serviceID *int64, status domain.AppointmentStatus) *domain.Appointment {
	t.Helper()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("seed appointment: begin: %v", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRow(`INSERT INTO invoices DEFAULT VALUES RETURNING id`).Scan(&id); err != nil {
		t.Fatalf("seed appointment: invoice: %v", err)
	}

	a := &domain.Appointment{
		ID:              id,
		PatientID:       patientID,
		ServiceID:       serviceID,
		AppointmentDate: time.Now().UTC().Truncate(24 * time.Hour),
		Shift:           domain.ShiftMorning,
		Status:          status,
		CreatedBy:       TestActor,
	}
	_, err = tx.Exec(
		`INSERT INTO appointments (id, patient_id, service_id, appointment_date, shift, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.PatientID, a.ServiceID, a.AppointmentDate, a.Shift, a.Status, a.CreatedBy,
	)
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	if _, err := tx.Exec(`UPDATE invoices SET appointment_id = $1 WHERE id = $1`, id); err != nil {
		t.Fatalf("seed appointment: back-patch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("seed appointment: commit: %v", err)
	}
	return a
}

func GetInvoiceStatus(t *testing.T, db *sql.DB, id int64) domain.InvoiceStatus {
	t.Helper()

	var status domain.InvoiceStatus
	if err := db.QueryRow(`SELECT status FROM invoices WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("get invoice status %d: %v", id, err)
	}
	return status
}

func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&count); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func CountPaymentEvents(t *testing.T, db *sql.DB, paymentID any) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM payment_events WHERE payment_id = $1`, paymentID).Scan(&count)
	if err != nil {
		t.Fatalf("count payment events for %v: %v", paymentID, err)
	}
	return count
}
