package settlement_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/clinic-settlement/internal/clock"
	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/repository"
	"github.com/josh-kwaku/clinic-settlement/internal/service/settlement"
	"github.com/josh-kwaku/clinic-settlement/internal/testutil"
)

var ict = time.FixedZone("ICT", 7*60*60)

type appointmentCreator interface {
	Create(ctx context.Context, tx *sql.Tx, a *domain.Appointment) error
}

func setupOrchestrator(t *testing.T, db *sql.DB, appts appointmentCreator) *settlement.Orchestrator {
	t.Helper()
	if appts == nil {
		appts = repository.NewAppointmentRepository(db)
	}
	return settlement.NewOrchestrator(
		repository.NewPatientRepository(db),
		repository.NewInvoiceRepository(db),
		appts,
		repository.NewDirectoryRepository(db),
		db,
		clock.System(),
		ict,
	)
}

// failingAppointments fails after the invoice has been written.
type failingAppointments struct{}

func (failingAppointments) Create(context.Context, *sql.Tx, *domain.Appointment) error {
	return errors.New("disk quota exceeded")
}

func registration(serviceID, doctorID int64) settlement.RegistrationRequest {
	return settlement.RegistrationRequest{
		FullName:        "Nguyen Thi Hoa",
		Phone:           "0987654321",
		NationalID:      "079123456789",
		AppointmentDate: time.Now().In(ict).AddDate(0, 0, 1),
		Shift:           domain.ShiftAfternoon,
		Reason:          "follow-up",
		ServiceID:       serviceID,
		DoctorID:        doctorID,
		Actor:           testutil.TestActor,
	}
}

func TestCreateAndAppointment_LinksInvoiceAndAppointment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	orch := setupOrchestrator(t, db, nil)
	ctx := context.Background()

	service := testutil.SeedService(t, db, "Consultation", decimal.NewFromInt(200_000))
	doctor := testutil.SeedDoctor(t, db, "Dr. Minh")

	reg, err := orch.CreateAndAppointment(ctx, registration(service.ID, doctor))
	require.NoError(t, err)

	assert.Equal(t, reg.Invoice.ID, reg.Appointment.ID)
	require.NotNil(t, reg.Invoice.AppointmentID)
	assert.Equal(t, reg.Appointment.ID, *reg.Invoice.AppointmentID)

	stored, err := repository.NewInvoiceRepository(db).GetByID(ctx, reg.Invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AppointmentID)
	assert.Equal(t, stored.ID, *stored.AppointmentID)
	assert.Equal(t, domain.InvoiceStatusUnpaid, stored.Status)
	assert.True(t, stored.TotalAmount.IsZero())

	appt, err := repository.NewAppointmentRepository(db).GetDetailed(ctx, reg.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.Patient.ID, appt.PatientID)
	assert.Equal(t, "Nguyen Thi Hoa", appt.Patient.FullName)
	require.NotNil(t, appt.Service)
	assert.Equal(t, service.ID, appt.Service.ID)
	assert.Equal(t, domain.AppointmentStatusScheduled, appt.Status)

	var doctorID int64
	err = db.QueryRow(`SELECT doctor_id FROM appointment_doctors WHERE appointment_id = $1`, reg.Appointment.ID).Scan(&doctorID)
	require.NoError(t, err)
	assert.Equal(t, doctor, doctorID)
}

func TestCreateAndAppointment_RollsBackWhenAppointmentFails(t *testing.T) {
	db := testutil.SetupTestDB(t)
	orch := setupOrchestrator(t, db, failingAppointments{})
	ctx := context.Background()

	service := testutil.SeedService(t, db, "Consultation", decimal.NewFromInt(200_000))
	doctor := testutil.SeedDoctor(t, db, "Dr. Minh")

	_, err := orch.CreateAndAppointment(ctx, registration(service.ID, doctor))
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Contains(t, err.Error(), "create appointment")
	assert.Contains(t, err.Error(), "disk quota exceeded")

	assert.Equal(t, 0, testutil.CountRows(t, db, "invoices"))
	assert.Equal(t, 0, testutil.CountRows(t, db, "patients"))
	assert.Equal(t, 0, testutil.CountRows(t, db, "appointments"))
}

func TestCreateAndAppointment_DuplicatePatient(t *testing.T) {
	db := testutil.SetupTestDB(t)
	orch := setupOrchestrator(t, db, nil)
	ctx := context.Background()

	service := testutil.SeedService(t, db, "Consultation", decimal.NewFromInt(200_000))
	doctor := testutil.SeedDoctor(t, db, "Dr. Minh")

	_, err := orch.CreateAndAppointment(ctx, registration(service.ID, doctor))
	require.NoError(t, err)

	samePhone := registration(service.ID, doctor)
	samePhone.NationalID = "079000000000"
	_, err = orch.CreateAndAppointment(ctx, samePhone)
	require.ErrorIs(t, err, domain.ErrPatientExists)
	assert.ErrorIs(t, err, domain.ErrConflict)

	assert.Equal(t, 1, testutil.CountRows(t, db, "patients"))
	assert.Equal(t, 1, testutil.CountRows(t, db, "invoices"))
}

func TestCreateAndAppointment_UnknownReferences(t *testing.T) {
	db := testutil.SetupTestDB(t)
	orch := setupOrchestrator(t, db, nil)
	ctx := context.Background()

	service := testutil.SeedService(t, db, "Consultation", decimal.NewFromInt(200_000))
	doctor := testutil.SeedDoctor(t, db, "Dr. Minh")

	_, err := orch.CreateAndAppointment(ctx, registration(999, doctor))
	require.ErrorIs(t, err, domain.ErrServiceNotFound)

	_, err = orch.CreateAndAppointment(ctx, registration(service.ID, 999))
	require.ErrorIs(t, err, domain.ErrDoctorNotFound)

	assert.Equal(t, 0, testutil.CountRows(t, db, "patients"))
}

func TestCreateAndAppointment_ValidationWritesNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	orch := setupOrchestrator(t, db, nil)

	req := registration(1, 1)
	req.Phone = "12345"

	_, err := orch.CreateAndAppointment(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, testutil.CountRows(t, db, "patients"))
}
