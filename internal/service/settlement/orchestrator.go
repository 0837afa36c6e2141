package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/clinic-settlement/internal/clock"
	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/logging"
)

var (
	phonePattern      = regexp.MustCompile(`^0[0-9]{9}$`)
	nationalIDPattern = regexp.MustCompile(`^[0-9]{12}$`)
)

type patientRepo interface {
	ExistsByNationalIDOrPhone(ctx context.Context, tx *sql.Tx, nationalID, phone string) (bool, error)
	Create(ctx context.Context, tx *sql.Tx, p *domain.Patient) error
}

type invoiceRepo interface {
	Create(ctx context.Context, tx *sql.Tx, inv *domain.Invoice) error
	SetAppointmentRef(ctx context.Context, tx *sql.Tx, invoiceID, appointmentID int64, at time.Time) error
}

type appointmentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, a *domain.Appointment) error
}

type directoryRepo interface {
	GetService(ctx context.Context, id int64) (*domain.Service, error)
	DoctorExists(ctx context.Context, id int64) (bool, error)
	AssignDoctor(ctx context.Context, tx *sql.Tx, a *domain.DoctorAssignment) error
}

// Orchestrator provisions a walk-in patient together with their appointment,
// its invoice and the doctor assignment, all in one transaction.
type Orchestrator struct {
	patients     patientRepo
	invoices     invoiceRepo
	appointments appointmentRepo
	directory    directoryRepo
	db           *sql.DB
	clock        clock.Clock
	loc          *time.Location
}

func NewOrchestrator(
	patients patientRepo,
	invoices invoiceRepo,
	appointments appointmentRepo,
	directory directoryRepo,
	db *sql.DB,
	clk clock.Clock,
	loc *time.Location,
) *Orchestrator {
	if loc == nil {
		loc = time.UTC
	}
	return &Orchestrator{
		patients:     patients,
		invoices:     invoices,
		appointments: appointments,
		directory:    directory,
		db:           db,
		clock:        clk,
		loc:          loc,
	}
}

type RegistrationRequest struct {
	FullName        string
	Phone           string
	NationalID      string
	Email           string
	Address         string
	AppointmentDate time.Time
	Shift           domain.Shift
	Reason          string
	ServiceID       int64
	DoctorID        int64
	Actor           string
}

type Registration struct {
	Patient     *domain.Patient
	Invoice     *domain.Invoice
	Appointment *domain.Appointment
	Assignment  *domain.DoctorAssignment
}

// CreateAndAppointment registers a patient and books their appointment.
// Validation and reference checks happen before any write. Once writing
// starts, any failure rolls back the whole registration.
func (o *Orchestrator) CreateAndAppointment(ctx context.Context, req RegistrationRequest) (*Registration, error) {
	log := logging.FromContext(ctx)

	now := o.clock.Now()
	if err := o.validate(&req, now); err != nil {
		return nil, fmt.Errorf("CreateAndAppointment: %w", err)
	}

	if _, err := o.directory.GetService(ctx, req.ServiceID); err != nil {
		return nil, fmt.Errorf("CreateAndAppointment: %w", err)
	}
	ok, err := o.directory.DoctorExists(ctx, req.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("CreateAndAppointment: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("CreateAndAppointment: doctor %d: %w", req.DoctorID, domain.ErrDoctorNotFound)
	}

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateAndAppointment: begin tx: %w: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	exists, err := o.patients.ExistsByNationalIDOrPhone(ctx, tx, req.NationalID, req.Phone)
	if err != nil {
		return nil, domain.Persistence("CreateAndAppointment: check patient", err)
	}
	if exists {
		return nil, fmt.Errorf("CreateAndAppointment: %w", domain.ErrPatientExists)
	}

	patient := &domain.Patient{
		FullName:   req.FullName,
		Phone:      req.Phone,
		NationalID: req.NationalID,
		Email:      req.Email,
		Address:    req.Address,
		CreatedAt:  now,
		CreatedBy:  req.Actor,
	}
	if err := o.patients.Create(ctx, tx, patient); err != nil {
		return nil, domain.Persistence("CreateAndAppointment: create patient", err)
	}

	serviceID := req.ServiceID
	invoice, appt, err := o.createCorrelatedPair(ctx, tx, &domain.Appointment{
		PatientID:       patient.ID,
		ServiceID:       &serviceID,
		AppointmentDate: req.AppointmentDate,
		Shift:           req.Shift,
		Status:          domain.AppointmentStatusScheduled,
		Reason:          req.Reason,
		CreatedAt:       now,
		CreatedBy:       req.Actor,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("CreateAndAppointment: %w", err)
	}

	assignment := &domain.DoctorAssignment{AppointmentID: appt.ID, DoctorID: req.DoctorID, CreatedAt: now}
	if err := o.directory.AssignDoctor(ctx, tx, assignment); err != nil {
		return nil, domain.Persistence("CreateAndAppointment: assign doctor", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CreateAndAppointment: commit: %w: %w", domain.ErrPersistence, err)
	}

	log.Info("patient registered with appointment",
		"patient_id", patient.ID,
		"appointment_id", appt.ID,
		"invoice_id", invoice.ID,
		"doctor_id", req.DoctorID,
	)

	return &Registration{
		Patient:     patient,
		Invoice:     invoice,
		Appointment: appt,
		Assignment:  assignment,
	}, nil
}

// createCorrelatedPair is the only way an invoice and its appointment come
// into being. The invoice is inserted first to allocate the identifier, the
// appointment takes that identifier, and the invoice is then pointed at it.
func (o *Orchestrator) createCorrelatedPair(ctx context.Context, tx *sql.Tx, appt *domain.Appointment, now time.Time) (*domain.Invoice, *domain.Appointment, error) {
	invoice := &domain.Invoice{
		InitialAmount:  decimal.Zero,
		DiscountAmount: decimal.Zero,
		TotalAmount:    decimal.Zero,
		Status:         domain.InvoiceStatusUnpaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.invoices.Create(ctx, tx, invoice); err != nil {
		return nil, nil, domain.Persistence("createCorrelatedPair: create invoice", err)
	}

	appt.ID = invoice.ID
	if err := o.appointments.Create(ctx, tx, appt); err != nil {
		return nil, nil, domain.Persistence("createCorrelatedPair: create appointment", err)
	}

	if err := o.invoices.SetAppointmentRef(ctx, tx, invoice.ID, appt.ID, now); err != nil {
		return nil, nil, domain.Persistence("createCorrelatedPair: link invoice", err)
	}
	invoice.AppointmentID = &appt.ID

	if err := domain.CheckCorrelation(invoice.ID, *invoice.AppointmentID); err != nil {
		return nil, nil, fmt.Errorf("createCorrelatedPair: %w", err)
	}
	return invoice, appt, nil
}

// validate normalises the request and reports every invalid field at once.
func (o *Orchestrator) validate(req *RegistrationRequest, now time.Time) error {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.NationalID = strings.TrimSpace(req.NationalID)
	req.Email = strings.TrimSpace(req.Email)
	req.Shift = domain.Shift(strings.ToLower(strings.TrimSpace(string(req.Shift))))

	verr := &domain.ValidationError{}

	if req.FullName == "" {
		verr.Add("fullName", "is required")
	}

	switch {
	case req.Phone == "":
		verr.Add("phone", "is required")
	case !phonePattern.MatchString(req.Phone):
		verr.Add("phone", "must be 10 digits starting with 0")
	}

	switch {
	case req.NationalID == "":
		verr.Add("nationalId", "is required")
	case !nationalIDPattern.MatchString(req.NationalID):
		verr.Add("nationalId", "must be 12 digits")
	}

	if req.Email != "" && !strings.Contains(req.Email, "@") {
		verr.Add("email", "is not a valid address")
	}

	if req.AppointmentDate.IsZero() {
		verr.Add("appointmentDate", "is required")
	} else {
		y, m, d := req.AppointmentDate.Date()
		req.AppointmentDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

		ty, tm, td := now.In(o.loc).Date()
		today := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
		if req.AppointmentDate.Before(today) {
			verr.Add("appointmentDate", "must not be in the past")
		}
	}

	switch {
	case req.Shift == "":
		verr.Add("shift", "is required")
	case !req.Shift.IsValid():
		verr.Add("shift", "must be morning or afternoon")
	}

	if req.ServiceID <= 0 {
		verr.Add("serviceId", "is required")
	}
	if req.DoctorID <= 0 {
		verr.Add("doctorId", "is required")
	}

	return verr.OrNil()
}
