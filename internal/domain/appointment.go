package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
)

func (s Shift) IsValid() bool {
	return s == ShiftMorning || s == ShiftAfternoon
}

type Appointment struct {
	ID              int64
	PatientID       int64
	ServiceID       *int64
	AppointmentDate time.Time
	Shift           Shift
	Status          AppointmentStatus
	Reason          string
	CreatedAt       time.Time
	CreatedBy       string

	// Loaded by AppointmentRepository.GetDetailed.
	Patient *Patient
	Service *Service
}

type Service struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// DoctorAssignment links a doctor to an appointment.
type DoctorAssignment struct {
	AppointmentID int64
	DoctorID      int64
	CreatedAt     time.Time
}
