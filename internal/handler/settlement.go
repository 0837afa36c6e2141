package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/clinic-settlement/internal/auth"
	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/logging"
	"github.com/josh-kwaku/clinic-settlement/internal/service/settlement"
)

type registrationService interface {
	CreateAndAppointment(ctx context.Context, req settlement.RegistrationRequest) (*settlement.Registration, error)
}

type SettlementHandler struct {
	registrations registrationService
	loc           *time.Location
}

func NewSettlementHandler(registrations registrationService, loc *time.Location) *SettlementHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SettlementHandler{registrations: registrations, loc: loc}
}

type registrationRequest struct {
	FullName        string `json:"fullName"`
	Phone           string `json:"phone"`
	NationalID      string `json:"nationalId"`
	Email           string `json:"email"`
	Address         string `json:"address"`
	AppointmentDate string `json:"appointmentDate"`
	Shift           string `json:"shift"`
	Reason          string `json:"reason"`
	ServiceID       int64  `json:"serviceId"`
	DoctorID        int64  `json:"doctorId"`
}

type patientDTO struct {
	ID         int64  `json:"id"`
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	NationalID string `json:"nationalId"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address,omitempty"`
}

type invoiceDTO struct {
	ID             int64           `json:"id"`
	AppointmentID  *int64          `json:"appointmentId"`
	InitialAmount  decimal.Decimal `json:"initialAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Status         string          `json:"status"`
}

type appointmentDTO struct {
	ID              int64  `json:"id"`
	PatientID       int64  `json:"patientId"`
	ServiceID       *int64 `json:"serviceId"`
	AppointmentDate string `json:"appointmentDate"`
	Shift           string `json:"shift"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
}

type registrationDTO struct {
	Patient     patientDTO     `json:"patient"`
	Invoice     invoiceDTO     `json:"invoice"`
	Appointment appointmentDTO `json:"appointment"`
	DoctorID    int64          `json:"doctorId"`
}

func toRegistrationDTO(reg *settlement.Registration) registrationDTO {
	return registrationDTO{
		Patient: patientDTO{
			ID:         reg.Patient.ID,
			FullName:   reg.Patient.FullName,
			Phone:      reg.Patient.Phone,
			NationalID: reg.Patient.NationalID,
			Email:      reg.Patient.Email,
			Address:    reg.Patient.Address,
		},
		Invoice: invoiceDTO{
			ID:             reg.Invoice.ID,
			AppointmentID:  reg.Invoice.AppointmentID,
			InitialAmount:  reg.Invoice.InitialAmount,
			DiscountAmount: reg.Invoice.DiscountAmount,
			TotalAmount:    reg.Invoice.TotalAmount,
			Status:         string(reg.Invoice.Status),
		},
		Appointment: appointmentDTO{
			ID:              reg.Appointment.ID,
			PatientID:       reg.Appointment.PatientID,
			ServiceID:       reg.Appointment.ServiceID,
			AppointmentDate: reg.Appointment.AppointmentDate.Format(DateLayout),
			Shift:           string(reg.Appointment.Shift),
			Status:          string(reg.Appointment.Status),
			Reason:          reg.Appointment.Reason,
		},
		DoctorID: reg.Assignment.DoctorID,
	}
}

// CreateAndAppointment registers a walk-in patient with their appointment and
// its invoice.
func (h *SettlementHandler) CreateAndAppointment(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actor := auth.ActorFromContext(r.Context())
	if actor == "" {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var appointmentDate time.Time
	if req.AppointmentDate != "" {
		d, errs := parseDate(req.AppointmentDate, "appointmentDate", h.loc, nil)
		if len(errs) > 0 {
			RespondValidationError(w, errs)
			return
		}
		appointmentDate = *d
	}

	reg, err := h.registrations.CreateAndAppointment(r.Context(), settlement.RegistrationRequest{
		FullName:        req.FullName,
		Phone:           req.Phone,
		NationalID:      req.NationalID,
		Email:           req.Email,
		Address:         req.Address,
		AppointmentDate: appointmentDate,
		Shift:           domain.Shift(req.Shift),
		Reason:          req.Reason,
		ServiceID:       req.ServiceID,
		DoctorID:        req.DoctorID,
		Actor:           actor,
	})
	if err != nil {
		log.Warn("registration failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/invoice/%d", reg.Invoice.ID))
	RespondSuccess(w, http.StatusCreated, toRegistrationDTO(reg))
}
