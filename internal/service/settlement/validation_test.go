package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

var ict = time.FixedZone("ICT", 7*60*60)

func validRequest() RegistrationRequest {
	return RegistrationRequest{
		FullName:        "Nguyen Van A",
		Phone:           "0912345678",
		NationalID:      "012345678901",
		Email:           "a@example.com",
		AppointmentDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Shift:           domain.ShiftMorning,
		ServiceID:       1,
		DoctorID:        2,
	}
}

func TestValidate(t *testing.T) {
	// 2024-05-31 18:00 UTC is already 2024-06-01 in the clinic's zone.
	now := time.Date(2024, 5, 31, 18, 0, 0, 0, time.UTC)
	o := &Orchestrator{loc: ict}

	tests := []struct {
		name      string
		mutate    func(r *RegistrationRequest)
		wantField string
	}{
		{name: "valid", mutate: func(r *RegistrationRequest) {}},
		{name: "shift is case-insensitive", mutate: func(r *RegistrationRequest) { r.Shift = " Afternoon " }},
		{name: "email optional", mutate: func(r *RegistrationRequest) { r.Email = "" }},
		{name: "missing name", mutate: func(r *RegistrationRequest) { r.FullName = "  " }, wantField: "fullName"},
		{name: "missing phone", mutate: func(r *RegistrationRequest) { r.Phone = "" }, wantField: "phone"},
		{name: "phone without leading zero", mutate: func(r *RegistrationRequest) { r.Phone = "9123456789" }, wantField: "phone"},
		{name: "phone too short", mutate: func(r *RegistrationRequest) { r.Phone = "091234567" }, wantField: "phone"},
		{name: "national id 9 digits", mutate: func(r *RegistrationRequest) { r.NationalID = "012345678" }, wantField: "nationalId"},
		{name: "national id with letter", mutate: func(r *RegistrationRequest) { r.NationalID = "01234567890A" }, wantField: "nationalId"},
		{name: "email without at", mutate: func(r *RegistrationRequest) { r.Email = "a.example.com" }, wantField: "email"},
		{name: "date in the past", mutate: func(r *RegistrationRequest) { r.AppointmentDate = time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC) }, wantField: "appointmentDate"},
		{name: "missing date", mutate: func(r *RegistrationRequest) { r.AppointmentDate = time.Time{} }, wantField: "appointmentDate"},
		{name: "evening shift", mutate: func(r *RegistrationRequest) { r.Shift = "evening" }, wantField: "shift"},
		{name: "missing shift", mutate: func(r *RegistrationRequest) { r.Shift = "" }, wantField: "shift"},
		{name: "missing service", mutate: func(r *RegistrationRequest) { r.ServiceID = 0 }, wantField: "serviceId"},
		{name: "missing doctor", mutate: func(r *RegistrationRequest) { r.DoctorID = 0 }, wantField: "doctorId"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)

			err := o.validate(&req, now)
			if tc.wantField == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, domain.ErrValidation)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tc.wantField, verr.Fields[0].Field)
		})
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	o := &Orchestrator{loc: ict}
	req := RegistrationRequest{Phone: "123", Shift: "night"}

	err := o.validate(&req, time.Now())

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		fields[i] = f.Field
	}
	assert.Equal(t, []string{"fullName", "phone", "nationalId", "appointmentDate", "shift", "serviceId", "doctorId"}, fields)
}
