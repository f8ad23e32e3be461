package lifecycle

import (
	"testing"

	"github.com/r-osmani/bookpay/services/appointment-service/internal/apperr"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/model"
)

func TestValidateReschedule(t *testing.T) {
	cases := []struct {
		name string
		req  RescheduleRequest
		code apperr.Code
	}{
		{
			name: "missing old id",
			req:  RescheduleRequest{NewAppointment: model.Appointment{ID: "appt-2"}},
			code: apperr.CodeInvalidArgument,
		},
		{
			name: "missing new id",
			req:  RescheduleRequest{OldAppointmentID: "appt-1"},
			code: apperr.CodeInvalidArgument,
		},
		{
			name: "same id",
			req: RescheduleRequest{
				OldAppointmentID: "appt-1",
				NewAppointment:   model.Appointment{ID: " appt-1 "},
			},
			code: apperr.CodeInvalidArgument,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validateReschedule(c.req)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if apperr.CodeOf(err) != c.code {
				t.Fatalf("expected %s, got %v", c.code, err)
			}
		})
	}

	ok := RescheduleRequest{
		OldAppointmentID: "appt-1",
		NewAppointment:   model.Appointment{ID: "appt-2"},
	}
	if err := validateReschedule(ok); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}
