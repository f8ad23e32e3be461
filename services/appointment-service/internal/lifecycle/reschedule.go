package lifecycle

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/r-osmani/bookpay/services/appointment-service/internal/apperr"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/model"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/outbox"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/storage"
)

type RescheduleRequest struct {
	OldAppointmentID string
	NewAppointment   model.Appointment
}

type RescheduleResult struct {
	Success          bool
	NewAppointmentID string
}

func validateReschedule(req RescheduleRequest) error {
	if strings.TrimSpace(req.OldAppointmentID) == "" {
		return apperr.InvalidArgument("old_appointment_id is required")
	}
	if strings.TrimSpace(req.NewAppointment.ID) == "" {
		return apperr.InvalidArgument("new appointment id is required")
	}
	if strings.TrimSpace(req.NewAppointment.ID) == strings.TrimSpace(req.OldAppointmentID) {
		return apperr.InvalidArgument("new appointment id must differ from the old one")
	}
	return nil
}

// Reschedule supersedes the old appointment with a caller-supplied new
// one in a single transaction: the new row is inserted verbatim (nothing
// is merged from the old row), the old row is marked rescheduled, and
// every payment linked to the old id is relinked to the new one.
func (w *Workflows) Reschedule(ctx context.Context, req RescheduleRequest) (RescheduleResult, error) {
	if err := validateReschedule(req); err != nil {
		return RescheduleResult{}, err
	}
	oldID := strings.TrimSpace(req.OldAppointmentID)
	newAppt := req.NewAppointment
	newAppt.ID = strings.TrimSpace(newAppt.ID)

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return RescheduleResult{}, apperr.Internal("Reschedule failed", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	oldAppt, err := w.appts.GetForUpdate(ctx, tx, oldID)
	if err != nil {
		if storage.IsNotFound(err) {
			return RescheduleResult{}, apperr.NotFound("appointment not found")
		}
		return RescheduleResult{}, apperr.Internal("Reschedule failed", err)
	}

	if err := w.appts.Insert(ctx, tx, newAppt); err != nil {
		if storage.IsDuplicate(err) {
			return RescheduleResult{}, apperr.FailedPrecondition("an appointment with the new id already exists")
		}
		return RescheduleResult{}, apperr.Internal("Reschedule failed", err)
	}

	rescheduledAt, err := w.appts.MarkRescheduled(ctx, tx, oldID, newAppt.ID)
	if err != nil {
		return RescheduleResult{}, apperr.Internal("Reschedule failed", err)
	}

	relinked, err := w.pays.RelinkAppointment(ctx, tx, oldID, newAppt.ID)
	if err != nil {
		return RescheduleResult{}, apperr.Internal("Reschedule failed", err)
	}

	payload, err := json.Marshal(map[string]any{
		"old_appointment_id":  oldID,
		"new_appointment_id":  newAppt.ID,
		"business_id":         oldAppt.BusinessID,
		"service_location_id": oldAppt.ServiceLocationID,
		"rescheduled_at":      rescheduledAt.UTC().Format(time.RFC3339),
		"payments_relinked":   relinked,
	})
	if err != nil {
		return RescheduleResult{}, apperr.Internal("Reschedule failed", err)
	}
	if err := w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   oldID,
		EventType:     outbox.EventAppointmentRescheduled,
		Payload:       payload,
	}); err != nil {
		return RescheduleResult{}, apperr.Internal("Reschedule failed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return RescheduleResult{}, apperr.Internal("Reschedule failed", err)
	}

	w.logger.Info("appointment rescheduled",
		"old_appointment_id", oldID,
		"new_appointment_id", newAppt.ID,
		"payments_relinked", relinked,
	)
	return RescheduleResult{Success: true, NewAppointmentID: newAppt.ID}, nil
}
