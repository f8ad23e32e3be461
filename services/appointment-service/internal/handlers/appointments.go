package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/r-osmani/bookpay/services/appointment-service/internal/apperr"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/lifecycle"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/model"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/payments"
)

// LifecycleService is the workflow surface the handlers call.
type LifecycleService interface {
	Cancel(ctx context.Context, req lifecycle.CancelRequest) (lifecycle.CancelResult, error)
	Reschedule(ctx context.Context, req lifecycle.RescheduleRequest) (lifecycle.RescheduleResult, error)
	RefundPayment(ctx context.Context, req lifecycle.RefundPaymentRequest) (payments.Result, error)
}

type AppointmentHandler struct {
	workflows LifecycleService
	logger    *slog.Logger
}

func NewAppointmentHandler(workflows LifecycleService, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{workflows: workflows, logger: logger}
}

type cancelRequest struct {
	AppointmentID         string `json:"appointment_id"`
	CancellationFeeCents  int64  `json:"cancellation_fee_cents"`
	AcceptCancellationFee bool   `json:"accept_cancellation_fee"`
	Reason                string `json:"reason"`
}

type refundResultView struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

type appointmentView struct {
	ID                   string `json:"id"`
	BusinessID           string `json:"business_id"`
	ServiceLocationID    string `json:"service_location_id"`
	Status               string `json:"status"`
	StartTime            string `json:"start_time"`
	EndTime              string `json:"end_time"`
	CancelledAt          string `json:"cancelled_at,omitempty"`
	CancellationReason   string `json:"cancellation_reason,omitempty"`
	CancellationFeeCents int64  `json:"cancellation_fee_cents,omitempty"`
	RefundID             string `json:"refund_id,omitempty"`
	RescheduledTo        string `json:"rescheduled_to,omitempty"`
	RescheduledAt        string `json:"rescheduled_at,omitempty"`
	CreatedAt            string `json:"created_at"`
}

type cancelResponse struct {
	Success              bool              `json:"success"`
	RequiresConfirmation bool              `json:"requires_confirmation,omitempty"`
	CancellationFeeCents int64             `json:"cancellation_fee_cents,omitempty"`
	RefundResult         *refundResultView `json:"refund_result,omitempty"`
	Appointment          *appointmentView  `json:"appointment,omitempty"`
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, apperr.CodeInvalidArgument, "invalid json body")
		return
	}

	result, err := h.workflows.Cancel(r.Context(), lifecycle.CancelRequest{
		AppointmentID:         strings.TrimSpace(req.AppointmentID),
		CancellationFeeCents:  req.CancellationFeeCents,
		AcceptCancellationFee: req.AcceptCancellationFee,
		Reason:                req.Reason,
	})
	if err != nil {
		h.logger.Error("cancellation failed", "appointment_id", req.AppointmentID, "err", err)
		writeError(w, err, "Cancellation failed")
		return
	}

	resp := cancelResponse{
		Success:              result.Success,
		RequiresConfirmation: result.RequiresConfirmation,
		CancellationFeeCents: result.CancellationFeeCents,
	}
	if result.Refund != nil {
		resp.RefundResult = &refundResultView{RefundID: result.Refund.ID, Status: result.Refund.Status}
	}
	if result.Appointment.ID != "" {
		view := viewAppointment(result.Appointment)
		resp.Appointment = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

type rescheduleRequest struct {
	OldAppointmentID string             `json:"old_appointment_id"`
	NewAppointment   newAppointmentBody `json:"new_appointment"`
}

type newAppointmentBody struct {
	ID                string `json:"id"`
	BusinessID        string `json:"business_id"`
	ServiceLocationID string `json:"service_location_id"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
}

type rescheduleResponse struct {
	Success          bool   `json:"success"`
	NewAppointmentID string `json:"new_appointment_id"`
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, apperr.CodeInvalidArgument, "invalid json body")
		return
	}

	newAppt := model.Appointment{
		ID:                strings.TrimSpace(req.NewAppointment.ID),
		BusinessID:        strings.TrimSpace(req.NewAppointment.BusinessID),
		ServiceLocationID: strings.TrimSpace(req.NewAppointment.ServiceLocationID),
		Status:            model.StatusScheduled,
	}
	if req.NewAppointment.StartTime != "" {
		start, err := time.Parse(time.RFC3339, req.NewAppointment.StartTime)
		if err != nil {
			writeCode(w, apperr.CodeInvalidArgument, "invalid start_time")
			return
		}
		newAppt.StartTime = start
	}
	if req.NewAppointment.EndTime != "" {
		end, err := time.Parse(time.RFC3339, req.NewAppointment.EndTime)
		if err != nil {
			writeCode(w, apperr.CodeInvalidArgument, "invalid end_time")
			return
		}
		newAppt.EndTime = end
	}

	result, err := h.workflows.Reschedule(r.Context(), lifecycle.RescheduleRequest{
		OldAppointmentID: strings.TrimSpace(req.OldAppointmentID),
		NewAppointment:   newAppt,
	})
	if err != nil {
		h.logger.Error("reschedule failed", "old_appointment_id", req.OldAppointmentID, "err", err)
		writeError(w, err, "Reschedule failed")
		return
	}

	writeJSON(w, http.StatusOK, rescheduleResponse{
		Success:          result.Success,
		NewAppointmentID: result.NewAppointmentID,
	})
}

func viewAppointment(appt model.Appointment) appointmentView {
	view := appointmentView{
		ID:                   appt.ID,
		BusinessID:           appt.BusinessID,
		ServiceLocationID:    appt.ServiceLocationID,
		Status:               appt.Status,
		StartTime:            appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:              appt.EndTime.UTC().Format(time.RFC3339),
		CancellationReason:   appt.CancellationReason,
		CancellationFeeCents: appt.CancellationFeeCents,
		RefundID:             appt.RefundID,
		RescheduledTo:        appt.RescheduledTo,
		CreatedAt:            appt.CreatedAt.UTC().Format(time.RFC3339),
	}
	if appt.CancelledAt != nil {
		view.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	if appt.RescheduledAt != nil {
		view.RescheduledAt = appt.RescheduledAt.UTC().Format(time.RFC3339)
	}
	return view
}
