package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/r-osmani/bookpay/services/appointment-service/internal/apperr"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/lifecycle"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/model"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/payments"
)

type fakeWorkflows struct {
	cancelResult lifecycle.CancelResult
	cancelErr    error
	cancelReq    lifecycle.CancelRequest

	rescheduleResult lifecycle.RescheduleResult
	rescheduleErr    error
	rescheduleReq    lifecycle.RescheduleRequest

	refundResult payments.Result
	refundErr    error
}

func (f *fakeWorkflows) Cancel(_ context.Context, req lifecycle.CancelRequest) (lifecycle.CancelResult, error) {
	f.cancelReq = req
	return f.cancelResult, f.cancelErr
}

func (f *fakeWorkflows) Reschedule(_ context.Context, req lifecycle.RescheduleRequest) (lifecycle.RescheduleResult, error) {
	f.rescheduleReq = req
	return f.rescheduleResult, f.rescheduleErr
}

func (f *fakeWorkflows) RefundPayment(_ context.Context, _ lifecycle.RefundPaymentRequest) (payments.Result, error) {
	return f.refundResult, f.refundErr
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "http://example.com", strings.NewReader(body))
	rw := httptest.NewRecorder()
	h(rw, req)
	return rw
}

func decodeError(t *testing.T, rw *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env.Error.Code, env.Error.Message
}

func TestCancelSuccess(t *testing.T) {
	wf := &fakeWorkflows{
		cancelResult: lifecycle.CancelResult{
			Success:              true,
			CancellationFeeCents: 500,
			Refund:               &payments.Result{ID: "ref-1", Status: "refunded"},
			Appointment:          model.Appointment{ID: "appt-1", Status: model.StatusCancelled},
		},
	}
	h := NewAppointmentHandler(wf, slog.Default())

	rw := postJSON(t, h.Cancel, `{"appointment_id":" appt-1 ","cancellation_fee_cents":500,"accept_cancellation_fee":true,"reason":"no show"}`)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body)
	}
	if wf.cancelReq.AppointmentID != "appt-1" {
		t.Fatalf("appointment id must be trimmed, got %q", wf.cancelReq.AppointmentID)
	}

	var resp struct {
		Success      bool `json:"success"`
		RefundResult *struct {
			RefundID string `json:"refund_id"`
		} `json:"refund_result"`
		Appointment *struct {
			Status string `json:"status"`
		} `json:"appointment"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.RefundResult == nil || resp.RefundResult.RefundID != "ref-1" {
		t.Fatalf("unexpected response: %s", rw.Body)
	}
	if resp.Appointment == nil || resp.Appointment.Status != model.StatusCancelled {
		t.Fatalf("response must carry the cancelled appointment: %s", rw.Body)
	}
}

func TestCancelDryRunQuote(t *testing.T) {
	wf := &fakeWorkflows{
		cancelResult: lifecycle.CancelResult{
			RequiresConfirmation: true,
			CancellationFeeCents: 500,
			Appointment:          model.Appointment{ID: "appt-1", Status: model.StatusScheduled},
		},
	}
	h := NewAppointmentHandler(wf, slog.Default())

	rw := postJSON(t, h.Cancel, `{"appointment_id":"appt-1","cancellation_fee_cents":500}`)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp struct {
		Success              bool  `json:"success"`
		RequiresConfirmation bool  `json:"requires_confirmation"`
		CancellationFeeCents int64 `json:"cancellation_fee_cents"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || !resp.RequiresConfirmation || resp.CancellationFeeCents != 500 {
		t.Fatalf("unexpected quote response: %s", rw.Body)
	}
}

func TestCancelErrorMapping(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{apperr.NotFound("appointment not found"), http.StatusNotFound, "not-found"},
		{apperr.FailedPrecondition("appointment is not in a cancellable state"), http.StatusConflict, "failed-precondition"},
		{apperr.InvalidArgument("appointment_id is required"), http.StatusBadRequest, "invalid-argument"},
		{apperr.Internal("Cancellation failed", nil), http.StatusInternalServerError, "internal"},
	}
	for _, c := range cases {
		h := NewAppointmentHandler(&fakeWorkflows{cancelErr: c.err}, slog.Default())
		rw := postJSON(t, h.Cancel, `{"appointment_id":"appt-1"}`)
		if rw.Code != c.wantStatus {
			t.Fatalf("%v: expected %d, got %d", c.err, c.wantStatus, rw.Code)
		}
		code, _ := decodeError(t, rw)
		if code != c.wantCode {
			t.Fatalf("%v: expected code %s, got %s", c.err, c.wantCode, code)
		}
	}
}

func TestCancelInvalidJSON(t *testing.T) {
	h := NewAppointmentHandler(&fakeWorkflows{}, slog.Default())
	rw := postJSON(t, h.Cancel, `{"appointment_id":`)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	apptH := NewAppointmentHandler(&fakeWorkflows{}, slog.Default())
	payH := NewPaymentHandler(&fakeCharger{}, &fakeWorkflows{}, slog.Default())

	for name, handler := range map[string]http.HandlerFunc{
		"cancel":     apptH.Cancel,
		"reschedule": apptH.Reschedule,
		"charge":     payH.Charge,
		"refund":     payH.Refund,
	} {
		req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		rw := httptest.NewRecorder()
		handler(rw, req)
		if rw.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405 for GET, got %d", name, rw.Code)
		}
	}
}

func TestRescheduleSuccess(t *testing.T) {
	wf := &fakeWorkflows{
		rescheduleResult: lifecycle.RescheduleResult{Success: true, NewAppointmentID: "appt-2"},
	}
	h := NewAppointmentHandler(wf, slog.Default())

	body := `{
		"old_appointment_id": "appt-1",
		"new_appointment": {
			"id": "appt-2",
			"business_id": "biz-1",
			"service_location_id": "loc-1",
			"start_time": "2026-09-15T10:00:00Z",
			"end_time": "2026-09-15T11:00:00Z"
		}
	}`
	rw := postJSON(t, h.Reschedule, body)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body)
	}
	if wf.rescheduleReq.NewAppointment.Status != model.StatusScheduled {
		t.Fatalf("new appointment must start scheduled, got %q", wf.rescheduleReq.NewAppointment.Status)
	}
	if wf.rescheduleReq.NewAppointment.StartTime.IsZero() {
		t.Fatal("start_time not parsed")
	}

	var resp rescheduleResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.NewAppointmentID != "appt-2" {
		t.Fatalf("unexpected response: %s", rw.Body)
	}
}

func TestRescheduleBadTimes(t *testing.T) {
	h := NewAppointmentHandler(&fakeWorkflows{}, slog.Default())
	rw := postJSON(t, h.Reschedule, `{"old_appointment_id":"appt-1","new_appointment":{"id":"appt-2","start_time":"not-a-time"}}`)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad start_time, got %d", rw.Code)
	}
	_, msg := decodeError(t, rw)
	if msg != "invalid start_time" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRescheduleDuplicateNewID(t *testing.T) {
	wf := &fakeWorkflows{rescheduleErr: apperr.FailedPrecondition("an appointment with the new id already exists")}
	h := NewAppointmentHandler(wf, slog.Default())
	rw := postJSON(t, h.Reschedule, `{"old_appointment_id":"appt-1","new_appointment":{"id":"appt-2"}}`)
	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rw.Code)
	}
}
