package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"github.com/r-osmani/bookpay/services/appointment-service/internal/apperr"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/payments"
)

type fakeCharger struct {
	result payments.Result
	err    error
	req    payments.ChargeRequest
}

func (f *fakeCharger) Charge(_ context.Context, req payments.ChargeRequest) (payments.Result, error) {
	f.req = req
	return f.result, f.err
}

func TestChargeSuccess(t *testing.T) {
	charger := &fakeCharger{result: payments.Result{ID: "pay-1", Status: "COMPLETED"}}
	h := NewPaymentHandler(charger, &fakeWorkflows{}, slog.Default())

	rw := postJSON(t, h.Charge, `{"consumer_id":"loc-1","appointment_id":"appt-1","amount_cents":5000,"nonce":" cnon:ok ","idempotency_key":"key-1"}`)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body)
	}
	if charger.req.Nonce != "cnon:ok" {
		t.Fatalf("nonce must be trimmed, got %q", charger.req.Nonce)
	}
	if charger.req.IdempotencyKey != "key-1" {
		t.Fatalf("idempotency key not forwarded, got %q", charger.req.IdempotencyKey)
	}

	var resp chargeResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PaymentID != "pay-1" || resp.Status != "COMPLETED" {
		t.Fatalf("unexpected response: %s", rw.Body)
	}
}

func TestChargeValidationError(t *testing.T) {
	charger := &fakeCharger{err: apperr.InvalidArgument("amount_cents must be positive")}
	h := NewPaymentHandler(charger, &fakeWorkflows{}, slog.Default())

	rw := postJSON(t, h.Charge, `{"consumer_id":"loc-1","nonce":"cnon:ok"}`)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
	code, msg := decodeError(t, rw)
	if code != "invalid-argument" || msg != "amount_cents must be positive" {
		t.Fatalf("unexpected envelope: %s", rw.Body)
	}
}

func TestChargeGatewayFailureHidesDetail(t *testing.T) {
	charger := &fakeCharger{err: apperr.Internal("Charge failed", nil)}
	h := NewPaymentHandler(charger, &fakeWorkflows{}, slog.Default())

	rw := postJSON(t, h.Charge, `{"consumer_id":"loc-1","amount_cents":100,"nonce":"cnon:ok"}`)
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.Code)
	}
	_, msg := decodeError(t, rw)
	if msg != "Charge failed" {
		t.Fatalf("internal detail must not leak: %q", msg)
	}
}

func TestRefundSuccess(t *testing.T) {
	wf := &fakeWorkflows{refundResult: payments.Result{ID: "ref-1", Status: "PENDING"}}
	h := NewPaymentHandler(&fakeCharger{}, wf, slog.Default())

	rw := postJSON(t, h.Refund, `{"consumer_id":"loc-1","payment_id":"pay-1","amount_cents":4500,"reason":"cancellation"}`)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body)
	}
	var resp refundResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RefundID != "ref-1" || resp.Status != "PENDING" {
		t.Fatalf("unexpected response: %s", rw.Body)
	}
}

func TestRefundUnknownPayment(t *testing.T) {
	wf := &fakeWorkflows{refundErr: apperr.NotFound("payment not found")}
	h := NewPaymentHandler(&fakeCharger{}, wf, slog.Default())

	rw := postJSON(t, h.Refund, `{"consumer_id":"loc-1","payment_id":"missing","amount_cents":100}`)
	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Code)
	}
}

func TestRefundInvalidJSON(t *testing.T) {
	h := NewPaymentHandler(&fakeCharger{}, &fakeWorkflows{}, slog.Default())
	rw := postJSON(t, h.Refund, `not json`)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}
