package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/r-osmani/bookpay/services/appointment-service/internal/apperr"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/lifecycle"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/payments"
)

// Charger is the slice of the payments service the charge callable uses.
type Charger interface {
	Charge(ctx context.Context, req payments.ChargeRequest) (payments.Result, error)
}

type PaymentHandler struct {
	charger   Charger
	workflows LifecycleService
	logger    *slog.Logger
}

func NewPaymentHandler(charger Charger, workflows LifecycleService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{charger: charger, workflows: workflows, logger: logger}
}

type chargeRequest struct {
	ConsumerID     string `json:"consumer_id"`
	AppointmentID  string `json:"appointment_id"`
	AmountCents    int64  `json:"amount_cents"`
	Nonce          string `json:"nonce"`
	Provider       string `json:"provider"`
	IdempotencyKey string `json:"idempotency_key"`
}

type chargeResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

func (h *PaymentHandler) Charge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, apperr.CodeInvalidArgument, "invalid json body")
		return
	}

	res, err := h.charger.Charge(r.Context(), payments.ChargeRequest{
		ConsumerID:     strings.TrimSpace(req.ConsumerID),
		AppointmentID:  strings.TrimSpace(req.AppointmentID),
		AmountCents:    req.AmountCents,
		Nonce:          strings.TrimSpace(req.Nonce),
		Provider:       strings.TrimSpace(req.Provider),
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
	})
	if err != nil {
		h.logger.Error("charge failed", "consumer_id", req.ConsumerID, "err", err)
		writeError(w, err, "Charge failed")
		return
	}

	writeJSON(w, http.StatusOK, chargeResponse{PaymentID: res.ID, Status: res.Status})
}

type refundRequest struct {
	ConsumerID     string `json:"consumer_id"`
	PaymentID      string `json:"payment_id"`
	AmountCents    int64  `json:"amount_cents"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

type refundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, apperr.CodeInvalidArgument, "invalid json body")
		return
	}

	res, err := h.workflows.RefundPayment(r.Context(), lifecycle.RefundPaymentRequest{
		ConsumerID:     strings.TrimSpace(req.ConsumerID),
		PaymentID:      strings.TrimSpace(req.PaymentID),
		AmountCents:    req.AmountCents,
		Reason:         req.Reason,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
	})
	if err != nil {
		h.logger.Error("refund failed", "payment_id", req.PaymentID, "err", err)
		writeError(w, err, "Refund failed")
		return
	}

	writeJSON(w, http.StatusOK, refundResponse{RefundID: res.ID, Status: res.Status})
}
