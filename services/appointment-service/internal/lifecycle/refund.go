package lifecycle

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/r-osmani/bookpay/services/appointment-service/internal/apperr"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/model"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/outbox"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/payments"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/storage"
)

type RefundPaymentRequest struct {
	ConsumerID     string
	PaymentID      string
	AmountCents    int64
	Reason         string
	IdempotencyKey string
}

// RefundPayment is the standalone refund callable: it refunds part or all
// of a recorded payment and folds the result back into the payment row.
// The gateway call happens before any write, so a gateway failure leaves
// the payment row untouched.
func (w *Workflows) RefundPayment(ctx context.Context, req RefundPaymentRequest) (payments.Result, error) {
	req.ConsumerID = strings.TrimSpace(req.ConsumerID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.ConsumerID == "" {
		return payments.Result{}, apperr.InvalidArgument("consumer_id is required")
	}
	if req.PaymentID == "" {
		return payments.Result{}, apperr.InvalidArgument("payment_id is required")
	}
	if req.AmountCents <= 0 {
		return payments.Result{}, apperr.InvalidArgument("amount_cents must be positive")
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return payments.Result{}, apperr.Internal("Refund failed", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	pay, err := w.pays.GetForUpdate(ctx, tx, req.PaymentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return payments.Result{}, apperr.NotFound("payment not found")
		}
		return payments.Result{}, apperr.Internal("Refund failed", err)
	}

	reason := strings.TrimSpace(req.Reason)
	res, err := w.refunder.Refund(ctx, payments.RefundRequest{
		ConsumerID:     req.ConsumerID,
		PaymentID:      pay.TransactionID,
		AmountCents:    req.AmountCents,
		Reason:         reason,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
	})
	if err != nil {
		return payments.Result{}, err
	}

	if err := w.pays.ApplyRefund(ctx, tx, pay.TransactionID, res.ID, model.RefundStatusFromGateway(res.Status), req.AmountCents, pay.CancellationFeeCents); err != nil {
		return payments.Result{}, apperr.Internal("Refund failed", err)
	}

	payload, err := json.Marshal(map[string]any{
		"payment_id":          pay.TransactionID,
		"appointment_id":      pay.AppointmentID,
		"consumer_id":         req.ConsumerID,
		"refund_id":           res.ID,
		"refund_amount_cents": req.AmountCents,
		"reason":              reason,
		"refunded_at":         time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return payments.Result{}, apperr.Internal("Refund failed", err)
	}
	if err := w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "payment",
		AggregateID:   pay.TransactionID,
		EventType:     outbox.EventPaymentRefunded,
		Payload:       payload,
	}); err != nil {
		return payments.Result{}, apperr.Internal("Refund failed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return payments.Result{}, apperr.Internal("Refund failed", err)
	}
	return res, nil
}
