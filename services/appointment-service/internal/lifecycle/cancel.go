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

type CancelRequest struct {
	AppointmentID         string
	CancellationFeeCents  int64
	AcceptCancellationFee bool
	Reason                string
}

type CancelResult struct {
	Success              bool
	RequiresConfirmation bool
	CancellationFeeCents int64
	Refund               *payments.Result
	Appointment          model.Appointment
}

// cancelPlan is the pure decision for one cancellation attempt, computed
// from the locked appointment, its newest payment, and the caller's input.
type cancelPlan struct {
	RequiresConfirmation bool
	FeeCents             int64
	RefundCents          int64
	Reason               string
}

// planCancellation applies the state guard, the two-phase fee handshake,
// and the refund arithmetic. A fee quote without acceptance yields the
// confirmation plan; everything else either errors or proceeds.
func planCancellation(appt model.Appointment, pay *model.Payment, req CancelRequest) (cancelPlan, error) {
	if !appt.Cancellable() {
		return cancelPlan{}, apperr.FailedPrecondition("appointment is not in a cancellable state")
	}
	if req.CancellationFeeCents < 0 {
		return cancelPlan{}, apperr.InvalidArgument("cancellation_fee_cents must not be negative")
	}

	fee := req.CancellationFeeCents
	if fee > 0 && !req.AcceptCancellationFee {
		return cancelPlan{RequiresConfirmation: true, FeeCents: fee}, nil
	}

	var refundCents int64
	if pay != nil && pay.AmountCents > 0 {
		refundCents = pay.AmountCents - fee
		if refundCents < 0 {
			refundCents = 0
		}
	}

	return cancelPlan{
		FeeCents:    fee,
		RefundCents: refundCents,
		Reason:      strings.TrimSpace(req.Reason),
	}, nil
}

// Cancel drives the cancellation workflow: load and lock, guard the state,
// quote or apply the fee, refund before any write, then persist the
// cancellation and its outbox event atomically. A gateway failure aborts
// with the appointment still scheduled.
func (w *Workflows) Cancel(ctx context.Context, req CancelRequest) (CancelResult, error) {
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		return CancelResult{}, apperr.InvalidArgument("appointment_id is required")
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return CancelResult{}, apperr.Internal("Cancellation failed", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := w.appts.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return CancelResult{}, apperr.NotFound("appointment not found")
		}
		return CancelResult{}, apperr.Internal("Cancellation failed", err)
	}

	var pay *model.Payment
	if appt.Cancellable() {
		p, ok, err := w.pays.LatestByAppointmentForUpdate(ctx, tx, appt.ID)
		if err != nil {
			return CancelResult{}, apperr.Internal("Cancellation failed", err)
		}
		if ok {
			pay = &p
		}
	}

	plan, err := planCancellation(appt, pay, req)
	if err != nil {
		return CancelResult{}, err
	}
	if plan.RequiresConfirmation {
		// Dry run: the quote is returned and the transaction rolls back
		// with nothing written. The caller re-drives with acceptance.
		return CancelResult{
			RequiresConfirmation: true,
			CancellationFeeCents: plan.FeeCents,
			Appointment:          appt,
		}, nil
	}

	var refund *payments.Result
	refundID := ""
	if pay != nil && plan.RefundCents > 0 {
		res, err := w.refunder.Refund(ctx, payments.RefundRequest{
			ConsumerID:  appt.ServiceLocationID,
			PaymentID:   pay.TransactionID,
			AmountCents: plan.RefundCents,
			Reason:      plan.Reason,
		})
		if err != nil {
			// Refund-before-write: nothing has been mutated yet, so the
			// appointment stays scheduled when the gateway fails.
			return CancelResult{}, err
		}
		refund = &res
		refundID = res.ID

		if err := w.pays.ApplyRefund(ctx, tx, pay.TransactionID, res.ID, model.RefundStatusFromGateway(res.Status), plan.RefundCents, plan.FeeCents); err != nil {
			return CancelResult{}, apperr.Internal("Cancellation failed", err)
		}
	}

	cancelledAt, err := w.appts.MarkCancelled(ctx, tx, appt.ID, plan.Reason, plan.FeeCents, req.AcceptCancellationFee, refundID)
	if err != nil {
		return CancelResult{}, apperr.Internal("Cancellation failed", err)
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id":         appt.ID,
		"business_id":            appt.BusinessID,
		"service_location_id":    appt.ServiceLocationID,
		"cancelled_at":           cancelledAt.UTC().Format(time.RFC3339),
		"reason":                 plan.Reason,
		"cancellation_fee_cents": plan.FeeCents,
		"refund_id":              refundID,
	})
	if err != nil {
		return CancelResult{}, apperr.Internal("Cancellation failed", err)
	}
	if err := w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentCancelled,
		Payload:       payload,
	}); err != nil {
		return CancelResult{}, apperr.Internal("Cancellation failed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return CancelResult{}, apperr.Internal("Cancellation failed", err)
	}

	updated, err := w.appts.Get(ctx, appt.ID)
	if err != nil {
		// The cancellation committed; fall back to the pre-commit row
		// rather than failing the whole call on the re-read.
		w.logger.Warn("post-cancel re-read failed", "appointment_id", appt.ID, "err", err)
		updated = appt
	}

	return CancelResult{
		Success:              true,
		CancellationFeeCents: plan.FeeCents,
		Refund:               refund,
		Appointment:          updated,
	}, nil
}
