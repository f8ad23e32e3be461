package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/r-osmani/bookpay/libs/db"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/model"
)

type PaymentRepository struct {
	pool *db.Pool
}

func NewPaymentRepository(pool *db.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const paymentColumns = `
	transaction_id, COALESCE(appointment_id, ''), COALESCE(appointment_ids, '{}'),
	consumer_id, amount_cents, currency, status,
	COALESCE(refund_id, ''), COALESCE(refund_status, ''), COALESCE(refund_amount_cents, 0),
	COALESCE(cancellation_fee_cents, 0),
	COALESCE(rescheduled_from_appt_id, ''), COALESCE(rescheduled_to_appt_id, ''),
	created_at, updated_at`

// LatestByAppointmentForUpdate returns the newest payment linked to the
// appointment, locked for the transaction. At most one payment is expected
// per appointment; when more exist only the newest is refunded.
func (r *PaymentRepository) LatestByAppointmentForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Payment, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE appointment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, appointmentID)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Payment{}, false, nil
	}
	if err != nil {
		return model.Payment{}, false, err
	}
	return p, true, nil
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, transactionID string) (model.Payment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE transaction_id = $1
		FOR UPDATE
	`, transactionID)
	return scanPayment(row)
}

func (r *PaymentRepository) Get(ctx context.Context, transactionID string) (model.Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE transaction_id = $1
	`, transactionID)
	return scanPayment(row)
}

func (r *PaymentRepository) Insert(ctx context.Context, tx pgx.Tx, p model.Payment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (transaction_id, appointment_id, appointment_ids, consumer_id, amount_cents, currency, status)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
	`, p.TransactionID, p.AppointmentID, appointmentHistory(p), p.ConsumerID, p.AmountCents, p.Currency, p.Status)
	return err
}

func appointmentHistory(p model.Payment) []string {
	if len(p.AppointmentIDs) > 0 {
		return p.AppointmentIDs
	}
	if p.AppointmentID != "" {
		return []string{p.AppointmentID}
	}
	return []string{}
}

// ApplyRefund folds a gateway refund result into the payment row. The
// transaction id never changes; only refund metadata does.
func (r *PaymentRepository) ApplyRefund(ctx context.Context, tx pgx.Tx, transactionID, refundID, refundStatus string, refundAmountCents, feeCents int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET refund_id = $2,
			refund_status = $3,
			refund_amount_cents = $4,
			cancellation_fee_cents = $5,
			updated_at = now()
		WHERE transaction_id = $1
	`, transactionID, refundID, refundStatus, refundAmountCents, feeCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RelinkAppointment moves every payment still pointing at the old
// appointment over to its successor in one statement: the current pointer
// follows the new id, the history array appends it, and the audit pair
// records the hop. Returns the number of payments relinked.
func (r *PaymentRepository) RelinkAppointment(ctx context.Context, tx pgx.Tx, oldID, newID string) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET appointment_id = $2,
			appointment_ids = array_append(COALESCE(appointment_ids, '{}'), $2),
			rescheduled_from_appt_id = $1,
			rescheduled_to_appt_id = $2,
			updated_at = now()
		WHERE appointment_id = $1
	`, oldID, newID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanPayment(row pgx.Row) (model.Payment, error) {
	var p model.Payment
	var createdAt, updatedAt time.Time
	err := row.Scan(
		&p.TransactionID,
		&p.AppointmentID,
		&p.AppointmentIDs,
		&p.ConsumerID,
		&p.AmountCents,
		&p.Currency,
		&p.Status,
		&p.RefundID,
		&p.RefundStatus,
		&p.RefundAmountCents,
		&p.CancellationFeeCents,
		&p.RescheduledFromApptID,
		&p.RescheduledToApptID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Payment{}, err
	}
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	return p, nil
}
