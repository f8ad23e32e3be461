package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/r-osmani/bookpay/libs/db"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `
	id, business_id, service_location_id, status, start_time, end_time,
	cancelled_at, COALESCE(cancellation_reason, ''), COALESCE(cancellation_fee_cents, 0),
	COALESCE(fee_accepted, false), COALESCE(refund_id, ''),
	COALESCE(rescheduled_to, ''), rescheduled_at, created_at`

// GetForUpdate locks the appointment row for the remainder of the
// transaction so the read-check-write sequences in the cancellation and
// reschedule workflows serialize against each other.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// Insert writes a new appointment verbatim from caller-supplied data; the
// reschedule workflow does not merge anything from the superseded row.
func (r *AppointmentRepository) Insert(ctx context.Context, tx pgx.Tx, appt model.Appointment) error {
	status := appt.Status
	if status == "" {
		status = model.StatusScheduled
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments (id, business_id, service_location_id, status, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, appt.ID, appt.BusinessID, appt.ServiceLocationID, status, appt.StartTime, appt.EndTime)
	return err
}

func (r *AppointmentRepository) MarkCancelled(ctx context.Context, tx pgx.Tx, id, reason string, feeCents int64, feeAccepted bool, refundID string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2,
			cancellation_fee_cents = $3,
			fee_accepted = $4,
			refund_id = NULLIF($5, '')
		WHERE id = $1
		RETURNING cancelled_at
	`, id, reason, feeCents, feeAccepted, refundID).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *AppointmentRepository) MarkRescheduled(ctx context.Context, tx pgx.Tx, oldID, newID string) (time.Time, error) {
	var rescheduledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'rescheduled',
			rescheduled_to = $2,
			rescheduled_at = now()
		WHERE id = $1
		RETURNING rescheduled_at
	`, oldID, newID).Scan(&rescheduledAt)
	return rescheduledAt, err
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt, rescheduledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.BusinessID,
		&appt.ServiceLocationID,
		&appt.Status,
		&appt.StartTime,
		&appt.EndTime,
		&cancelledAt,
		&appt.CancellationReason,
		&appt.CancellationFeeCents,
		&appt.FeeAccepted,
		&appt.RefundID,
		&appt.RescheduledTo,
		&rescheduledAt,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	appt.RescheduledAt = rescheduledAt
	return appt, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
