// Package lifecycle orchestrates the appointment cancellation and
// reschedule workflows. Each workflow runs inside one transaction with the
// appointment row locked, so concurrent invocations for the same
// appointment serialize instead of both passing the status check.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/r-osmani/bookpay/libs/db"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/outbox"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/payments"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/storage"
)

// Refunder is the slice of the payments service the cancellation workflow
// depends on.
type Refunder interface {
	Refund(ctx context.Context, req payments.RefundRequest) (payments.Result, error)
}

type Workflows struct {
	pool     *db.Pool
	appts    *storage.AppointmentRepository
	pays     *storage.PaymentRepository
	refunder Refunder
	outbox   *outbox.Repository
	logger   *slog.Logger
}

func NewWorkflows(pool *db.Pool, appts *storage.AppointmentRepository, pays *storage.PaymentRepository, refunder Refunder, outboxRepo *outbox.Repository, logger *slog.Logger) *Workflows {
	return &Workflows{
		pool:     pool,
		appts:    appts,
		pays:     pays,
		refunder: refunder,
		outbox:   outboxRepo,
		logger:   logger,
	}
}
