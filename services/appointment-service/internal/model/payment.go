package model

import (
	"strings"
	"time"
)

const (
	RefundStatusRefunded = "refunded"
	RefundStatusFailed   = "failed"
)

// Payment keys on the gateway's transaction id, which is stable once set.
// AppointmentID always points at the current appointment; AppointmentIDs
// accumulates every appointment the payment has been linked to across
// reschedules.
type Payment struct {
	TransactionID         string
	AppointmentID         string
	AppointmentIDs        []string
	ConsumerID            string
	AmountCents           int64
	Currency              string
	Status                string
	RefundID              string
	RefundStatus          string
	RefundAmountCents     int64
	CancellationFeeCents  int64
	RescheduledFromApptID string
	RescheduledToApptID   string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// RefundStatusFromGateway folds a gateway refund status into the persisted
// refund_status value: "failed" only for an explicit gateway FAILED,
// "refunded" otherwise (COMPLETED and PENDING both count as refunded).
func RefundStatusFromGateway(status string) string {
	if strings.EqualFold(status, "FAILED") {
		return RefundStatusFailed
	}
	return RefundStatusRefunded
}
