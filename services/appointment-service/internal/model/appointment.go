package model

import "time"

const (
	StatusScheduled   = "scheduled"
	StatusCancelled   = "cancelled"
	StatusRescheduled = "rescheduled"
)

type Appointment struct {
	ID                   string
	BusinessID           string
	ServiceLocationID    string
	Status               string
	StartTime            time.Time
	EndTime              time.Time
	CancelledAt          *time.Time
	CancellationReason   string
	CancellationFeeCents int64
	FeeAccepted          bool
	RefundID             string
	RescheduledTo        string
	RescheduledAt        *time.Time
	CreatedAt            time.Time
}

// Cancellable reports whether the appointment may still transition to
// cancelled. Only scheduled appointments can; cancelled and rescheduled
// are terminal for the cancellation workflow.
func (a Appointment) Cancellable() bool {
	return a.Status == StatusScheduled
}
