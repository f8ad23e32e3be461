package model

import "testing"

func TestRefundStatusFromGateway(t *testing.T) {
	cases := []struct {
		gateway string
		want    string
	}{
		{"COMPLETED", RefundStatusRefunded},
		{"PENDING", RefundStatusRefunded},
		{"FAILED", RefundStatusFailed},
		{"failed", RefundStatusFailed},
		{"", RefundStatusRefunded},
	}
	for _, c := range cases {
		if got := RefundStatusFromGateway(c.gateway); got != c.want {
			t.Fatalf("RefundStatusFromGateway(%q) = %q, want %q", c.gateway, got, c.want)
		}
	}
}

func TestCancellable(t *testing.T) {
	if !(Appointment{Status: StatusScheduled}).Cancellable() {
		t.Fatal("scheduled appointments must be cancellable")
	}
	if (Appointment{Status: StatusCancelled}).Cancellable() {
		t.Fatal("cancelled appointments must not be cancellable")
	}
	if (Appointment{Status: StatusRescheduled}).Cancellable() {
		t.Fatal("rescheduled appointments must not be cancellable")
	}
}
