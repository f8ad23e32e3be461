package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NotFound("appointment not found")); got != CodeNotFound {
		t.Fatalf("expected not-found, got %s", got)
	}
	if got := CodeOf(errors.New("raw")); got != CodeInternal {
		t.Fatalf("plain errors must map to internal, got %s", got)
	}

	wrapped := fmt.Errorf("handler: %w", FailedPrecondition("appointment is not in a cancellable state"))
	if got := CodeOf(wrapped); got != CodeFailedPrecondition {
		t.Fatalf("expected failed-precondition through wrapping, got %s", got)
	}
}

func TestMessageOf(t *testing.T) {
	if got := MessageOf(InvalidArgument("appointment_id is required"), "fallback"); got != "appointment_id is required" {
		t.Fatalf("unexpected message: %s", got)
	}
	if got := MessageOf(errors.New("pgx: connection refused"), "Cancellation failed"); got != "Cancellation failed" {
		t.Fatalf("uncoded errors must use the fallback, got %s", got)
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("tx aborted")
	err := Internal("Cancellation failed", cause)
	if err.Error() != "Cancellation failed" {
		t.Fatalf("message must not include the cause: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause must survive Unwrap")
	}
}
