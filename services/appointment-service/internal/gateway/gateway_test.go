package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
)

func TestIsSandbox(t *testing.T) {
	if !IsSandbox("sandbox-sq0idb-app") {
		t.Fatal("sandbox- prefix must select sandbox")
	}
	if IsSandbox("sq0idp-app") {
		t.Fatal("unprefixed application id must select production")
	}
}

func TestCurrencyFor(t *testing.T) {
	if got := CurrencyFor(true); got != "CAD" {
		t.Fatalf("sandbox currency = %s, want CAD", got)
	}
	if got := CurrencyFor(false); got != "USD" {
		t.Fatalf("production currency = %s, want USD", got)
	}
}

func TestBuildUnknownProvider(t *testing.T) {
	if _, err := Build("paypal", "app", "token"); err == nil {
		t.Fatal("unknown provider must be rejected")
	}
}

func TestBuildKnownProviders(t *testing.T) {
	for _, provider := range []string{ProviderSquare, ProviderStripe} {
		client, err := Build(provider, "sandbox-app", "token")
		if err != nil {
			t.Fatalf("Build(%s) failed: %v", provider, err)
		}
		if !client.Sandbox() {
			t.Fatalf("Build(%s) must propagate the sandbox flag", provider)
		}
	}
}

type failingClient struct {
	calls int
}

func (f *failingClient) CreatePayment(context.Context, ChargeParams) (Result, error) {
	f.calls++
	return Result{}, errors.New("gateway timeout")
}

func (f *failingClient) RefundPayment(context.Context, RefundParams) (Result, error) {
	f.calls++
	return Result{}, errors.New("gateway timeout")
}

func (f *failingClient) Sandbox() bool { return true }

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	inner := &failingClient{}
	client := withBreaker("trip-shared", inner)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := client.CreatePayment(ctx, ChargeParams{}); err == nil {
			t.Fatal("expected failure")
		}
	}
	if inner.calls != 5 {
		t.Fatalf("expected 5 calls before tripping, got %d", inner.calls)
	}

	_, err := client.RefundPayment(ctx, RefundParams{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if inner.calls != 5 {
		t.Fatalf("open breaker must not reach the gateway, calls %d", inner.calls)
	}
}

func TestBreakerStateSurvivesRebuiltClients(t *testing.T) {
	// Clients are built per request; the failure count must accumulate in
	// the shared breaker, not in any one wrapper.
	ctx := context.Background()
	inner := &failingClient{}
	for i := 0; i < 5; i++ {
		client := withBreaker("trip-rebuilt", inner)
		if _, err := client.CreatePayment(ctx, ChargeParams{}); err == nil {
			t.Fatal("expected failure")
		}
	}
	if inner.calls != 5 {
		t.Fatalf("expected 5 calls before tripping, got %d", inner.calls)
	}

	client := withBreaker("trip-rebuilt", &failingClient{})
	_, err := client.CreatePayment(ctx, ChargeParams{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("rebuilt client must see the open breaker, got %v", err)
	}
}
