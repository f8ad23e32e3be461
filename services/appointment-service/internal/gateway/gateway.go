// Package gateway abstracts the external payment processors behind a
// small client interface. A client is a pure function of the credential it
// was built from; nothing here touches storage.
package gateway

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderSquare = "square"
	ProviderStripe = "stripe"

	// SandboxPrefix on an application id selects the provider's sandbox
	// environment.
	SandboxPrefix = "sandbox-"
)

// Result is the normalized outcome of a charge or refund. Raw provider
// responses are never returned to callers.
type Result struct {
	ID     string
	Status string
}

type ChargeParams struct {
	AmountCents    int64
	Currency       string
	Nonce          string
	IdempotencyKey string
	Note           string
}

type RefundParams struct {
	PaymentID      string
	AmountCents    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

type Client interface {
	CreatePayment(ctx context.Context, p ChargeParams) (Result, error)
	RefundPayment(ctx context.Context, p RefundParams) (Result, error)
	Sandbox() bool
}

// Builder constructs a client from resolved credentials. The payments
// service takes one as a dependency so tests can substitute fakes.
type Builder func(provider, applicationID, accessToken string) (Client, error)

// Build selects the provider implementation and environment. Sandbox vs
// production follows the application id prefix convention for every
// provider. An unknown provider is a deployment error, not a runtime
// condition to recover from.
func Build(provider, applicationID, accessToken string) (Client, error) {
	sandbox := IsSandbox(applicationID)
	switch provider {
	case ProviderSquare:
		return withBreaker(provider, newSquareClient(applicationID, accessToken, sandbox)), nil
	case ProviderStripe:
		return withBreaker(provider, newStripeClient(accessToken, sandbox)), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", provider)
	}
}

func IsSandbox(applicationID string) bool {
	return strings.HasPrefix(applicationID, SandboxPrefix)
}

// CurrencyFor resolves the charge/refund currency from the environment the
// client was built for. One rule for every call site: CAD in sandbox, USD
// in production.
func CurrencyFor(sandbox bool) string {
	if sandbox {
		return "CAD"
	}
	return "USD"
}
