package gateway

import (
	"context"
	"sync"

	"github.com/sony/gobreaker/v2"
)

// Breakers live in a package-level registry keyed by provider so their
// failure counts survive across Build calls: clients are rebuilt per
// request, and a per-client breaker would never see more than one failure.
var (
	breakersMu sync.Mutex
	breakers   = map[string]*gobreaker.CircuitBreaker[Result]{}
)

func breakerFor(name string) *gobreaker.CircuitBreaker[Result] {
	breakersMu.Lock()
	defer breakersMu.Unlock()
	cb, ok := breakers[name]
	if !ok {
		cb = gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
		breakers[name] = cb
	}
	return cb
}

// breakerClient guards a provider client with the provider's shared
// circuit breaker. A tripped breaker fails fast instead of queueing calls
// against a gateway that is already timing out; there is still no
// in-request retry.
type breakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker[Result]
}

func withBreaker(name string, inner Client) Client {
	return &breakerClient{inner: inner, cb: breakerFor(name)}
}

func (b *breakerClient) CreatePayment(ctx context.Context, p ChargeParams) (Result, error) {
	return b.cb.Execute(func() (Result, error) {
		return b.inner.CreatePayment(ctx, p)
	})
}

func (b *breakerClient) RefundPayment(ctx context.Context, p RefundParams) (Result, error) {
	return b.cb.Execute(func() (Result, error) {
		return b.inner.RefundPayment(ctx, p)
	})
}

func (b *breakerClient) Sandbox() bool {
	return b.inner.Sandbox()
}
