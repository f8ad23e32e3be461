package gateway

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// stripeClient charges through PaymentIntents and refunds through the
// Refunds API, bound to the credential's secret key rather than the
// package-global one so concurrent consumers never share state.
type stripeClient struct {
	api     *client.API
	sandbox bool
}

func newStripeClient(accessToken string, sandbox bool) *stripeClient {
	return &stripeClient{
		api:     client.New(accessToken, nil),
		sandbox: sandbox,
	}
}

func (c *stripeClient) Sandbox() bool {
	return c.sandbox
}

func (c *stripeClient) CreatePayment(ctx context.Context, p ChargeParams) (Result, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.AmountCents),
		Currency:      stripe.String(strings.ToLower(p.Currency)),
		PaymentMethod: stripe.String(p.Nonce),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}
	if p.Note != "" {
		params.Description = stripe.String(p.Note)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return Result{}, err
	}
	return Result{ID: pi.ID, Status: strings.ToUpper(string(pi.Status))}, nil
}

func (c *stripeClient) RefundPayment(ctx context.Context, p RefundParams) (Result, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(p.PaymentID),
		Amount:        stripe.Int64(p.AmountCents),
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}
	if p.Reason != "" {
		params.AddMetadata("reason", p.Reason)
	}

	ref, err := c.api.Refunds.New(params)
	if err != nil {
		return Result{}, err
	}
	return Result{ID: ref.ID, Status: strings.ToUpper(string(ref.Status))}, nil
}
