package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	squareProductionURL = "https://connect.squareup.com"
	squareSandboxURL    = "https://connect.squareupsandbox.com"
	squareAPIVersion    = "2024-01-18"
)

// squareClient speaks the Square Connect v2 REST API directly. Payments
// and refunds are each a single blocking round trip; there is no retry
// loop beyond the circuit breaker wrapper.
type squareClient struct {
	baseURL     string
	accessToken string
	sandbox     bool
	httpClient  *http.Client
}

func newSquareClient(applicationID, accessToken string, sandbox bool) *squareClient {
	baseURL := squareProductionURL
	if sandbox {
		baseURL = squareSandboxURL
	}
	_ = applicationID // environment already resolved from its prefix
	return &squareClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		sandbox:     sandbox,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *squareClient) Sandbox() bool {
	return c.sandbox
}

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squareError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type squarePaymentResponse struct {
	Payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
	Refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"refund"`
	Errors []squareError `json:"errors"`
}

func (c *squareClient) CreatePayment(ctx context.Context, p ChargeParams) (Result, error) {
	body := map[string]any{
		"idempotency_key": p.IdempotencyKey,
		"source_id":       p.Nonce,
		"amount_money":    squareMoney{Amount: p.AmountCents, Currency: p.Currency},
	}
	if p.Note != "" {
		body["note"] = p.Note
	}
	resp, err := c.post(ctx, "/v2/payments", body)
	if err != nil {
		return Result{}, err
	}
	return Result{ID: resp.Payment.ID, Status: resp.Payment.Status}, nil
}

func (c *squareClient) RefundPayment(ctx context.Context, p RefundParams) (Result, error) {
	body := map[string]any{
		"idempotency_key": p.IdempotencyKey,
		"payment_id":      p.PaymentID,
		"amount_money":    squareMoney{Amount: p.AmountCents, Currency: p.Currency},
	}
	if p.Reason != "" {
		body["reason"] = p.Reason
	}
	resp, err := c.post(ctx, "/v2/refunds", body)
	if err != nil {
		return Result{}, err
	}
	return Result{ID: resp.Refund.ID, Status: resp.Refund.Status}, nil
}

func (c *squareClient) post(ctx context.Context, path string, body any) (*squarePaymentResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Square-Version", squareAPIVersion)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("square request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("square response read failed: %w", err)
	}

	var resp squarePaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("square response decode failed: %w", err)
	}
	if httpResp.StatusCode >= 400 || len(resp.Errors) > 0 {
		return nil, fmt.Errorf("square error: %s", squareErrorDetail(resp.Errors, httpResp.StatusCode))
	}
	return &resp, nil
}

func squareErrorDetail(errs []squareError, statusCode int) string {
	if len(errs) == 0 {
		return fmt.Sprintf("http status %d", statusCode)
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Detail != "" {
			parts = append(parts, e.Code+": "+e.Detail)
		} else {
			parts = append(parts, e.Code)
		}
	}
	return strings.Join(parts, "; ")
}
