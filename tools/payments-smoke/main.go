// payments-smoke exercises the charge and refund callables of a running
// appointment-service: it mints a short-lived HS256 token, issues a charge
// with a caller-supplied idempotency key, replays it, and optionally
// refunds part of it. Intended for sandbox credentials only.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/r-osmani/bookpay/libs/auth"
)

func main() {
	var (
		baseURL    = flag.String("base-url", getenv("BASE_URL", "http://localhost:8086"), "appointment-service base url")
		consumerID = flag.String("consumer-id", getenv("CONSUMER_ID", ""), "service location id")
		nonce      = flag.String("nonce", getenv("PAYMENT_NONCE", "cnon:card-nonce-ok"), "payment source nonce")
		amount     = flag.Int64("amount-cents", 5000, "charge amount in cents")
		refund     = flag.Int64("refund-cents", 0, "refund amount in cents (0 skips the refund)")
		jwtSecret  = flag.String("jwt-secret", getenv("JWT_SECRET", ""), "HS256 signing secret")
	)
	flag.Parse()

	if strings.TrimSpace(*consumerID) == "" {
		fatal("CONSUMER_ID is required")
	}
	if strings.TrimSpace(*jwtSecret) == "" {
		fatal("JWT_SECRET is required")
	}

	now := time.Now().UTC()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  "payments-smoke",
		Role: "admin",
		Iat:  now.Unix(),
		Exp:  now.Add(5 * time.Minute).Unix(),
	}, *jwtSecret)
	if err != nil {
		fatal(err.Error())
	}

	key := uuid.NewString()
	charge := map[string]any{
		"consumer_id":     *consumerID,
		"amount_cents":    *amount,
		"nonce":           *nonce,
		"idempotency_key": key,
	}

	first, err := post(*baseURL, "/api/v1/payments/charge", token, charge)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("charge: %s\n", first)

	// Same key again: the service must replay the ledger result, not
	// charge a second time.
	replay, err := post(*baseURL, "/api/v1/payments/charge", token, charge)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("replay: %s\n", replay)
	if first != replay {
		fatal("idempotent replay returned a different result")
	}

	if *refund > 0 {
		var res struct {
			PaymentID string `json:"payment_id"`
		}
		if err := json.Unmarshal([]byte(first), &res); err != nil || res.PaymentID == "" {
			fatal("charge response has no payment_id")
		}
		out, err := post(*baseURL, "/api/v1/payments/refund", token, map[string]any{
			"consumer_id":  *consumerID,
			"payment_id":   res.PaymentID,
			"amount_cents": *refund,
			"reason":       "smoke test",
		})
		if err != nil {
			fatal(err.Error())
		}
		fmt.Printf("refund: %s\n", out)
	}
}

func post(baseURL, path, token string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(baseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%s: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return strings.TrimSpace(string(raw)), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
