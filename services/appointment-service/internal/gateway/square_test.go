package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testSquareClient(srv *httptest.Server) *squareClient {
	return &squareClient{
		baseURL:     srv.URL,
		accessToken: "test-token",
		sandbox:     true,
		httpClient:  srv.Client(),
	}
}

func TestSquareCreatePayment(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/payments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if v := r.Header.Get("Square-Version"); v == "" {
			t.Error("Square-Version header missing")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payment": map[string]any{"id": "pay_123", "status": "COMPLETED"},
		})
	}))
	defer srv.Close()

	res, err := testSquareClient(srv).CreatePayment(context.Background(), ChargeParams{
		AmountCents:    5000,
		Currency:       "CAD",
		Nonce:          "cnon:card-nonce-ok",
		IdempotencyKey: "key-1",
		Note:           "appointment appt-1",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	if res.ID != "pay_123" || res.Status != "COMPLETED" {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotBody["idempotency_key"] != "key-1" {
		t.Fatalf("idempotency_key not forwarded: %v", gotBody["idempotency_key"])
	}
	if gotBody["source_id"] != "cnon:card-nonce-ok" {
		t.Fatalf("source_id not forwarded: %v", gotBody["source_id"])
	}
	money, _ := gotBody["amount_money"].(map[string]any)
	if money["currency"] != "CAD" || money["amount"] != float64(5000) {
		t.Fatalf("unexpected amount_money %v", money)
	}
}

func TestSquareRefundPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/refunds" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"refund": map[string]any{"id": "ref_456", "status": "PENDING"},
		})
	}))
	defer srv.Close()

	res, err := testSquareClient(srv).RefundPayment(context.Background(), RefundParams{
		PaymentID:      "pay_123",
		AmountCents:    4500,
		Currency:       "CAD",
		Reason:         "cancellation",
		IdempotencyKey: "key-2",
	})
	if err != nil {
		t.Fatalf("RefundPayment failed: %v", err)
	}
	if res.ID != "ref_456" || res.Status != "PENDING" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSquareErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{
				{"category": "PAYMENT_METHOD_ERROR", "code": "CARD_DECLINED", "detail": "card declined"},
			},
		})
	}))
	defer srv.Close()

	_, err := testSquareClient(srv).CreatePayment(context.Background(), ChargeParams{
		AmountCents: 100, Currency: "CAD", Nonce: "cnon:card-nonce-declined", IdempotencyKey: "key-3",
	})
	if err == nil {
		t.Fatal("declined card must surface an error")
	}
	if !strings.Contains(err.Error(), "CARD_DECLINED") {
		t.Fatalf("error must carry the gateway code: %v", err)
	}
}

func TestSquareStatusErrorWithoutBodyErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	_, err := testSquareClient(srv).RefundPayment(context.Background(), RefundParams{
		PaymentID: "pay_123", AmountCents: 100, Currency: "CAD", IdempotencyKey: "key-4",
	})
	if err == nil {
		t.Fatal("http error statuses must fail even with an empty error list")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("error must name the http status: %v", err)
	}
}
