// Package payments charges and refunds against the external gateway and
// normalizes the outcome. It owns credential resolution and the
// idempotency ledger; folding refund results into appointment or payment
// rows is the caller's responsibility.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/r-osmani/bookpay/libs/db"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/apperr"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/credentials"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/gateway"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/model"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/storage"
)

const (
	opCharge = "charge"
	opRefund = "refund"

	defaultLedgerTTL = 24 * time.Hour
)

// CredentialSource is what the service needs from the credential store.
type CredentialSource interface {
	GetByConsumer(ctx context.Context, provider, consumerID string) (*credentials.Credential, error)
}

type Result struct {
	ID     string
	Status string
}

type ChargeRequest struct {
	ConsumerID     string
	AppointmentID  string
	AmountCents    int64
	Nonce          string
	Provider       string
	IdempotencyKey string
}

type RefundRequest struct {
	ConsumerID     string
	PaymentID      string
	AmountCents    int64
	Reason         string
	Provider       string
	IdempotencyKey string
}

type Service struct {
	pool            *db.Pool
	creds           CredentialSource
	build           gateway.Builder
	ledger          *Ledger
	payRepo         *storage.PaymentRepository
	logger          *slog.Logger
	defaultProvider string
	ledgerTTL       time.Duration
}

type Config struct {
	DefaultProvider string
	LedgerTTL       time.Duration
}

func NewService(pool *db.Pool, creds CredentialSource, build gateway.Builder, ledger *Ledger, payRepo *storage.PaymentRepository, logger *slog.Logger, cfg Config) *Service {
	provider := strings.TrimSpace(cfg.DefaultProvider)
	if provider == "" {
		provider = gateway.ProviderSquare
	}
	ttl := cfg.LedgerTTL
	if ttl <= 0 {
		ttl = defaultLedgerTTL
	}
	return &Service{
		pool:            pool,
		creds:           creds,
		build:           build,
		ledger:          ledger,
		payRepo:         payRepo,
		logger:          logger,
		defaultProvider: provider,
		ledgerTTL:       ttl,
	}
}

// Charge submits a payment for the consumer's gateway account and records
// the payment row in the same transaction as the idempotency ledger entry.
func (s *Service) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	req.ConsumerID = strings.TrimSpace(req.ConsumerID)
	req.Nonce = strings.TrimSpace(req.Nonce)
	if req.ConsumerID == "" {
		return Result{}, apperr.InvalidArgument("consumer_id is required")
	}
	if req.Nonce == "" {
		return Result{}, apperr.InvalidArgument("nonce is required")
	}
	if req.AmountCents <= 0 {
		return Result{}, apperr.InvalidArgument("amount_cents must be positive")
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Result{}, apperr.Internal("Charge failed", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, exists, err := s.ledger.Lock(ctx, tx, opCharge, key, req.ConsumerID, s.ledgerTTL)
	if err != nil {
		return Result{}, apperr.Internal("Charge failed", err)
	}
	if exists && rec.Finalized() {
		if err := tx.Commit(ctx); err != nil {
			return Result{}, apperr.Internal("Charge failed", err)
		}
		s.logger.Info("charge replayed from idempotency ledger", "idempotency_key", key, "payment_id", rec.ResultID)
		return Result{ID: rec.ResultID, Status: rec.ResultStatus}, nil
	}

	client, err := s.clientFor(ctx, req.Provider, req.ConsumerID)
	if err != nil {
		return Result{}, err
	}

	res, err := client.CreatePayment(ctx, gateway.ChargeParams{
		AmountCents:    req.AmountCents,
		Currency:       gateway.CurrencyFor(client.Sandbox()),
		Nonce:          req.Nonce,
		IdempotencyKey: key,
		Note:           chargeNote(req.AppointmentID),
	})
	if err != nil {
		return Result{}, apperr.Internal("Charge failed", err)
	}
	if err := requireResult(res); err != nil {
		return Result{}, err
	}

	if err := s.payRepo.Insert(ctx, tx, model.Payment{
		TransactionID: res.ID,
		AppointmentID: req.AppointmentID,
		ConsumerID:    req.ConsumerID,
		AmountCents:   req.AmountCents,
		Currency:      gateway.CurrencyFor(client.Sandbox()),
		Status:        res.Status,
	}); err != nil {
		return Result{}, apperr.Internal("Charge failed", err)
	}

	if err := s.ledger.Finalize(ctx, tx, opCharge, key, res.ID, res.Status); err != nil {
		return Result{}, apperr.Internal("Charge failed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, apperr.Internal("Charge failed", err)
	}
	return Result{ID: res.ID, Status: res.Status}, nil
}

// Refund issues a gateway refund. It does not update any payment or
// appointment row; the workflow that requested the refund folds the result
// into its own transaction.
func (s *Service) Refund(ctx context.Context, req RefundRequest) (Result, error) {
	req.ConsumerID = strings.TrimSpace(req.ConsumerID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.ConsumerID == "" {
		return Result{}, apperr.InvalidArgument("consumer_id is required")
	}
	if req.PaymentID == "" {
		return Result{}, apperr.InvalidArgument("payment_id is required")
	}
	if req.AmountCents <= 0 {
		return Result{}, apperr.InvalidArgument("amount_cents must be positive")
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = refundKey(req.PaymentID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Result{}, apperr.Internal("Refund failed", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, exists, err := s.ledger.Lock(ctx, tx, opRefund, key, req.ConsumerID, s.ledgerTTL)
	if err != nil {
		return Result{}, apperr.Internal("Refund failed", err)
	}
	if exists && rec.Finalized() {
		if err := tx.Commit(ctx); err != nil {
			return Result{}, apperr.Internal("Refund failed", err)
		}
		s.logger.Info("refund replayed from idempotency ledger", "idempotency_key", key, "refund_id", rec.ResultID)
		return Result{ID: rec.ResultID, Status: rec.ResultStatus}, nil
	}

	client, err := s.clientFor(ctx, req.Provider, req.ConsumerID)
	if err != nil {
		return Result{}, err
	}

	res, err := client.RefundPayment(ctx, gateway.RefundParams{
		PaymentID:      req.PaymentID,
		AmountCents:    req.AmountCents,
		Currency:       gateway.CurrencyFor(client.Sandbox()),
		Reason:         strings.TrimSpace(req.Reason),
		IdempotencyKey: key,
	})
	if err != nil {
		return Result{}, apperr.Internal("Refund failed", err)
	}
	if err := requireResult(res); err != nil {
		return Result{}, err
	}

	if err := s.ledger.Finalize(ctx, tx, opRefund, key, res.ID, res.Status); err != nil {
		return Result{}, apperr.Internal("Refund failed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, apperr.Internal("Refund failed", err)
	}
	return Result{ID: res.ID, Status: res.Status}, nil
}

func (s *Service) clientFor(ctx context.Context, provider, consumerID string) (gateway.Client, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		provider = s.defaultProvider
	}

	cred, err := s.creds.GetByConsumer(ctx, provider, consumerID)
	if err != nil {
		return nil, apperr.Internal("credential lookup failed", err)
	}
	if cred == nil {
		return nil, apperr.Internal("no payment credentials configured for consumer", nil)
	}
	if cred.ApplicationID == "" || cred.AccessToken == "" {
		return nil, apperr.Internal("misconfigured payment credentials for consumer", nil)
	}

	client, err := s.build(provider, cred.ApplicationID, cred.AccessToken)
	if err != nil {
		return nil, apperr.Internal("payment gateway unavailable", err)
	}
	return client, nil
}

// requireResult enforces the gateway contract: a response without both an
// id and a status is treated as a failure, never partially trusted.
func requireResult(res gateway.Result) error {
	if res.ID == "" || res.Status == "" {
		return apperr.Internal("gateway returned no payment or status", nil)
	}
	return nil
}

func chargeNote(appointmentID string) string {
	if appointmentID == "" {
		return ""
	}
	return "appointment " + appointmentID
}

func refundKey(paymentID string) string {
	return fmt.Sprintf("refund-%s-%d", paymentID, time.Now().Unix())
}
