package payments

import (
	"context"
	"log/slog"
	"time"
)

// PurgeWorker deletes expired idempotency ledger rows on an interval.
type PurgeWorker struct {
	ledger    *Ledger
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type PurgeConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewPurgeWorker(ledger *Ledger, logger *slog.Logger, cfg PurgeConfig) *PurgeWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &PurgeWorker{
		ledger:    ledger,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (w *PurgeWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.ledger.PurgeExpired(ctx, w.batchSize)
			if err != nil {
				w.logger.Error("idempotency ledger purge failed", "err", err)
				continue
			}
			if n > 0 {
				w.logger.Info("idempotency ledger purged", "rows", n)
			}
		}
	}
}
