package payments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/r-osmani/bookpay/libs/db"
)

// Ledger is the persisted idempotency-key table consulted before any
// gateway call. A key is scoped by operation ("charge" or "refund"); a
// finalized row replays the stored normalized result instead of reaching
// the gateway again. Rows expire after a TTL and are purged by the
// background worker.
type Ledger struct {
	pool *db.Pool
}

func NewLedger(pool *db.Pool) *Ledger {
	return &Ledger{pool: pool}
}

type LedgerRecord struct {
	Operation    string
	Key          string
	ResultID     string
	ResultStatus string
}

func (r LedgerRecord) Finalized() bool {
	return r.ResultID != "" && r.ResultStatus != ""
}

// Lock claims (operation, key) for the transaction. When a live row
// already exists it is returned with exists=true; the caller replays it if
// finalized, or proceeds if a prior invocation died before finalizing.
// Expired rows are reset in place and treated as new.
func (l *Ledger) Lock(ctx context.Context, tx pgx.Tx, operation, key, consumerID string, ttl time.Duration) (LedgerRecord, bool, error) {
	rec, expired, err := l.selectForUpdate(ctx, tx, operation, key)
	if err == nil {
		if !expired {
			return rec, true, nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE payment_idempotency_keys
			SET result_id = NULL,
				result_status = NULL,
				consumer_id = $3,
				expires_at = now() + $4
			WHERE operation = $1 AND idempotency_key = $2
		`, operation, key, consumerID, ttl)
		if err != nil {
			return LedgerRecord{}, false, err
		}
		return LedgerRecord{Operation: operation, Key: key}, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return LedgerRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payment_idempotency_keys (operation, idempotency_key, consumer_id, expires_at)
		VALUES ($1, $2, $3, now() + $4)
		ON CONFLICT (operation, idempotency_key) DO NOTHING
	`, operation, key, consumerID, ttl)
	if err != nil {
		return LedgerRecord{}, false, err
	}

	// The insert can lose a race: a concurrent claim of the same key
	// blocks this transaction on the conflict until the winner commits,
	// and the re-select then sees the winner's row. When that row is
	// already finalized it must be reported as existing so the caller
	// replays it instead of reaching the gateway a second time.
	rec, _, err = l.selectForUpdate(ctx, tx, operation, key)
	if err != nil {
		return LedgerRecord{}, false, err
	}
	return rec, rec.Finalized(), nil
}

func (l *Ledger) Finalize(ctx context.Context, tx pgx.Tx, operation, key, resultID, resultStatus string) error {
	_, err := tx.Exec(ctx, `
		UPDATE payment_idempotency_keys
		SET result_id = $3,
			result_status = $4
		WHERE operation = $1 AND idempotency_key = $2
	`, operation, key, resultID, resultStatus)
	return err
}

// PurgeExpired deletes expired rows in bounded batches. Returns the number
// of rows removed.
func (l *Ledger) PurgeExpired(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	tag, err := l.pool.Exec(ctx, `
		DELETE FROM payment_idempotency_keys
		WHERE (operation, idempotency_key) IN (
			SELECT operation, idempotency_key
			FROM payment_idempotency_keys
			WHERE expires_at <= now()
			LIMIT $1
		)
	`, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (l *Ledger) selectForUpdate(ctx context.Context, tx pgx.Tx, operation, key string) (LedgerRecord, bool, error) {
	var rec LedgerRecord
	var expired bool
	err := tx.QueryRow(ctx, `
		SELECT operation, idempotency_key,
			COALESCE(result_id, ''), COALESCE(result_status, ''),
			expires_at <= now()
		FROM payment_idempotency_keys
		WHERE operation = $1 AND idempotency_key = $2
		FOR UPDATE
	`, operation, key).Scan(&rec.Operation, &rec.Key, &rec.ResultID, &rec.ResultStatus, &expired)
	if err != nil {
		return LedgerRecord{}, false, err
	}
	return rec, expired, nil
}
