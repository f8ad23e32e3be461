// Package credentials resolves and decrypts per-consumer payment gateway
// credentials. A consumer is the service-location identifier that scopes
// which credential applies.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/r-osmani/bookpay/libs/db"
)

type Credential struct {
	Provider      string
	ConsumerID    string
	ApplicationID string
	AccessToken   string
}

type Store struct {
	pool   *db.Pool
	master []byte
}

// NewStore builds a credential store around the env-supplied master
// secret. The secret is required: there is no fallback key.
func NewStore(pool *db.Pool, masterKey string) (*Store, error) {
	if masterKey == "" {
		return nil, errors.New("credentials master key is empty")
	}
	return &Store{pool: pool, master: []byte(masterKey)}, nil
}

// GetByConsumer looks up the unique credential for (provider, consumer)
// and decrypts its access token. Returns (nil, nil) when no credential is
// configured; callers treat that as a fatal configuration error for the
// consumer, not a retryable condition. Every call performs a fresh lookup
// and decrypt — credentials are never cached.
func (s *Store) GetByConsumer(ctx context.Context, provider, consumerID string) (*Credential, error) {
	var applicationID string
	var ciphertext, salt []byte
	err := s.pool.QueryRow(ctx, `
		SELECT application_id, access_token_ciphertext, key_salt
		FROM payment_credentials
		WHERE provider = $1 AND consumer_id = $2
		LIMIT 1
	`, provider, consumerID).Scan(&applicationID, &ciphertext, &salt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	token := ""
	if len(ciphertext) > 0 {
		key, err := deriveKey(s.master, salt)
		if err != nil {
			return nil, fmt.Errorf("derive credential key: %w", err)
		}
		plaintext, err := openToken(key, ciphertext)
		if err != nil {
			return nil, fmt.Errorf("decrypt access token: %w", err)
		}
		token = string(plaintext)
	}

	return &Credential{
		Provider:      provider,
		ConsumerID:    consumerID,
		ApplicationID: applicationID,
		AccessToken:   token,
	}, nil
}

// Put inserts or replaces a credential, sealing the access token under a
// fresh salt. Provisioning-side helper used by tooling.
func (s *Store) Put(ctx context.Context, provider, consumerID, applicationID, accessToken string) error {
	salt, err := NewSalt()
	if err != nil {
		return err
	}
	ciphertext, err := EncryptAccessToken(s.master, salt, accessToken)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO payment_credentials (provider, consumer_id, application_id, access_token_ciphertext, key_salt)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, consumer_id) DO UPDATE
		SET application_id = EXCLUDED.application_id,
			access_token_ciphertext = EXCLUDED.access_token_ciphertext,
			key_salt = EXCLUDED.key_salt
	`, provider, consumerID, applicationID, ciphertext, salt)
	return err
}
