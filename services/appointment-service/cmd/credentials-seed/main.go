// credentials-seed provisions a payment credential row for a consumer:
// it derives a fresh row key from the master secret and stores the access
// token encrypted. Run once per service location when onboarding.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/r-osmani/bookpay/libs/db"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/credentials"
)

func main() {
	var (
		dbURL       = flag.String("database-url", getenv("DATABASE_URL", ""), "postgres connection url")
		masterKey   = flag.String("master-key", getenv("CREDENTIALS_MASTER_KEY", ""), "credential encryption master secret")
		provider    = flag.String("provider", getenv("PAYMENT_PROVIDER", "square"), "payment provider (square or stripe)")
		consumerID  = flag.String("consumer-id", getenv("CONSUMER_ID", ""), "service location id")
		appID       = flag.String("application-id", getenv("PAYMENT_APPLICATION_ID", ""), "provider application id (sandbox- prefix selects sandbox)")
		accessToken = flag.String("access-token", getenv("PAYMENT_ACCESS_TOKEN", ""), "provider access token")
	)
	flag.Parse()

	for name, v := range map[string]string{
		"DATABASE_URL":           *dbURL,
		"CREDENTIALS_MASTER_KEY": *masterKey,
		"CONSUMER_ID":            *consumerID,
		"PAYMENT_APPLICATION_ID": *appID,
		"PAYMENT_ACCESS_TOKEN":   *accessToken,
	} {
		if strings.TrimSpace(v) == "" {
			fatal(name + " is required")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, *dbURL)
	if err != nil {
		fatal(err.Error())
	}
	defer pool.Close()

	store, err := credentials.NewStore(pool, *masterKey)
	if err != nil {
		fatal(err.Error())
	}
	if err := store.Put(ctx, *provider, *consumerID, *appID, *accessToken); err != nil {
		fatal(err.Error())
	}
	fmt.Printf("credential stored provider=%s consumer_id=%s\n", *provider, *consumerID)
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
