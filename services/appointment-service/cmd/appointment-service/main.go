package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/r-osmani/bookpay/libs/auth"
	"github.com/r-osmani/bookpay/libs/config"
	"github.com/r-osmani/bookpay/libs/db"
	"github.com/r-osmani/bookpay/libs/httpx"
	"github.com/r-osmani/bookpay/libs/kafkax"
	otelx "github.com/r-osmani/bookpay/libs/otel"
	"github.com/r-osmani/bookpay/libs/runtime"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/credentials"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/gateway"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/handlers"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/lifecycle"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/outbox"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/payments"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "appointment-service")
	port, err := config.Port("PORT", "8086")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.OpenWithOptions(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	masterKey, err := config.RequiredString("CREDENTIALS_MASTER_KEY")
	if err != nil {
		panic(err)
	}
	credStore, err := credentials.NewStore(pool, masterKey)
	if err != nil {
		panic(err)
	}

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	var jwksClient *auth.JWKSClient
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, config.Duration("JWKS_TTL", 10*time.Minute))
	}

	apptRepo := storage.NewAppointmentRepository(pool)
	payRepo := storage.NewPaymentRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	ledger := payments.NewLedger(pool)

	paymentSvc := payments.NewService(pool, credStore, gateway.Build, ledger, payRepo, logger, payments.Config{
		DefaultProvider: config.String("PAYMENT_PROVIDER", gateway.ProviderSquare),
		LedgerTTL:       config.Duration("IDEMPOTENCY_TTL", 24*time.Hour),
	})
	workflows := lifecycle.NewWorkflows(pool, apptRepo, payRepo, paymentSvc, outboxRepo, logger)

	purgeWorker := payments.NewPurgeWorker(ledger, logger, payments.PurgeConfig{
		Interval: config.Duration("IDEMPOTENCY_PURGE_INTERVAL", 10*time.Minute),
	})
	go purgeWorker.Run(ctx)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	rateLimit := config.Int("PAYMENT_RATE_LIMIT", 30)
	rateWindow := config.Duration("PAYMENT_RATE_WINDOW", time.Minute)
	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	var limited httpx.Middleware
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer func() { _ = rdb.Close() }()
		limited = httpx.NewRedisRateLimiter(rdb, rateLimit, rateWindow, "rl:payments").Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	} else {
		// Without redis the limit is per replica, not fleet-wide.
		limited = httpx.NewRateLimiter(rateLimit, rateWindow).Middleware()
	}

	apptHandler := handlers.NewAppointmentHandler(workflows, logger)
	payHandler := handlers.NewPaymentHandler(paymentSvc, workflows, logger)

	requireAuth := handlers.RequireAuth(jwtSecret, jwksClient)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/api/v1/appointments/cancel", requireAuth(http.HandlerFunc(apptHandler.Cancel)))
	mux.Handle("/api/v1/appointments/reschedule", requireAuth(http.HandlerFunc(apptHandler.Reschedule)))
	mux.Handle("/api/v1/payments/charge", requireAuth(limited(http.HandlerFunc(payHandler.Charge))))
	mux.Handle("/api/v1/payments/refund", requireAuth(limited(http.HandlerFunc(payHandler.Refund))))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointment")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
