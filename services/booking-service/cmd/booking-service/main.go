package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bookable-app/bookable/libs/config"
	"github.com/bookable-app/bookable/libs/db"
	"github.com/bookable-app/bookable/libs/httpx"
	"github.com/bookable-app/bookable/libs/kafkax"
	otelx "github.com/bookable-app/bookable/libs/otel"
	"github.com/bookable-app/bookable/libs/runtime"
	"github.com/bookable-app/bookable/services/booking-service/internal/booking"
	"github.com/bookable-app/bookable/services/booking-service/internal/consumer"
	"github.com/bookable-app/bookable/services/booking-service/internal/handlers"
	"github.com/bookable-app/bookable/services/booking-service/internal/inbox"
	"github.com/bookable-app/bookable/services/booking-service/internal/outbox"
	"github.com/bookable-app/bookable/services/booking-service/internal/reminder"
	"github.com/bookable-app/bookable/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8080")
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
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	tenantRepo := storage.NewTenantRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	reminderRepo := reminder.NewRepository()
	apptRepo := storage.NewAppointmentRepository(pool, outboxRepo, reminderRepo, tenantRepo)

	reminderBefore := config.Duration("REMINDER_BEFORE", 24*time.Hour)
	bookingSvc := booking.New(apptRepo, logger, reminderBefore)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	reminderWorker := reminder.NewWorker(pool, reminderRepo, outboxRepo, logger, reminder.WorkerConfig{})
	go reminderWorker.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	if brokers != "" {
		receipts := consumer.New(logger, inboxRepo, apptRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
		})
		go receipts.Run(ctx)
	}

	publicHandler := handlers.NewPublicHandler(bookingSvc, logger)
	authHandler := handlers.NewAuthHandler(tenantRepo, logger, jwtSecret, config.Duration("ADMIN_TOKEN_TTL", 12*time.Hour))
	adminHandler := handlers.NewAdminHandler(bookingSvc, apptRepo, tenantRepo, logger)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)

	// Public booking rate limit: Redis-backed when REDIS_URL is set so
	// replicas share a budget, otherwise a per-process window.
	publicLimit := config.Int("PUBLIC_RATE_LIMIT", 30)
	var limit httpx.Middleware
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("bad REDIS_URL, falling back to in-memory rate limit", "err", err)
			limit = httpx.NewRateLimiter(publicLimit, time.Minute).Middleware()
		} else {
			rdb := redis.NewClient(opts)
			defer rdb.Close()
			limit = httpx.NewRedisRateLimiter(rdb, publicLimit, time.Minute, "rl:public").Middleware(logger, true)
		}
	} else {
		limit = httpx.NewRateLimiter(publicLimit, time.Minute).Middleware()
	}

	public := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, limit, httpx.WithBodyLimit(1<<20))
	}
	mux.Handle("/api/v1/public/slots", public(publicHandler.Slots))
	mux.Handle("/api/v1/public/book", public(publicHandler.Book))
	mux.Handle("/api/v1/public/cancel", public(publicHandler.Cancel))

	mux.HandleFunc("/api/v1/admin/login", authHandler.Login)
	mux.HandleFunc("/api/v1/appointments", authHandler.RequireAdmin(adminHandler.ListAppointments))
	mux.HandleFunc("PATCH /api/v1/appointments/{id}/status", authHandler.RequireAdmin(adminHandler.UpdateStatus))
	mux.HandleFunc("/api/v1/appointments/export", authHandler.RequireAdmin(adminHandler.Export))
	mux.HandleFunc("/api/v1/admin/tenant", authHandler.RequireAdmin(adminHandler.Tenant))
	mux.HandleFunc("/api/v1/admin/services", authHandler.RequireAdmin(adminHandler.Services))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 30*time.Second)),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitCSV(config.String("CORS_ALLOWED_ORIGINS", "*")),
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
