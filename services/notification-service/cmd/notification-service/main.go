package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bookable-app/bookable/libs/config"
	"github.com/bookable-app/bookable/libs/db"
	"github.com/bookable-app/bookable/libs/httpx"
	"github.com/bookable-app/bookable/libs/kafkax"
	otelx "github.com/bookable-app/bookable/libs/otel"
	"github.com/bookable-app/bookable/libs/runtime"
	"github.com/bookable-app/bookable/services/notification-service/internal/consumer"
	"github.com/bookable-app/bookable/services/notification-service/internal/email"
	"github.com/bookable-app/bookable/services/notification-service/internal/inbox"
	"github.com/bookable-app/bookable/services/notification-service/internal/notify"
	"github.com/bookable-app/bookable/services/notification-service/internal/outbox"
	"github.com/bookable-app/bookable/services/notification-service/internal/storage"
)

const (
	topicBooked      = "booking.appointment.booked.v1"
	topicCancelled   = "booking.appointment.cancelled.v1"
	topicReminderDue = "booking.reminder.due.v1"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8081")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	brokers, err := config.RequiredString("KAFKA_BROKERS")
	if err != nil {
		logger.Error("kafka brokers not configured", "err", err)
		panic(err)
	}
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@bookable.local"),
	)
	processor := notify.NewProcessor(pool, notificationsRepo, outboxRepo, sender, logger,
		config.String("APP_URL", ""))

	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  []string{topicBooked, topicCancelled, topicReminderDue},
	}, func(ctx context.Context, msg kafka.Message) error {
		switch msg.Topic {
		case topicBooked, topicCancelled:
			var evt notify.AppointmentEvent
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				logger.Error("invalid appointment event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if evt.AppointmentID == "" || evt.CustomerEmail == "" {
				logger.Error("missing appointment event fields", "topic", msg.Topic)
				return nil
			}
			if msg.Topic == topicCancelled {
				return processor.HandleCancelled(ctx, evt)
			}
			return processor.HandleBooked(ctx, evt)

		case topicReminderDue:
			var evt notify.ReminderEvent
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				logger.Error("invalid reminder payload", "err", err)
				return nil
			}
			if evt.AppointmentID == "" || evt.Recipient == "" {
				logger.Error("missing reminder fields")
				return nil
			}
			return processor.HandleReminder(ctx, evt)
		}
		return nil
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
