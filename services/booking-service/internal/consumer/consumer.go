// Package consumer drains notification delivery receipts back into the
// booking database so appointment rows reflect which emails actually
// went out.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bookable-app/bookable/libs/kafkax"
	"github.com/bookable-app/bookable/services/booking-service/internal/inbox"
	"github.com/bookable-app/bookable/services/booking-service/internal/storage"
)

const (
	TopicNotificationSent   = "notification.sent.v1"
	TopicNotificationFailed = "notification.failed.v1"
)

type receiptPayload struct {
	AppointmentID string `json:"appointment_id"`
	Kind          string `json:"kind"`
	Error         string `json:"error,omitempty"`
}

type Consumer struct {
	reader       *kafka.Reader
	logger       *slog.Logger
	inbox        *inbox.Repository
	appointments *storage.AppointmentRepository
}

type Config struct {
	Brokers string
	GroupID string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, appointments *storage.AppointmentRepository, cfg Config) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: []string{TopicNotificationSent, TopicNotificationFailed},
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{
		reader:       reader,
		logger:       logger,
		inbox:        inboxRepo,
		appointments: appointments,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := c.handle(ctxSpan, msg); err != nil {
			c.logger.Error("receipt handling failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
		}
		span.End()
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var payload receiptPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		c.logger.Warn("unparseable receipt payload skipped", "topic", msg.Topic, "err", err)
		return nil
	}
	if payload.AppointmentID == "" {
		return nil
	}

	if msg.Topic == TopicNotificationFailed {
		c.logger.Warn("notification delivery failed",
			"appointment_id", payload.AppointmentID,
			"kind", payload.Kind,
			"reason", payload.Error,
		)
		return nil
	}

	switch payload.Kind {
	case "confirmation":
		return c.appointments.MarkConfirmationSent(ctx, payload.AppointmentID)
	case "reminder":
		return c.appointments.MarkReminderSent(ctx, payload.AppointmentID)
	default:
		// Cancellation notices carry no flag on the appointment row.
		return nil
	}
}
