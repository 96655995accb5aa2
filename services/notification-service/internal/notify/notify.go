// Package notify turns booking events into customer emails and records
// a receipt for each delivery attempt.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bookable-app/bookable/libs/db"
	"github.com/bookable-app/bookable/services/notification-service/internal/email"
	"github.com/bookable-app/bookable/services/notification-service/internal/ics"
	"github.com/bookable-app/bookable/services/notification-service/internal/outbox"
	"github.com/bookable-app/bookable/services/notification-service/internal/storage"
)

const (
	KindConfirmation = "confirmation"
	KindCancellation = "cancellation"
	KindReminder     = "reminder"
)

// TenantInfo is the business block embedded in booking events.
type TenantInfo struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// AppointmentEvent is the payload of booked and cancelled events. It is
// self-contained: everything needed to render the email rides along.
type AppointmentEvent struct {
	AppointmentID      string     `json:"appointment_id"`
	TenantID           string     `json:"tenant_id"`
	CustomerName       string     `json:"customer_name"`
	CustomerEmail      string     `json:"customer_email"`
	CustomerPhone      string     `json:"customer_phone"`
	Date               string     `json:"date"`
	Time               string     `json:"time"`
	Notes              string     `json:"notes"`
	ServiceName        string     `json:"service_name"`
	IntervalMinutes    int        `json:"interval_minutes"`
	Tenant             TenantInfo `json:"tenant"`
	CancellationToken  string     `json:"cancellation_token"`
	CancelledAt        string     `json:"cancelled_at"`
	CancellationReason string     `json:"cancellation_reason"`
}

// ReminderEvent is the payload of reminder-due events.
type ReminderEvent struct {
	AppointmentID string         `json:"appointment_id"`
	TenantID      string         `json:"tenant_id"`
	Recipient     string         `json:"recipient"`
	RemindAt      string         `json:"remind_at"`
	TemplateData  map[string]any `json:"template_data"`
}

// Processor renders and sends the emails and writes delivery receipts.
type Processor struct {
	pool          *db.Pool
	notifications *storage.Repository
	outbox        *outbox.Repository
	sender        email.Sender
	logger        *slog.Logger
	appURL        string
	loc           *time.Location
}

func NewProcessor(pool *db.Pool, notifications *storage.Repository, outboxRepo *outbox.Repository, sender email.Sender, logger *slog.Logger, appURL string) *Processor {
	return &Processor{
		pool:          pool,
		notifications: notifications,
		outbox:        outboxRepo,
		sender:        sender,
		logger:        logger,
		appURL:        strings.TrimRight(appURL, "/"),
		loc:           time.Local,
	}
}

func (p *Processor) HandleBooked(ctx context.Context, evt AppointmentEvent) error {
	subject := fmt.Sprintf("Your appointment with %s is confirmed", evt.Tenant.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", evt.CustomerName)
	fmt.Fprintf(&b, "Your appointment with %s is confirmed for %s at %s.\n", evt.Tenant.Name, evt.Date, evt.Time)
	if evt.ServiceName != "" {
		fmt.Fprintf(&b, "Service: %s\n", evt.ServiceName)
	}
	if evt.Tenant.Address != "" {
		fmt.Fprintf(&b, "Location: %s\n", evt.Tenant.Address)
	}
	if url := p.cancelURL(evt.CancellationToken); url != "" {
		fmt.Fprintf(&b, "\nNeed to cancel? Use this link: %s\n", url)
	}
	fmt.Fprintf(&b, "\nSee you soon,\n%s\n", evt.Tenant.Name)

	invite := p.invite(evt, ics.MethodRequest)
	return p.deliver(ctx, delivery{
		Kind:      KindConfirmation,
		Event:     evt,
		Recipient: evt.CustomerEmail,
		Subject:   subject,
		Body:      b.String(),
		ICS:       invite,
		ICSMethod: ics.MethodRequest,
	})
}

func (p *Processor) HandleCancelled(ctx context.Context, evt AppointmentEvent) error {
	subject := fmt.Sprintf("Your appointment with %s has been cancelled", evt.Tenant.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", evt.CustomerName)
	fmt.Fprintf(&b, "Your appointment with %s on %s at %s has been cancelled.\n", evt.Tenant.Name, evt.Date, evt.Time)
	if evt.CancellationReason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", evt.CancellationReason)
	}
	fmt.Fprintf(&b, "\nYou can book a new time any time.\n")

	invite := p.invite(evt, ics.MethodCancel)
	return p.deliver(ctx, delivery{
		Kind:      KindCancellation,
		Event:     evt,
		Recipient: evt.CustomerEmail,
		Subject:   subject,
		Body:      b.String(),
		ICS:       invite,
		ICSMethod: ics.MethodCancel,
	})
}

func (p *Processor) HandleReminder(ctx context.Context, evt ReminderEvent) error {
	tenantName := templateString(evt.TemplateData, "tenant_name")
	customerName := templateString(evt.TemplateData, "customer_name")
	date := templateString(evt.TemplateData, "date")
	clock := templateString(evt.TemplateData, "time")

	subject := "Appointment reminder"
	if tenantName != "" {
		subject = fmt.Sprintf("Reminder: your appointment with %s", tenantName)
	}

	var b strings.Builder
	if customerName != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", customerName)
	}
	fmt.Fprintf(&b, "This is a reminder of your upcoming appointment on %s at %s.\n", date, clock)
	if svc := templateString(evt.TemplateData, "service_name"); svc != "" {
		fmt.Fprintf(&b, "Service: %s\n", svc)
	}
	if url := p.cancelURL(templateString(evt.TemplateData, "cancellation_token")); url != "" {
		fmt.Fprintf(&b, "\nNeed to cancel? Use this link: %s\n", url)
	}

	return p.deliver(ctx, delivery{
		Kind: KindReminder,
		Event: AppointmentEvent{
			AppointmentID: evt.AppointmentID,
			TenantID:      evt.TenantID,
		},
		Recipient: evt.Recipient,
		Subject:   subject,
		Body:      b.String(),
	})
}

type delivery struct {
	Kind      string
	Event     AppointmentEvent
	Recipient string
	Subject   string
	Body      string
	ICS       []byte
	ICSMethod string
}

func (p *Processor) deliver(ctx context.Context, d delivery) error {
	status := "sent"
	sendErr := ""
	err := p.sender.Send(email.Message{
		To:      d.Recipient,
		Subject: d.Subject,
		Body:    d.Body,
		ICS:     d.ICS,
		Method:  d.ICSMethod,
	})
	if err != nil {
		status = "failed"
		sendErr = err.Error()
		p.logger.Error("email send failed", "err", err, "kind", d.Kind, "recipient", d.Recipient)
	}

	if err := p.notifications.Insert(ctx, storage.Notification{
		AppointmentID: d.Event.AppointmentID,
		TenantID:      d.Event.TenantID,
		Kind:          d.Kind,
		Recipient:     d.Recipient,
		Subject:       d.Subject,
		Status:        status,
		Error:         sendErr,
	}); err != nil {
		return err
	}

	if err := p.writeReceipt(ctx, d, status, sendErr); err != nil {
		return err
	}

	p.logger.Info("notification processed",
		"appointment_id", d.Event.AppointmentID,
		"kind", d.Kind,
		"status", status,
	)
	return nil
}

func (p *Processor) writeReceipt(ctx context.Context, d delivery, status, sendErr string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	topic := outbox.TopicNotificationSent
	body := map[string]any{
		"appointment_id": d.Event.AppointmentID,
		"tenant_id":      d.Event.TenantID,
		"kind":           d.Kind,
		"recipient":      d.Recipient,
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if status == "failed" {
		topic = outbox.TopicNotificationFailed
		body["error"] = sendErr
		body["failed_at"] = now
	} else {
		body["sent_at"] = now
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if err := p.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   d.Event.AppointmentID,
		EventType:     topic,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// invite builds the calendar attachment. A bad date just drops the
// attachment rather than blocking the email.
func (p *Processor) invite(evt AppointmentEvent, method string) []byte {
	start, err := time.ParseInLocation("2006-01-02 15:04", evt.Date+" "+evt.Time, p.loc)
	if err != nil {
		p.logger.Warn("invite skipped, bad start time", "date", evt.Date, "time", evt.Time)
		return nil
	}

	summary := "Appointment"
	if evt.Tenant.Name != "" {
		summary = "Appointment with " + evt.Tenant.Name
	}
	if evt.ServiceName != "" {
		summary += ": " + evt.ServiceName
	}

	description := ""
	if url := p.cancelURL(evt.CancellationToken); url != "" && method == ics.MethodRequest {
		description = "Cancel: " + url
	}

	return ics.Event{
		UID:          evt.AppointmentID + "@bookable",
		Start:        start,
		DurationMins: evt.IntervalMinutes,
		Summary:      summary,
		Description:  description,
		Location:     evt.Tenant.Address,
		Organizer:    evt.Tenant.Email,
		Attendee:     evt.CustomerEmail,
		Method:       method,
	}.Encode()
}

func (p *Processor) cancelURL(token string) string {
	if p.appURL == "" || token == "" {
		return ""
	}
	return p.appURL + "/cancel/" + token
}

func templateString(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
