package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bookable-app/bookable/libs/db"
	"github.com/bookable-app/bookable/services/booking-service/internal/booking"
	"github.com/bookable-app/bookable/services/booking-service/internal/model"
	"github.com/bookable-app/bookable/services/booking-service/internal/outbox"
	"github.com/bookable-app/bookable/services/booking-service/internal/reminder"
)

// AppointmentRepository is the single write path for appointment rows. The
// booking transaction commits the appointment together with its outbox
// event and reminder job, so a crash can never leave a booked appointment
// without its notification record.
//
// The active-slot invariant is enforced by the partial unique index
// appointments_active_slot_idx on (tenant_id, date, time) WHERE status =
// 'active': of two racing inserts for the same slot exactly one commits and
// the other surfaces here as ErrSlotTaken.
type AppointmentRepository struct {
	pool      *db.Pool
	outbox    *outbox.Repository
	reminders *reminder.Repository
	tenants   *TenantRepository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository, reminderRepo *reminder.Repository, tenants *TenantRepository) *AppointmentRepository {
	return &AppointmentRepository{
		pool:      pool,
		outbox:    outboxRepo,
		reminders: reminderRepo,
		tenants:   tenants,
	}
}

var _ booking.Store = (*AppointmentRepository)(nil)

const appointmentColumns = `
	id::text, tenant_id::text, COALESCE(service_id::text, ''), customer_name,
	customer_email, COALESCE(customer_phone, ''), to_char(date, 'YYYY-MM-DD'),
	time, status, COALESCE(notes, ''), cancellation_token::text, cancelled_at,
	COALESCE(cancellation_reason, ''), confirmation_sent, reminder_sent, created_at`

// Qualified variant for queries that join other tables.
const appointmentColumnsQualified = `
	a.id::text, a.tenant_id::text, COALESCE(a.service_id::text, ''), a.customer_name,
	a.customer_email, COALESCE(a.customer_phone, ''), to_char(a.date, 'YYYY-MM-DD'),
	a.time, a.status, COALESCE(a.notes, ''), a.cancellation_token::text, a.cancelled_at,
	COALESCE(a.cancellation_reason, ''), a.confirmation_sent, a.reminder_sent, a.created_at`

func (r *AppointmentRepository) TenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	return r.tenants.BySlug(ctx, slug)
}

func (r *AppointmentRepository) ActiveTimes(ctx context.Context, tenantID, date string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time
		FROM appointments
		WHERE tenant_id = $1 AND date = $2::date AND status = 'active'
		ORDER BY time
	`, tenantID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// CreateActive inserts the appointment, the booked outbox event and (when
// the reminder moment is still ahead) the reminder job in one transaction.
func (r *AppointmentRepository) CreateActive(ctx context.Context, appt *model.Appointment, remindAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, tenant_id, service_id, customer_name, customer_email, customer_phone,
			date, time, status, notes, cancellation_token, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, NULLIF($6, ''),
			$7::date, $8, $9, NULLIF($10, ''), $11, $12)
	`, appt.ID, appt.TenantID, appt.ServiceID, appt.CustomerName, appt.CustomerEmail,
		appt.CustomerPhone, appt.Date, appt.Time, appt.Status, appt.Notes,
		appt.CancellationToken, appt.CreatedAt)
	if err != nil {
		if isActiveSlotViolation(err) {
			return booking.ErrSlotTaken
		}
		return err
	}

	payload, info, err := r.eventPayload(ctx, tx, appt, map[string]any{
		"cancellation_token": appt.CancellationToken,
	})
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.TopicAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		return err
	}

	if remindAt.After(time.Now()) {
		if err := r.reminders.Insert(ctx, tx, reminder.Job{
			AppointmentID: appt.ID,
			TenantID:      appt.TenantID,
			Recipient:     appt.CustomerEmail,
			RemindAt:      remindAt,
			TemplateData: map[string]any{
				"customer_name":      appt.CustomerName,
				"date":               appt.Date,
				"time":               appt.Time,
				"tenant_name":        info.TenantName,
				"service_name":       info.ServiceName,
				"cancellation_token": appt.CancellationToken,
			},
		}); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *AppointmentRepository) ByToken(ctx context.Context, token string) (*model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE cancellation_token = $1
	`, token)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrTokenNotFound
	}
	return appt, err
}

// CancelByToken flips the row to cancelled, drops the pending reminder and
// records the cancellation event, all in one transaction.
func (r *AppointmentRepository) CancelByToken(ctx context.Context, token, reason string, at time.Time) (*model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = $2,
			cancellation_reason = NULLIF($3, ''),
			updated_at = now()
		WHERE cancellation_token = $1 AND status <> 'cancelled'
		RETURNING `+appointmentColumns+`
	`, token, at, reason)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Zero rows means either an unknown token or a cancel that
		// committed between the caller's pre-check and this update;
		// re-read to tell them apart.
		prior, readErr := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE cancellation_token = $1
		`, token))
		if readErr == nil && prior.Status == model.StatusCancelled {
			return nil, booking.ErrAlreadyCancelled
		}
		return nil, booking.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.reminders.CancelPending(ctx, tx, appt.ID); err != nil {
		return nil, err
	}

	payload, _, err := r.eventPayload(ctx, tx, appt, map[string]any{
		"cancelled_at": at.UTC().Format(time.RFC3339),
		"reason":       reason,
	})
	if err != nil {
		return nil, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.TopicAppointmentCancelled,
		Payload:       payload,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *AppointmentRepository) AppointmentByID(ctx context.Context, tenantID, id string) (*model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrAppointmentNotFound
	}
	return appt, err
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tenantID, id, status string, cancelledAt *time.Time) (*model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
			cancelled_at = COALESCE($4, cancelled_at),
			updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+appointmentColumns+`
	`, id, tenantID, status, cancelledAt)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrAppointmentNotFound
	}
	return appt, err
}

// ListFilters narrows the admin listing. Zero values mean "no filter".
type ListFilters struct {
	TenantID string
	Status   string
	FromDate string
	ToDate   string
	Search   string
}

// List returns the admin view, newest first. Search matches name, email and
// phone case-insensitively.
func (r *AppointmentRepository) List(ctx context.Context, f ListFilters) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
			AND ($2 = '' OR status = $2)
			AND ($3 = '' OR date >= $3::date)
			AND ($4 = '' OR date <= $4::date)
			AND ($5 = '' OR customer_name ILIKE '%' || $5 || '%'
				OR customer_email ILIKE '%' || $5 || '%'
				OR customer_phone ILIKE '%' || $5 || '%')
		ORDER BY date DESC, time DESC
	`, f.TenantID, f.Status, f.FromDate, f.ToDate, f.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ExportRow is one line of the CSV dump, appointment plus service name.
type ExportRow struct {
	model.Appointment
	ServiceName string
}

// ListForExport returns the export ordering: date then time, both ascending.
func (r *AppointmentRepository) ListForExport(ctx context.Context, tenantID, fromDate, toDate string) ([]ExportRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumnsQualified+`, COALESCE(s.name, '')
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.tenant_id = $1
			AND ($2 = '' OR a.date >= $2::date)
			AND ($3 = '' OR a.date <= $3::date)
		ORDER BY a.date ASC, a.time ASC
	`, tenantID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var row ExportRow
		if err := scanAppointmentFields(rows, &row.Appointment, &row.ServiceName); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *AppointmentRepository) MarkConfirmationSent(ctx context.Context, appointmentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments SET confirmation_sent = true, updated_at = now() WHERE id = $1
	`, appointmentID)
	return err
}

func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, appointmentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments SET reminder_sent = true, updated_at = now() WHERE id = $1
	`, appointmentID)
	return err
}

// payloadInfo carries names resolved while building an event payload so
// callers can reuse them for reminder template data.
type payloadInfo struct {
	TenantName  string
	ServiceName string
}

// eventPayload builds the notification event body: the appointment, its
// tenant's contact details and the service name, so the consumer needs no
// access to this database.
func (r *AppointmentRepository) eventPayload(ctx context.Context, tx pgx.Tx, appt *model.Appointment, extra map[string]any) ([]byte, payloadInfo, error) {
	var tenantName, tenantSlug, tenantEmail, tenantPhone, tenantAddress string
	var interval int
	err := tx.QueryRow(ctx, `
		SELECT name, slug, email, COALESCE(phone, ''), COALESCE(address, ''), time_interval
		FROM tenants WHERE id = $1
	`, appt.TenantID).Scan(&tenantName, &tenantSlug, &tenantEmail, &tenantPhone, &tenantAddress, &interval)
	if err != nil {
		return nil, payloadInfo{}, err
	}

	serviceName := ""
	if appt.ServiceID != "" {
		// Missing service is tolerated; the event just omits the name.
		_ = tx.QueryRow(ctx, `SELECT name FROM services WHERE id = $1`, appt.ServiceID).Scan(&serviceName)
	}

	body := map[string]any{
		"appointment_id":   appt.ID,
		"tenant_id":        appt.TenantID,
		"customer_name":    appt.CustomerName,
		"customer_email":   appt.CustomerEmail,
		"customer_phone":   appt.CustomerPhone,
		"date":             appt.Date,
		"time":             appt.Time,
		"notes":            appt.Notes,
		"service_name":     serviceName,
		"interval_minutes": interval,
		"tenant": map[string]any{
			"name":    tenantName,
			"slug":    tenantSlug,
			"email":   tenantEmail,
			"phone":   tenantPhone,
			"address": tenantAddress,
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	raw, err := json.Marshal(body)
	return raw, payloadInfo{TenantName: tenantName, ServiceName: serviceName}, err
}

func isActiveSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "appointments_active_slot_idx"
}

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var appt model.Appointment
	if err := scanAppointmentFields(row, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

func scanAppointmentFields(row pgx.Row, appt *model.Appointment, extra ...any) error {
	dest := []any{
		&appt.ID,
		&appt.TenantID,
		&appt.ServiceID,
		&appt.CustomerName,
		&appt.CustomerEmail,
		&appt.CustomerPhone,
		&appt.Date,
		&appt.Time,
		&appt.Status,
		&appt.Notes,
		&appt.CancellationToken,
		&appt.CancelledAt,
		&appt.CancellationReason,
		&appt.ConfirmationSent,
		&appt.ReminderSent,
		&appt.CreatedAt,
	}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := scanAppointmentFields(rows, &appt); err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}
