package booking

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookable-app/bookable/services/booking-service/internal/hours"
	"github.com/bookable-app/bookable/services/booking-service/internal/model"
	"github.com/bookable-app/bookable/services/booking-service/internal/slots"
)

// Store is the persistence boundary of the booking engine. All appointment
// writes go through it; nothing else mutates appointment rows.
//
// CreateActive must be atomic with respect to concurrent creates for the
// same (tenant, date, time): when two racing calls pass the availability
// check, at most one may persist and the loser gets ErrSlotTaken. The
// Postgres implementation enforces this with a partial unique index over
// active appointments; the in-memory test store with a mutex.
type Store interface {
	TenantBySlug(ctx context.Context, slug string) (*model.Tenant, error)
	ActiveTimes(ctx context.Context, tenantID, date string) ([]string, error)
	CreateActive(ctx context.Context, appt *model.Appointment, remindAt time.Time) error
	ByToken(ctx context.Context, token string) (*model.Appointment, error)
	CancelByToken(ctx context.Context, token, reason string, at time.Time) (*model.Appointment, error)
	AppointmentByID(ctx context.Context, tenantID, id string) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, tenantID, id, status string, cancelledAt *time.Time) (*model.Appointment, error)
}

// Service implements slot listing, the booking conflict guard, and the
// appointment lifecycle. Confirmation/cancellation notifications are not
// sent here: the store records an outbox event inside the booking
// transaction and delivery happens asynchronously, so a notification
// failure can never fail or roll back a committed booking.
type Service struct {
	store          Store
	logger         *slog.Logger
	loc            *time.Location
	reminderBefore time.Duration
	now            func() time.Time
}

func New(store Store, logger *slog.Logger, reminderBefore time.Duration) *Service {
	if reminderBefore <= 0 {
		reminderBefore = 24 * time.Hour
	}
	return &Service{
		store:          store,
		logger:         logger,
		loc:            time.Local,
		reminderBefore: reminderBefore,
		now:            time.Now,
	}
}

// BookingRequest carries the customer's booking form.
type BookingRequest struct {
	TenantSlug    string `json:"tenant_slug"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	ServiceID     string `json:"service_id"`
	Notes         string `json:"notes"`
}

// SlotsPage is the public slot listing for one date.
type SlotsPage struct {
	Date         string       `json:"date"`
	TenantName   string       `json:"tenant_name"`
	TimeInterval int          `json:"time_interval"`
	Slots        []slots.Slot `json:"slots"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SlotsForDate computes the bookable slots for a tenant and date: candidate
// windows from the business-hours schedule, marked unavailable where an
// active appointment holds the start time.
func (s *Service) SlotsForDate(ctx context.Context, slug, date string) (*SlotsPage, error) {
	tenant, err := s.resolveTenant(ctx, slug)
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, invalidField("date", "must be YYYY-MM-DD")
	}

	booked, err := s.store.ActiveTimes(ctx, tenant.ID, date)
	if err != nil {
		return nil, err
	}

	week := hours.Parse(tenant.BusinessHours)
	return &SlotsPage{
		Date:         date,
		TenantName:   tenant.Name,
		TimeInterval: tenant.TimeInterval,
		Slots:        slots.Generate(week, day, tenant.TimeInterval, slots.BookedSet(booked)),
	}, nil
}

// Book validates the request, re-checks the slot against business hours
// (client input is never trusted), and creates the appointment. The
// check-then-create is race-safe: a concurrent duplicate surfaces from the
// store as ErrSlotTaken and exactly one of N identical requests succeeds.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*model.Appointment, error) {
	req.TenantSlug = strings.TrimSpace(req.TenantSlug)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.Notes = strings.TrimSpace(req.Notes)

	if req.TenantSlug == "" {
		return nil, invalidField("tenant", "required")
	}
	if req.CustomerName == "" {
		return nil, invalidField("customer_name", "required")
	}
	if req.CustomerEmail == "" {
		return nil, invalidField("customer_email", "required")
	}
	if !emailPattern.MatchString(req.CustomerEmail) {
		return nil, invalidField("customer_email", "not a valid email address")
	}

	tenant, err := s.resolveTenant(ctx, req.TenantSlug)
	if err != nil {
		return nil, err
	}

	startsAt, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, s.loc)
	if err != nil {
		return nil, invalidField("date", "must be YYYY-MM-DD with time HH:MM")
	}
	if !startsAt.After(s.now()) {
		return nil, ErrPastSlot
	}

	week := hours.Parse(tenant.BusinessHours)
	if !week.Day(startsAt.Weekday()).ContainsAligned(req.Time, tenant.TimeInterval) {
		return nil, ErrOutsideHours
	}

	// Friendly pre-check; the store's uniqueness guarantee covers the race.
	booked, err := s.store.ActiveTimes(ctx, tenant.ID, req.Date)
	if err != nil {
		return nil, err
	}
	for _, t := range booked {
		if t == req.Time {
			return nil, ErrSlotTaken
		}
	}

	appt := &model.Appointment{
		ID:                uuid.NewString(),
		TenantID:          tenant.ID,
		ServiceID:         req.ServiceID,
		CustomerName:      req.CustomerName,
		CustomerEmail:     req.CustomerEmail,
		CustomerPhone:     req.CustomerPhone,
		Date:              req.Date,
		Time:              req.Time,
		Status:            model.StatusActive,
		Notes:             req.Notes,
		CancellationToken: uuid.NewString(),
		CreatedAt:         s.now(),
	}

	remindAt := startsAt.Add(-s.reminderBefore)
	if err := s.store.CreateActive(ctx, appt, remindAt); err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"tenant", tenant.Slug,
		"date", appt.Date,
		"time", appt.Time,
	)
	return appt, nil
}

// CancelByToken is the customer self-service cancellation, authorized only
// by possession of the token.
func (s *Service) CancelByToken(ctx context.Context, token, reason string) (*model.Appointment, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invalidField("cancellation_token", "required")
	}

	appt, err := s.store.ByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if appt.Status == model.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	startsAt, err := appt.StartsAt(s.loc)
	if err == nil && !startsAt.After(s.now()) {
		return nil, ErrPastSlot
	}

	cancelled, err := s.store.CancelByToken(ctx, token, strings.TrimSpace(reason), s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment cancelled",
		"appointment_id", cancelled.ID,
		"date", cancelled.Date,
		"time", cancelled.Time,
	)
	return cancelled, nil
}

// UpdateStatus is the admin override. Any of the four statuses may be set
// from any state; a transition to cancelled stamps cancelled_at if unset.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id, status string) (*model.Appointment, error) {
	if !model.ValidStatus(status) {
		return nil, invalidField("status", "must be one of active, cancelled, completed, no_show")
	}
	appt, err := s.store.AppointmentByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	var cancelledAt *time.Time
	if status == model.StatusCancelled && appt.CancelledAt == nil {
		now := s.now()
		cancelledAt = &now
	}
	return s.store.UpdateStatus(ctx, tenantID, id, status, cancelledAt)
}

func (s *Service) resolveTenant(ctx context.Context, slug string) (*model.Tenant, error) {
	tenant, err := s.store.TenantBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !tenant.Active() {
		return nil, ErrTenantInactive
	}
	return tenant, nil
}
