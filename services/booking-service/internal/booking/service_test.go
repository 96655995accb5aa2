package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bookable-app/bookable/services/booking-service/internal/model"
)

// fakeStore keeps appointments in memory with the same uniqueness
// guarantee the Postgres store provides through its partial unique
// index: at most one active appointment per (tenant, date, time).
type fakeStore struct {
	mu     sync.Mutex
	tenant *model.Tenant
	appts  map[string]*model.Appointment
}

func newFakeStore(tenant *model.Tenant) *fakeStore {
	return &fakeStore{tenant: tenant, appts: make(map[string]*model.Appointment)}
}

func (f *fakeStore) TenantBySlug(_ context.Context, slug string) (*model.Tenant, error) {
	if f.tenant == nil || f.tenant.Slug != slug {
		return nil, ErrTenantNotFound
	}
	t := *f.tenant
	return &t, nil
}

func (f *fakeStore) ActiveTimes(_ context.Context, tenantID, date string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, a := range f.appts {
		if a.TenantID == tenantID && a.Date == date && a.Status == model.StatusActive {
			out = append(out, a.Time)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateActive(_ context.Context, appt *model.Appointment, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.TenantID == appt.TenantID && a.Date == appt.Date && a.Time == appt.Time && a.Status == model.StatusActive {
			return ErrSlotTaken
		}
	}
	cp := *appt
	f.appts[appt.ID] = &cp
	return nil
}

func (f *fakeStore) ByToken(_ context.Context, token string) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.CancellationToken == token {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (f *fakeStore) CancelByToken(_ context.Context, token, reason string, at time.Time) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.CancellationToken != token {
			continue
		}
		if a.Status == model.StatusCancelled {
			return nil, ErrAlreadyCancelled
		}
		a.Status = model.StatusCancelled
		a.CancelledAt = &at
		a.CancellationReason = reason
		cp := *a
		return &cp, nil
	}
	return nil, ErrTokenNotFound
}

func (f *fakeStore) AppointmentByID(_ context.Context, tenantID, id string) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok || a.TenantID != tenantID {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, tenantID, id, status string, cancelledAt *time.Time) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok || a.TenantID != tenantID {
		return nil, ErrAppointmentNotFound
	}
	a.Status = status
	if cancelledAt != nil {
		a.CancelledAt = cancelledAt
	}
	cp := *a
	return &cp, nil
}

func testTenant() *model.Tenant {
	return &model.Tenant{
		ID:                 "t-1",
		Slug:               "acme-salon",
		Name:               "Acme Salon",
		Email:              "hello@acme-salon.test",
		TimeInterval:       60,
		SubscriptionStatus: "active",
	}
}

// newTestService pins the clock to Sunday 2025-06-01 12:00 UTC so
// bookings on Monday 2025-06-02 are in the future.
func newTestService(store Store) *Service {
	svc := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	svc.loc = time.UTC
	svc.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func validRequest() BookingRequest {
	return BookingRequest{
		TenantSlug:    "acme-salon",
		CustomerName:  "Jordan Lee",
		CustomerEmail: "jordan@example.com",
		Date:          "2025-06-02",
		Time:          "10:00",
	}
}

func TestBook_Success(t *testing.T) {
	store := newFakeStore(testTenant())
	svc := newTestService(store)

	appt, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if appt.ID == "" || appt.CancellationToken == "" {
		t.Fatalf("missing generated ids: %+v", appt)
	}
	if appt.Status != model.StatusActive {
		t.Fatalf("expected active status, got %q", appt.Status)
	}

	page, err := svc.SlotsForDate(context.Background(), "acme-salon", "2025-06-02")
	if err != nil {
		t.Fatalf("SlotsForDate failed: %v", err)
	}
	if len(page.Slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(page.Slots))
	}
	for _, s := range page.Slots {
		if s.Start == "10:00" && s.Available {
			t.Fatal("booked slot still listed as available")
		}
		if s.Start != "10:00" && !s.Available {
			t.Fatalf("slot %s should be available", s.Start)
		}
	}
}

func TestBook_Validation(t *testing.T) {
	svc := newTestService(newFakeStore(testTenant()))

	cases := []struct {
		name   string
		mutate func(*BookingRequest)
	}{
		{"missing name", func(r *BookingRequest) { r.CustomerName = " " }},
		{"missing email", func(r *BookingRequest) { r.CustomerEmail = "" }},
		{"bad email", func(r *BookingRequest) { r.CustomerEmail = "not an email" }},
		{"email without domain dot", func(r *BookingRequest) { r.CustomerEmail = "a@b" }},
		{"bad date", func(r *BookingRequest) { r.Date = "June 2nd" }},
	}
	for _, c := range cases {
		req := validRequest()
		c.mutate(&req)
		if _, err := svc.Book(context.Background(), req); !IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", c.name, err)
		}
	}
}

func TestBook_UnknownAndInactiveTenant(t *testing.T) {
	svc := newTestService(newFakeStore(testTenant()))
	req := validRequest()
	req.TenantSlug = "nobody"
	if _, err := svc.Book(context.Background(), req); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}

	suspended := testTenant()
	suspended.SubscriptionStatus = "suspended"
	svc = newTestService(newFakeStore(suspended))
	if _, err := svc.Book(context.Background(), validRequest()); !errors.Is(err, ErrTenantInactive) {
		t.Fatalf("expected ErrTenantInactive, got %v", err)
	}
}

func TestBook_PastSlot(t *testing.T) {
	svc := newTestService(newFakeStore(testTenant()))
	req := validRequest()
	req.Date = "2025-05-30"
	if _, err := svc.Book(context.Background(), req); !errors.Is(err, ErrPastSlot) {
		t.Fatalf("expected ErrPastSlot, got %v", err)
	}
}

func TestBook_OutsideHours(t *testing.T) {
	svc := newTestService(newFakeStore(testTenant()))

	cases := []struct {
		name string
		date string
		time string
	}{
		{"before open", "2025-06-02", "08:00"},
		{"slot ends past close", "2025-06-02", "17:00"},
		{"misaligned", "2025-06-02", "10:30"},
		{"disabled sunday", "2025-06-08", "11:00"},
	}
	for _, c := range cases {
		req := validRequest()
		req.Date = c.date
		req.Time = c.time
		if _, err := svc.Book(context.Background(), req); !errors.Is(err, ErrOutsideHours) {
			t.Fatalf("%s: expected ErrOutsideHours, got %v", c.name, err)
		}
	}
}

func TestBook_Conflict(t *testing.T) {
	svc := newTestService(newFakeStore(testTenant()))

	if _, err := svc.Book(context.Background(), validRequest()); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := svc.Book(context.Background(), validRequest()); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestBook_CancelledSlotReopens(t *testing.T) {
	store := newFakeStore(testTenant())
	svc := newTestService(store)

	appt, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if _, err := svc.CancelByToken(context.Background(), appt.CancellationToken, ""); err != nil {
		t.Fatalf("CancelByToken failed: %v", err)
	}
	if _, err := svc.Book(context.Background(), validRequest()); err != nil {
		t.Fatalf("rebooking a cancelled slot failed: %v", err)
	}
}

func TestBook_ConcurrentRequestsOneWinner(t *testing.T) {
	store := newFakeStore(testTenant())
	svc := newTestService(store)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), validRequest())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
}

func TestCancelByToken(t *testing.T) {
	store := newFakeStore(testTenant())
	svc := newTestService(store)

	appt, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	cancelled, err := svc.CancelByToken(context.Background(), appt.CancellationToken, "schedule change")
	if err != nil {
		t.Fatalf("CancelByToken failed: %v", err)
	}
	if cancelled.Status != model.StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("not cancelled: %+v", cancelled)
	}
	if cancelled.CancellationReason != "schedule change" {
		t.Fatalf("reason not stored: %q", cancelled.CancellationReason)
	}

	if _, err := svc.CancelByToken(context.Background(), appt.CancellationToken, ""); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
	if _, err := svc.CancelByToken(context.Background(), "no-such-token", ""); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

// racingCancelStore reports the row as still active on the pre-check read
// even though it is cancelled by the time the write runs.
type racingCancelStore struct {
	*fakeStore
}

func (r *racingCancelStore) ByToken(ctx context.Context, token string) (*model.Appointment, error) {
	appt, err := r.fakeStore.ByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	appt.Status = model.StatusActive
	return appt, nil
}

func TestCancelByToken_RacingCancel(t *testing.T) {
	store := newFakeStore(testTenant())
	svc := newTestService(store)

	appt, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if _, err := svc.CancelByToken(context.Background(), appt.CancellationToken, ""); err != nil {
		t.Fatalf("CancelByToken failed: %v", err)
	}

	// A concurrent cancel that lands between the read and the write must
	// come back as already-cancelled, not as an unknown token.
	svc.store = &racingCancelStore{fakeStore: store}
	if _, err := svc.CancelByToken(context.Background(), appt.CancellationToken, ""); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
}

func TestCancelByToken_ElapsedAppointment(t *testing.T) {
	store := newFakeStore(testTenant())
	svc := newTestService(store)

	appt, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	// Move the clock past the appointment start.
	svc.now = func() time.Time {
		return time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)
	}
	if _, err := svc.CancelByToken(context.Background(), appt.CancellationToken, ""); !errors.Is(err, ErrPastSlot) {
		t.Fatalf("expected ErrPastSlot, got %v", err)
	}

	// The appointment must be untouched.
	stored, err := store.AppointmentByID(context.Background(), "t-1", appt.ID)
	if err != nil {
		t.Fatalf("AppointmentByID failed: %v", err)
	}
	if stored.Status != model.StatusActive {
		t.Fatalf("elapsed cancel attempt changed status to %q", stored.Status)
	}
}

func TestUpdateStatus(t *testing.T) {
	store := newFakeStore(testTenant())
	svc := newTestService(store)

	appt, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), "t-1", appt.ID, model.StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %q", updated.Status)
	}

	// Admin cancellation stamps cancelled_at.
	updated, err = svc.UpdateStatus(context.Background(), "t-1", appt.ID, model.StatusCancelled)
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated.CancelledAt == nil {
		t.Fatal("cancelled_at not stamped")
	}

	if _, err := svc.UpdateStatus(context.Background(), "t-1", appt.ID, "archived"); !IsValidation(err) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "t-1", "missing", model.StatusCompleted); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestSlotsForDate_BadDate(t *testing.T) {
	svc := newTestService(newFakeStore(testTenant()))
	if _, err := svc.SlotsForDate(context.Background(), "acme-salon", "02/06/2025"); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
