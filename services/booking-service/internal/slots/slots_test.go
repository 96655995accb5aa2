package slots

import (
	"reflect"
	"testing"
	"time"

	"github.com/bookable-app/bookable/services/booking-service/internal/hours"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func TestGenerate_DefaultMonday(t *testing.T) {
	out := Generate(hours.Default(), monday, 60, nil)

	if len(out) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(out))
	}
	if out[0].Start != "09:00" || out[0].End != "10:00" {
		t.Fatalf("unexpected first slot: %+v", out[0])
	}
	if out[7].Start != "16:00" || out[7].End != "17:00" {
		t.Fatalf("unexpected last slot: %+v", out[7])
	}
	for _, s := range out {
		if !s.Available {
			t.Fatalf("slot %s should be available with no bookings", s.Start)
		}
	}
}

func TestGenerate_MarksBookedUnavailable(t *testing.T) {
	booked := BookedSet([]string{"10:00", "14:00"})
	out := Generate(hours.Default(), monday, 60, booked)

	if len(out) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(out))
	}
	for _, s := range out {
		_, taken := booked[s.Start]
		if s.Available == taken {
			t.Fatalf("slot %s availability wrong: %+v", s.Start, s)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(hours.Default(), monday, 60, BookedSet([]string{"11:00"}))
	b := Generate(hours.Default(), monday, 60, BookedSet([]string{"11:00"}))
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same inputs must produce identical slot lists")
	}
}

func TestGenerate_TrailingRemainderDropped(t *testing.T) {
	// 09:00-17:00 with 90-minute slots: 09:00, 10:30, 12:00, 13:30, 15:00.
	// A 16:30 slot would end at 18:00, past close, so it is not emitted.
	out := Generate(hours.Default(), monday, 90, nil)
	if len(out) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(out))
	}
	if out[4].Start != "15:00" || out[4].End != "16:30" {
		t.Fatalf("unexpected final slot: %+v", out[4])
	}
}

func TestGenerate_DisabledDay(t *testing.T) {
	sunday := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if out := Generate(hours.Default(), sunday, 60, nil); len(out) != 0 {
		t.Fatalf("disabled day should yield no slots, got %d", len(out))
	}
}

func TestGenerate_DegenerateWindows(t *testing.T) {
	zero := hours.Week{Monday: hours.Window{Start: "09:00", End: "09:00", Enabled: true}}
	if out := Generate(zero, monday, 60, nil); len(out) != 0 {
		t.Fatalf("zero-length window should yield no slots, got %d", len(out))
	}

	inverted := hours.Week{Monday: hours.Window{Start: "17:00", End: "09:00", Enabled: true}}
	if out := Generate(inverted, monday, 60, nil); len(out) != 0 {
		t.Fatalf("inverted window should yield no slots, got %d", len(out))
	}

	if out := Generate(hours.Default(), monday, 0, nil); len(out) != 0 {
		t.Fatalf("non-positive interval should yield no slots, got %d", len(out))
	}
}

func TestGenerate_UnevenInterval(t *testing.T) {
	// Saturday 10:00-16:00 with 45-minute slots: last emitted slot must
	// end at or before 16:00.
	saturday := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	out := Generate(hours.Default(), saturday, 45, nil)
	if len(out) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(out))
	}
	if out[7].Start != "15:15" || out[7].End != "16:00" {
		t.Fatalf("unexpected final slot: %+v", out[7])
	}
}
