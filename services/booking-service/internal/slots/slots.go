package slots

import (
	"time"

	"github.com/bookable-app/bookable/services/booking-service/internal/hours"
)

// Slot is one candidate booking window. Unavailable slots are kept in the
// list (the booking page greys them out) rather than removed.
type Slot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

// BookedSet builds the membership set used to mark slots unavailable.
func BookedSet(times []string) map[string]struct{} {
	set := make(map[string]struct{}, len(times))
	for _, t := range times {
		set[t] = struct{}{}
	}
	return set
}

// Generate walks the weekday's opening window in interval-minute steps and
// returns the candidate slots for the date, ascending by start time.
//
// A slot is emitted only if its end stays at or before closing time, so an
// interval that does not evenly divide the window leaves an unused remainder
// at the end. A disabled weekday, a zero-length window, or an inverted
// window (start after end, never wraps midnight) all yield no slots.
//
// Availability is an exact start-time match against booked: bookings made
// under a previous interval setting may not align to current slot
// boundaries and are then not reflected here.
func Generate(week hours.Week, date time.Time, intervalMins int, booked map[string]struct{}) []Slot {
	if intervalMins < 1 {
		return nil
	}
	day := week.Day(date.Weekday())
	if !day.Enabled {
		return nil
	}
	open, err := hours.ParseClock(day.Start)
	if err != nil {
		return nil
	}
	close, err := hours.ParseClock(day.End)
	if err != nil {
		return nil
	}

	var out []Slot
	for start := open; start < close; start += intervalMins {
		end := start + intervalMins
		if end > close {
			break
		}
		startClock := hours.FormatClock(start)
		_, taken := booked[startClock]
		out = append(out, Slot{
			Start:     startClock,
			End:       hours.FormatClock(end),
			Available: !taken,
		})
	}
	return out
}
