package hours

import (
	"encoding/json"
	"fmt"
	"time"
)

// Window is one weekday's opening window. Start and End are "HH:MM" clocks;
// a disabled day produces no slots regardless of the clocks.
type Window struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Enabled bool   `json:"enabled"`
}

// Week maps every weekday to its window.
type Week struct {
	Monday    Window `json:"monday"`
	Tuesday   Window `json:"tuesday"`
	Wednesday Window `json:"wednesday"`
	Thursday  Window `json:"thursday"`
	Friday    Window `json:"friday"`
	Saturday  Window `json:"saturday"`
	Sunday    Window `json:"sunday"`
}

// Default is the documented fallback schedule: Mon-Fri 09:00-17:00,
// Sat 10:00-16:00, Sun disabled.
func Default() Week {
	weekday := Window{Start: "09:00", End: "17:00", Enabled: true}
	return Week{
		Monday:    weekday,
		Tuesday:   weekday,
		Wednesday: weekday,
		Thursday:  weekday,
		Friday:    weekday,
		Saturday:  Window{Start: "10:00", End: "16:00", Enabled: true},
		Sunday:    Window{Start: "10:00", End: "16:00", Enabled: false},
	}
}

// Parse decodes a stored business-hours blob. An empty or unparseable blob
// yields the default schedule; there is no partial-corruption recovery, a
// bad blob is treated as entirely absent.
func Parse(raw string) Week {
	if raw == "" {
		return Default()
	}
	var w Week
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Default()
	}
	return w
}

func (w Week) Day(d time.Weekday) Window {
	switch d {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return w.Sunday
	}
}

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%2d:%2d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ContainsAligned reports whether a slot starting at clock (on a day with
// this window) is bookable: the day is enabled, the start is aligned to a
// multiple of interval minutes from the window start, and the slot's end
// stays at or before closing time.
func (w Window) ContainsAligned(clock string, intervalMins int) bool {
	if !w.Enabled || intervalMins < 1 {
		return false
	}
	open, err := ParseClock(w.Start)
	if err != nil {
		return false
	}
	close, err := ParseClock(w.End)
	if err != nil {
		return false
	}
	start, err := ParseClock(clock)
	if err != nil {
		return false
	}
	if start < open || start+intervalMins > close {
		return false
	}
	return (start-open)%intervalMins == 0
}
