package hours

import (
	"testing"
	"time"
)

func TestDefaultSchedule(t *testing.T) {
	week := Default()

	for _, win := range []Window{week.Monday, week.Tuesday, week.Wednesday, week.Thursday, week.Friday} {
		if !win.Enabled || win.Start != "09:00" || win.End != "17:00" {
			t.Fatalf("unexpected weekday window: %+v", win)
		}
	}
	if !week.Saturday.Enabled || week.Saturday.Start != "10:00" || week.Saturday.End != "16:00" {
		t.Fatalf("unexpected saturday window: %+v", week.Saturday)
	}
	if week.Sunday.Enabled {
		t.Fatalf("sunday should be disabled by default: %+v", week.Sunday)
	}
}

func TestParseFallsBackToDefault(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"monday":`} {
		week := Parse(raw)
		if week != Default() {
			t.Fatalf("Parse(%q) should yield the default schedule, got %+v", raw, week)
		}
	}
}

func TestParseValidBlob(t *testing.T) {
	raw := `{"monday":{"start":"08:00","end":"12:00","enabled":true},"sunday":{"start":"10:00","end":"14:00","enabled":true}}`
	week := Parse(raw)
	if week.Monday.Start != "08:00" || week.Monday.End != "12:00" || !week.Monday.Enabled {
		t.Fatalf("monday not decoded: %+v", week.Monday)
	}
	if !week.Sunday.Enabled {
		t.Fatalf("sunday not decoded: %+v", week.Sunday)
	}
	// Absent days decode as zero windows, which are disabled.
	if week.Tuesday.Enabled {
		t.Fatalf("tuesday should be disabled: %+v", week.Tuesday)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"9:00", 0, true},
		{"0900", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got, err := ParseClock(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestWeekDay(t *testing.T) {
	week := Default()
	if week.Day(time.Saturday) != week.Saturday {
		t.Fatal("Day(Saturday) mismatch")
	}
	if week.Day(time.Sunday) != week.Sunday {
		t.Fatal("Day(Sunday) mismatch")
	}
}

func TestContainsAligned(t *testing.T) {
	win := Window{Start: "09:00", End: "17:00", Enabled: true}

	if !win.ContainsAligned("09:00", 60) {
		t.Fatal("opening slot should be contained")
	}
	if !win.ContainsAligned("16:00", 60) {
		t.Fatal("last full slot should be contained")
	}
	if win.ContainsAligned("17:00", 60) {
		t.Fatal("slot ending past close should be rejected")
	}
	if win.ContainsAligned("08:00", 60) {
		t.Fatal("slot before open should be rejected")
	}
	if win.ContainsAligned("09:30", 60) {
		t.Fatal("misaligned start should be rejected")
	}
	if win.ContainsAligned("09:00", 0) {
		t.Fatal("zero interval should be rejected")
	}

	disabled := Window{Start: "09:00", End: "17:00"}
	if disabled.ContainsAligned("09:00", 60) {
		t.Fatal("disabled window should reject everything")
	}
}
