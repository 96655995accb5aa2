package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/bookable-app/bookable/services/booking-service/internal/model"
	"github.com/bookable-app/bookable/services/booking-service/internal/storage"
)

func TestWriteCSV_EmptyProducesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected header only, got %d rows", len(records))
	}
	if records[0][0] != "ID" || records[0][len(records[0])-1] != "Cancellation Reason" {
		t.Fatalf("unexpected header: %v", records[0])
	}
}

func TestWriteCSV_EscapesFields(t *testing.T) {
	cancelledAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	rows := []storage.ExportRow{
		{
			Appointment: model.Appointment{
				ID:                 "a-1",
				CustomerName:       `Lee, "JJ"`,
				CustomerEmail:      "jj@example.com",
				Date:               "2025-06-02",
				Time:               "10:00",
				Status:             model.StatusCancelled,
				Notes:              "line one\nline two",
				CancelledAt:        &cancelledAt,
				CancellationReason: "customer request",
				CreatedAt:          time.Date(2025, 5, 28, 8, 0, 0, 0, time.UTC),
			},
			ServiceName: "Haircut",
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(records))
	}
	row := records[1]
	if row[1] != `Lee, "JJ"` {
		t.Fatalf("comma/quote field mangled: %q", row[1])
	}
	if row[8] != "line one\nline two" {
		t.Fatalf("newline field mangled: %q", row[8])
	}
	if row[7] != "Haircut" {
		t.Fatalf("service name missing: %q", row[7])
	}
	if !strings.HasPrefix(row[10], "2025-06-01T09:30:00") {
		t.Fatalf("cancelled_at not rendered: %q", row[10])
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC)
	if got := Filename(now); got != "appointments-2025-06-02.csv" {
		t.Fatalf("unexpected filename %q", got)
	}
}
