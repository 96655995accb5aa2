// Package export renders appointment listings as CSV for download.
package export

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/bookable-app/bookable/services/booking-service/internal/storage"
)

var header = []string{
	"ID",
	"Customer Name",
	"Email",
	"Phone",
	"Date",
	"Time",
	"Status",
	"Service",
	"Notes",
	"Created At",
	"Cancelled At",
	"Cancellation Reason",
}

// WriteCSV streams rows to w. An empty slice still produces the header
// line so the download is a valid, openable file.
func WriteCSV(w io.Writer, rows []storage.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		cancelledAt := ""
		if row.CancelledAt != nil {
			cancelledAt = row.CancelledAt.Format(time.RFC3339)
		}
		record := []string{
			row.ID,
			row.CustomerName,
			row.CustomerEmail,
			row.CustomerPhone,
			row.Date,
			row.Time,
			row.Status,
			row.ServiceName,
			row.Notes,
			row.CreatedAt.Format(time.RFC3339),
			cancelledAt,
			row.CancellationReason,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Filename builds a dated attachment name like appointments-2025-06-02.csv.
func Filename(now time.Time) string {
	return "appointments-" + now.Format("2006-01-02") + ".csv"
}
