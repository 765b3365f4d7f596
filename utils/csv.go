package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// WriteCSV writes a header and rows as RFC 4180 CSV. Fields containing
// commas, quotes or newlines are quoted with inner quotes doubled.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename builds the attachment filename for a CSV export window.
func ExportFilename(from, to time.Time) string {
	return fmt.Sprintf("pageviews_%s_%s.csv",
		from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
}
