package report

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/phrazzld/dayreport/internal/domain"
)

// CSVRenderer writes RFC 4180 CSV with a header row.
type CSVRenderer struct{}

var _ Renderer = CSVRenderer{}

// Extension implements Renderer.
func (CSVRenderer) Extension() string { return "csv" }

// Render implements Renderer.
func (CSVRenderer) Render(_ string, records []domain.Record) ([]byte, error) {
	table := BuildTable(records)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	line := make([]string, len(table.Header))
	for _, row := range table.Rows {
		for i, v := range row {
			line[i] = CellText(v)
		}
		if err := w.Write(line); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
