package report

import (
	"bytes"
	"encoding/json"

	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/tidwall/gjson"
)

// valueColumn heads the single column used when no record is an object.
const valueColumn = "value"

// Renderer produces one artifact for one day.
type Renderer interface {
	// Render encodes records in order. It must be deterministic.
	Render(day string, records []domain.Record) ([]byte, error)
	// Extension is the artifact file extension without a leading dot.
	Extension() string
}

// Table is the format-independent layout of a report.
type Table struct {
	Header []string
	Rows   [][]gjson.Result
}

// BuildTable lays records out under the keys of the first object record.
// A non-object record fills only the first column with its own value.
func BuildTable(records []domain.Record) Table {
	var header []string
	for _, r := range records {
		if r.IsObject() {
			header = r.Keys()
			break
		}
	}
	if len(header) == 0 {
		header = []string{valueColumn}
	}

	rows := make([][]gjson.Result, 0, len(records))
	for _, r := range records {
		row := make([]gjson.Result, len(header))
		if r.IsObject() {
			for i, name := range header {
				if v, ok := r.Field(name); ok {
					row[i] = v
				}
			}
		} else {
			row[0] = r.Result()
		}
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}
}

// CellText renders a value as cell text. Absent and null values are empty.
func CellText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.String()
	case gjson.JSON:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v.Raw)); err != nil {
			return v.Raw
		}
		return buf.String()
	default:
		return v.Raw
	}
}
