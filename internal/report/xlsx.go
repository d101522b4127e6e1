package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"
)

const maxSheetNameLen = 31

// XLSXRenderer writes a single-sheet workbook named after the day, with a
// bold header row.
type XLSXRenderer struct{}

var _ Renderer = XLSXRenderer{}

// Extension implements Renderer.
func (XLSXRenderer) Extension() string { return "xlsx" }

// Render implements Renderer.
func (XLSXRenderer) Render(day string, records []domain.Record) (out []byte, err error) {
	table := BuildTable(records)

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()

	sheet := sheetName(day)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("open stream writer: %w", err)
	}

	header := make([]interface{}, len(table.Header))
	for i, name := range table.Header {
		header[i] = excelize.Cell{StyleID: bold, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for r, row := range table.Rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = cellValue(v)
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue keeps numbers and booleans typed so they stay sortable in a
// spreadsheet; everything else is written as text.
func cellValue(v gjson.Result) interface{} {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n
		}
		return v.Float()
	case gjson.True, gjson.False:
		return v.Bool()
	default:
		return CellText(v)
	}
}

func sheetName(day string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, day)
	name = strings.Trim(name, "'")
	if name == "" {
		return "Sheet1"
	}
	if len([]rune(name)) > maxSheetNameLen {
		name = string([]rune(name)[:maxSheetNameLen])
	}
	return name
}
