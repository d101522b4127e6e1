package report

import (
	"bytes"
	"testing"

	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func records(raw ...string) []domain.Record {
	out := make([]domain.Record, len(raw))
	for i, r := range raw {
		out[i] = domain.Record(r)
	}
	return out
}

func TestBuildTable(t *testing.T) {
	t.Parallel()

	table := BuildTable(records(
		`{"id":1,"name":"a","date":"2024-01-01"}`,
		`{"name":"b","extra":true,"id":null}`,
		`{"id":3,"name":{"first":"c", "last":"d"}}`,
		`"loose"`,
	))

	assert.Equal(t, []string{"id", "name", "date"}, table.Header)
	require.Len(t, table.Rows, 4)

	text := func(row int) []string {
		var out []string
		for _, v := range table.Rows[row] {
			out = append(out, CellText(v))
		}
		return out
	}
	assert.Equal(t, []string{"1", "a", "2024-01-01"}, text(0))
	assert.Equal(t, []string{"", "b", ""}, text(1))
	assert.Equal(t, []string{"3", `{"first":"c","last":"d"}`, ""}, text(2))
	assert.Equal(t, []string{"loose", "", ""}, text(3))
}

func TestBuildTableWithoutObjects(t *testing.T) {
	t.Parallel()

	table := BuildTable(records(`1`, `"two"`))
	assert.Equal(t, []string{"value"}, table.Header)
	assert.Equal(t, "1", CellText(table.Rows[0][0]))
	assert.Equal(t, "two", CellText(table.Rows[1][0]))
}

func TestCSVRenderer(t *testing.T) {
	t.Parallel()

	recs := records(`{"b":"x,y","a":2}`, `{"a":3,"c":"ignored"}`)

	out, err := CSVRenderer{}.Render("2024-01-01", recs)
	require.NoError(t, err)
	assert.Equal(t, "b,a\n\"x,y\",2\n,3\n", string(out))

	again, err := CSVRenderer{}.Render("2024-01-01", recs)
	require.NoError(t, err)
	assert.Equal(t, out, again, "rendering is deterministic")
	assert.Equal(t, "csv", CSVRenderer{}.Extension())
}

func TestXLSXRenderer(t *testing.T) {
	t.Parallel()

	out, err := XLSXRenderer{}.Render("2024-01-15", records(
		`{"id":1,"title":"first","ok":true}`,
		`{"id":2,"title":null,"meta":{"k":[1,2]}}`,
		`{"title":"third","id":2.5}`,
	))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"2024-01-15"}, f.GetSheetList())

	rows, err := f.GetRows("2024-01-15")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"id", "title", "ok"}, rows[0])
	assert.Equal(t, []string{"1", "first", "TRUE"}, rows[1])
	assert.Equal(t, []string{"2"}, rows[2])
	assert.Equal(t, []string{"2.5", "third"}, rows[3])

	styleID, err := f.GetCellStyle("2024-01-15", "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	assert.Equal(t, "xlsx", XLSXRenderer{}.Extension())
}

func TestSheetName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2024-01-15", sheetName("2024-01-15"))
	assert.Equal(t, "a_b_c", sheetName("a/b:c"))
	assert.Equal(t, "Sheet1", sheetName(""))
	assert.Len(t, []rune(sheetName("abcdefghijklmnopqrstuvwxyz0123456789")), maxSheetNameLen)
}

func TestNewRenderer(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer("xlsx")
	require.NoError(t, err)
	assert.IsType(t, XLSXRenderer{}, r)

	r, err = NewRenderer("CSV")
	require.NoError(t, err)
	assert.IsType(t, CSVRenderer{}, r)

	_, err = NewRenderer("pdf")
	assert.Error(t, err)
}
