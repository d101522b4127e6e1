package report

import (
	"fmt"
	"strings"
)

// NewRenderer returns the renderer for a configured format name.
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "xlsx":
		return XLSXRenderer{}, nil
	case "csv":
		return CSVRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}
