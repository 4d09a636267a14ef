package export

import (
	"bytes"
	"fmt"
	"strings"
)

// TXTExporter renders datasets into a plain-text block format, one labelled
// line per column and a separator between rows.
type TXTExporter struct{}

// NewTXTExporter builds a TXT exporter.
func NewTXTExporter() *TXTExporter {
	return &TXTExporter{}
}

// Render produces plain-text bytes for the dataset.
func (e *TXTExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("txt requires at least one header")
	}

	buf := &bytes.Buffer{}
	if title != "" {
		buf.WriteString(strings.ToUpper(title) + "\n")
		buf.WriteString(strings.Repeat("=", 50) + "\n\n")
	}

	for _, row := range data.Rows {
		for _, header := range data.Headers {
			fmt.Fprintf(buf, "%s: %s\n", header, row[header])
		}
		buf.WriteString(strings.Repeat("-", 50) + "\n")
	}

	return buf.Bytes(), nil
}
