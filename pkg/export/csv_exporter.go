package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is tabular export content: ordered headers plus one map per row.
// Row values are looked up by header name; a missing cell renders empty.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders issue datasets for the admin export endpoint.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the dataset as CSV with a leading header line.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv export needs at least one header")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write header line: %w", err)
	}

	record := make([]string, len(data.Headers))
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write issue row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
