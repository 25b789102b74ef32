package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM makes spreadsheet applications detect the encoding of accented names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct {
	delimiter rune
}

// NewCSVExporter builds a CSV exporter. A zero delimiter means ';', which is
// what spreadsheet software in comma-decimal locales expects.
func NewCSVExporter(delimiter rune) *CSVExporter {
	if delimiter == 0 {
		delimiter = ';'
	}
	return &CSVExporter{delimiter: delimiter}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := bytes.NewBuffer(append([]byte(nil), utf8BOM...))
	writer := csv.NewWriter(buf)
	writer.Comma = e.delimiter
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
