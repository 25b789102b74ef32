package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the media type of rendered workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	defaultSheet   = "Sheet1"
	maxSheetName   = 31
	xlsxColumnWide = 24
)

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes the headers on the first row and one row per record below.
// The sheet is named after sheet, truncated to the workbook limit.
func (e *XLSXExporter) Render(data Dataset, sheet string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	sheet = sheetName(sheet)

	f := excelize.NewFile()
	defer f.Close()
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	for i, header := range data.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write xlsx header: %w", err)
		}
	}
	for r, row := range data.Rows {
		for i, header := range data.Headers {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, row[header]); err != nil {
				return nil, fmt.Errorf("write xlsx row: %w", err)
			}
		}
	}

	last, err := excelize.ColumnNumberToName(len(data.Headers))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", last, xlsxColumnWide); err != nil {
		return nil, fmt.Errorf("size xlsx columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func sheetName(title string) string {
	if title == "" {
		return defaultSheet
	}
	runes := []rune(title)
	if len(runes) > maxSheetName {
		runes = runes[:maxSheetName]
	}
	return string(runes)
}
