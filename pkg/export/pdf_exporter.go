package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a landscape tabular PDF.
type PDFExporter struct {
	// Widths holds per-column widths in millimetres. Missing entries share the
	// remaining page width evenly.
	Widths []float64
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter(widths ...float64) *PDFExporter {
	return &PDFExporter{Widths: widths}
}

const pageWidth = 277.0

// Render creates a PDF document with a title, a header row repeated on every
// page and numbered footers.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	widths := e.columnWidths(len(data.Headers))

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 15)

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if title != "" {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, tr(title), "", 1, "C", false, 0, "")
			pdf.Ln(2)
		}
		header()
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 8, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()

	for _, row := range data.Rows {
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 6, tr(row[h]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) columnWidths(n int) []float64 {
	widths := make([]float64, n)
	used := 0.0
	fixed := 0
	for i := 0; i < n && i < len(e.Widths); i++ {
		if e.Widths[i] > 0 {
			widths[i] = e.Widths[i]
			used += e.Widths[i]
			fixed++
		}
	}
	if fixed == n {
		return widths
	}
	share := (pageWidth - used) / float64(n-fixed)
	if share < 10 {
		share = 10
	}
	for i := range widths {
		if widths[i] == 0 {
			widths[i] = share
		}
	}
	return widths
}
