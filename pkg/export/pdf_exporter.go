package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Grid is a weekly timetable: one column per day, one row per period.
type Grid struct {
	Columns []string
	Rows    []string
	// Cells is indexed [row][column].
	Cells [][]string
}

// PDFExporter renders tables and timetable grids with gofpdf.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a portrait PDF with an optional title and a table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	writeTitle(pdf, title)
	writeTable(pdf, data, 190)
	return output(pdf)
}

// RenderTimetable lays the grid out on a landscape page and appends an optional
// detail table on the following page.
func (e *PDFExporter) RenderTimetable(grid Grid, details Dataset, title string) ([]byte, error) {
	if len(grid.Columns) == 0 || len(grid.Rows) == 0 {
		return nil, fmt.Errorf("pdf timetable requires at least one day and one period")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	writeTitle(pdf, title)

	const (
		usable     = 277.0
		labelWidth = 17.0
		rowHeight  = 12.0
	)
	colWidth := (usable - labelWidth) / float64(len(grid.Columns))

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(labelWidth, 8, "", "1", 0, "C", false, 0, "")
	for _, col := range grid.Columns {
		pdf.CellFormat(colWidth, 8, col, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 7)
	for r, label := range grid.Rows {
		pdf.SetFont("Arial", "B", 8)
		pdf.CellFormat(labelWidth, rowHeight, label, "1", 0, "C", false, 0, "")
		pdf.SetFont("Arial", "", 7)
		for c := range grid.Columns {
			value := ""
			if r < len(grid.Cells) && c < len(grid.Cells[r]) {
				value = grid.Cells[r][c]
			}
			fill := strings.Contains(value, "/")
			if fill {
				pdf.SetFillColor(255, 228, 196)
			}
			pdf.CellFormat(colWidth, rowHeight, value, "1", 0, "C", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(details.Headers) > 0 {
		pdf.AddPage()
		writeTable(pdf, details, usable)
	}
	return output(pdf)
}

func writeTitle(pdf *gofpdf.Fpdf, title string) {
	if title == "" {
		return
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
	pdf.Ln(4)
}

func writeTable(pdf *gofpdf.Fpdf, data Dataset, width float64) {
	pdf.SetFont("Arial", "B", 10)
	colWidth := width / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
