package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Events"

func record(r Row) []string {
	return []string{
		r.Title,
		r.Date,
		r.Time,
		r.Venue,
		r.Category,
		r.Organizer,
		strconv.Itoa(r.Registrations),
		strconv.Itoa(r.Attended),
		r.Status,
	}
}

// Render encodes rows in the given format.
func Render(format Format, title string, rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatCSV:
		err = WriteCSV(&buf, rows)
	case FormatExcel:
		err = WriteExcel(&buf, rows)
	case FormatPDF:
		err = WritePDF(&buf, title, rows)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV writes a header line followed by one line per row.
func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writer.Write(record(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteExcel writes a single-sheet workbook with a bold header row.
func WriteExcel(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return err
	}

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{r.Title, r.Date, r.Time, r.Venue, r.Category, r.Organizer, r.Registrations, r.Attended, r.Status}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "A", 36); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "D", "F", 22); err != nil {
		return err
	}
	return f.Write(w)
}

var pdfWidths = []float64{62, 22, 14, 40, 24, 38, 26, 20, 22}

// WritePDF writes a landscape A4 table.
func WritePDF(w io.Writer, title string, rows []Row) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, title)
	pdf.Ln(14)

	pdf.SetFont("Arial", "B", 9)
	for i, h := range Columns {
		pdf.CellFormat(pdfWidths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, r := range rows {
		for i, v := range record(r) {
			align := "L"
			if i == 6 || i == 7 {
				align = "R"
			}
			pdf.CellFormat(pdfWidths[i], 6, tr(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}
