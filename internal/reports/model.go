// Package reports exports event reports as CSV, XLSX or PDF.
package reports

// Format is an export file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return ""
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool { return f.ContentType() != "" }

// Columns of the events report, in order.
var Columns = []string{"Event Name", "Date", "Time", "Location", "Category", "Organizer", "Registrations", "Attended", "Status"}

// Row is one event line of the report.
type Row struct {
	Title         string `json:"title"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Venue         string `json:"venue"`
	Category      string `json:"category"`
	Organizer     string `json:"organizer"`
	Registrations int    `json:"registrations"`
	Attended      int    `json:"attended"`
	Status        string `json:"status"`
}

// File is a generated report.
type File struct {
	Name        string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	// URL is set when the report was archived to object storage.
	URL string `json:"url,omitempty"`
}
