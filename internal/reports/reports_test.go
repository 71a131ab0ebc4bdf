package reports

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
)

var sample = []Row{
	{Title: "AI Seminar, Part 1", Date: "2025-03-15", Time: "10:00", Venue: "Main Hall", Category: "seminar",
		Organizer: "Dr. Rao", Registrations: 120, Attended: 98, Status: "approved"},
	{Title: `Robotics "Expo"`, Date: "2025-04-02", Time: "14:30", Venue: "Lab 3", Category: "workshop",
		Organizer: "Ana Silva", Registrations: 40, Attended: 0, Status: "pending"},
}

func TestCSVGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "events_report", buf.Bytes())
}

func TestExcelRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExcel(&buf, sample))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "AI Seminar, Part 1", rows[1][0])
	assert.Equal(t, "120", rows[1][6])
	assert.Equal(t, "pending", rows[2][8])
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, "Events Report", sample))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

type source struct {
	rows  []Row
	err   error
	asked models.EventFilter
}

func (s *source) EventRows(_ context.Context, f models.EventFilter) ([]Row, error) {
	s.asked = f
	return s.rows, s.err
}

type archive struct {
	key string
	ct  string
	n   int
}

func (a *archive) ArchiveReport(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	data, _ := io.ReadAll(body)
	a.key, a.ct, a.n = key, contentType, len(data)
	return "https://files.example.com/" + key + "?sig=abc", nil
}

var admin = models.Actor{ID: uuid.New(), Role: models.RoleAdmin}

func TestExportScopesOrganizers(t *testing.T) {
	src := &source{rows: sample}
	svc := NewService(src, nil, nil)
	organizer := models.Actor{ID: uuid.New(), Role: models.RoleOrganizer}

	_, err := svc.Export(context.Background(), organizer, Request{Filter: models.EventFilter{OrganizerID: &admin.ID}})
	require.NoError(t, err)
	require.NotNil(t, src.asked.OrganizerID)
	assert.Equal(t, organizer.ID, *src.asked.OrganizerID)

	_, err = svc.Export(context.Background(), admin, Request{Format: FormatCSV})
	require.NoError(t, err)
	assert.Nil(t, src.asked.OrganizerID)
}

func TestExportValidation(t *testing.T) {
	svc := NewService(&source{rows: sample}, nil, nil)
	ctx := context.Background()

	cases := map[string]Request{
		"format":   {Format: "docx"},
		"status":   {Filter: models.EventFilter{Status: "archived"}},
		"category": {Filter: models.EventFilter{Category: "music"}},
		"date":     {Filter: models.EventFilter{DateFrom: "15/03/2025"}},
		"range":    {Filter: models.EventFilter{DateFrom: "2025-03-15", DateTo: "2025-03-01"}},
	}
	for name, req := range cases {
		_, err := svc.Export(ctx, admin, req)
		assert.True(t, errors.Is(err, apperr.ErrValidation), name)
	}

	_, err := NewService(&source{}, nil, nil).Export(ctx, admin, Request{})
	require.Error(t, err)
	assert.Equal(t, "no events match the selected filters", apperr.Message(err))

	_, err = svc.Export(ctx, admin, Request{Archive: true})
	assert.True(t, errors.Is(err, apperr.ErrPreconditionFailed))
}

func TestExportArchives(t *testing.T) {
	arc := &archive{}
	svc := NewService(&source{rows: sample}, arc, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 10, 15, 0, 0, time.UTC) }

	file, err := svc.Export(context.Background(), admin, Request{Format: FormatExcel, Archive: true})

	require.NoError(t, err)
	assert.Equal(t, "events_report_20250314_101500.xlsx", file.Name)
	assert.True(t, strings.HasSuffix(arc.key, ".xlsx"))
	assert.Equal(t, FormatExcel.ContentType(), arc.ct)
	assert.Equal(t, len(file.Data), arc.n)
	assert.Contains(t, file.URL, arc.key)
}

func TestHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewService(&source{rows: sample}, nil, nil))
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetActor(c, admin.ID, admin.Role, "")
		c.Next()
	})
	r.GET("/reports/events", h.Events)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/events?status=approved", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=events_report_")
	assert.True(t, strings.HasPrefix(w.Body.String(), "Event Name,Date,Time"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/events?format=odt", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
