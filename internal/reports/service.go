package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/database"
	"github.com/unievents/backend/pkg/storage"
)

// Source loads report rows.
type Source interface {
	EventRows(ctx context.Context, f models.EventFilter) ([]Row, error)
}

// Archiver stores a generated report and returns a download URL.
type Archiver interface {
	ArchiveReport(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// Service builds event reports.
type Service struct {
	src     Source
	archive Archiver
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a report service. archive may be nil when object storage is not configured.
func NewService(src Source, archive Archiver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{src: src, archive: archive, logger: logger, now: time.Now}
}

// Request selects what to export.
type Request struct {
	Format  Format
	Filter  models.EventFilter
	Archive bool
}

// Export renders the events matching the request. Organizers only see their own events.
func (s *Service) Export(ctx context.Context, actor models.Actor, req Request) (*File, error) {
	if req.Format == "" {
		req.Format = FormatCSV
	}
	if !req.Format.Valid() {
		return nil, apperr.Validation("unsupported format %q (use csv, xlsx or pdf)", req.Format)
	}
	if err := validateFilter(req.Filter); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		id := actor.ID
		req.Filter.OrganizerID = &id
	}
	if req.Archive && s.archive == nil {
		return nil, apperr.PreconditionFailed("report archiving is not configured")
	}

	rows, err := s.src.EventRows(ctx, req.Filter)
	if database.IsUnavailable(err) {
		return nil, apperr.StoreUnavailable(err)
	}
	if err != nil {
		return nil, fmt.Errorf("load report rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("no events match the selected filters")
	}

	now := s.now()
	data, err := Render(req.Format, "Events Report", rows)
	if err != nil {
		return nil, fmt.Errorf("render %s report: %w", req.Format, err)
	}
	ext := "." + string(req.Format)
	out := &File{
		Name:        "events_report_" + now.UTC().Format("20060102_150405") + ext,
		ContentType: req.Format.ContentType(),
		Data:        data,
	}
	if req.Archive {
		key := storage.ReportKey(now, ext)
		out.URL, err = s.archive.ArchiveReport(ctx, key, out.ContentType, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("archive report: %w", err)
		}
		s.logger.Info("report archived", zap.String("key", key), zap.Int("rows", len(rows)))
	}
	return out, nil
}

func validateFilter(f models.EventFilter) error {
	switch f.Status {
	case "", models.EventStatusPending, models.EventStatusApproved, models.EventStatusRejected, models.EventStatusCancelled:
	default:
		return apperr.Validation("unknown status %q", f.Status)
	}
	if f.Category != "" && !f.Category.Valid() {
		return apperr.Validation("unknown category %q", f.Category)
	}
	var from, to time.Time
	var err error
	if f.DateFrom != "" {
		if from, err = time.Parse(models.DateLayout, f.DateFrom); err != nil {
			return apperr.Validation("date_from must be YYYY-MM-DD")
		}
	}
	if f.DateTo != "" {
		if to, err = time.Parse(models.DateLayout, f.DateTo); err != nil {
			return apperr.Validation("date_to must be YYYY-MM-DD")
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return apperr.Validation("date_to is before date_from")
	}
	return nil
}
