package reports

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unievents/backend/internal/models"
)

// Repository reads report rows from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EventRows returns one row per event matching f, joined with the organizer's name.
func (r *Repository) EventRows(ctx context.Context, f models.EventFilter) ([]Row, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("e.status = $%d", string(f.Status))
	}
	if f.Category != "" {
		add("e.category = $%d", string(f.Category))
	}
	if f.OrganizerID != nil {
		add("e.organizer_id = $%d", *f.OrganizerID)
	}
	if f.DateFrom != "" {
		add("e.date >= $%d::date", f.DateFrom)
	}
	if f.DateTo != "" {
		add("e.date <= $%d::date", f.DateTo)
	}
	q := `SELECT e.title, to_char(e.date, 'YYYY-MM-DD'), e.event_time, e.venue, e.category,
		u.full_name, e.registered_count, e.attended_count, e.status
		FROM events e JOIN users u ON u.id = e.organizer_id`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY e.date, e.event_time, e.title`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.Title, &row.Date, &row.Time, &row.Venue, &row.Category,
			&row.Organizer, &row.Registrations, &row.Attended, &row.Status); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
