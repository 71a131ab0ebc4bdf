package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository computes dashboard figures in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Dashboard loads the statistics for all events, or only those of organizerID when set.
// Trends cover the months window ending with the current month.
func (r *Repository) Dashboard(ctx context.Context, organizerID *uuid.UUID, months int) (*Dashboard, error) {
	d := &Dashboard{EventsByStatus: map[string]int{}}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(registered_count),0), COALESCE(SUM(attended_count),0)
		FROM events WHERE ($1::uuid IS NULL OR organizer_id = $1) GROUP BY status`, organizerID)
	if err != nil {
		return nil, fmt.Errorf("status totals: %w", err)
	}
	for rows.Next() {
		var status string
		var n, reg, att int
		if err := rows.Scan(&status, &n, &reg, &att); err != nil {
			rows.Close()
			return nil, err
		}
		d.EventsByStatus[status] = n
		d.TotalEvents += n
		d.TotalRegistrations += reg
		d.TotalAttendance += att
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT id, title, registered_count FROM events
		WHERE ($1::uuid IS NULL OR organizer_id = $1) AND status IN ('pending','approved')
		ORDER BY registered_count DESC, date DESC LIMIT $2`, organizerID, TopEvents)
	if err != nil {
		return nil, fmt.Errorf("popular events: %w", err)
	}
	d.PopularEvents, err = pgx.CollectRows(rows, pgx.RowToStructByPos[PopularEvent])
	if err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT COALESCE(NULLIF(u.department,''), 'Unspecified') AS department, COUNT(*)
		FROM registrations reg
		JOIN users u ON u.id = reg.user_id
		JOIN events e ON e.id = reg.event_id
		WHERE ($1::uuid IS NULL OR e.organizer_id = $1)
		GROUP BY 1 ORDER BY 2 DESC, 1`, organizerID)
	if err != nil {
		return nil, fmt.Errorf("department participation: %w", err)
	}
	d.DepartmentParticipation, err = pgx.CollectRows(rows, pgx.RowToStructByPos[DepartmentCount])
	if err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `WITH m AS (
			SELECT generate_series(date_trunc('month', now()) - ($2::int - 1) * interval '1 month',
				date_trunc('month', now()), interval '1 month') AS month
		)
		SELECT to_char(m.month, 'YYYY-MM'),
			(SELECT COUNT(*) FROM events e WHERE date_trunc('month', e.date) = m.month
				AND ($1::uuid IS NULL OR e.organizer_id = $1)),
			(SELECT COUNT(*) FROM registrations reg JOIN events e ON e.id = reg.event_id
				WHERE date_trunc('month', reg.registered_at) = m.month
				AND ($1::uuid IS NULL OR e.organizer_id = $1))
		FROM m ORDER BY m.month`, organizerID, months)
	if err != nil {
		return nil, fmt.Errorf("monthly trends: %w", err)
	}
	d.MonthlyTrends, err = pgx.CollectRows(rows, pgx.RowToStructByPos[MonthlyTrend])
	if err != nil {
		return nil, err
	}

	d.AttendanceRate = Rate(d.TotalAttendance, d.TotalRegistrations)
	return d, nil
}
