package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/store"
	"github.com/unievents/backend/pkg/database"
)

const eventColumns = `id, title, COALESCE(description,''), to_char(date, 'YYYY-MM-DD'), event_time, venue, category,
	capacity, registered_count, attended_count, status, COALESCE(image_url,''), organizer_id, created_at, updated_at`

func scanEvent(row pgx.Row, e *models.Event) error {
	return row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Venue, &e.Category,
		&e.Capacity, &e.RegisteredCount, &e.AttendedCount, &e.Status, &e.ImageURL, &e.OrganizerID, &e.CreatedAt, &e.UpdatedAt)
}

func (t *tx) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var e models.Event
	if err := scanEvent(t.tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id), &e); err != nil {
		return nil, noRows(err, "event", id)
	}
	return &e, nil
}

func (t *tx) LockEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var e models.Event
	if err := scanEvent(t.tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id), &e); err != nil {
		return nil, noRows(err, "event", id)
	}
	return &e, nil
}

func (t *tx) ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.OrganizerID != nil {
		add("organizer_id = $%d", *f.OrganizerID)
	}
	if f.DateFrom != "" {
		add("date >= $%d::date", f.DateFrom)
	}
	if f.DateTo != "" {
		add("date <= $%d::date", f.DateTo)
	}
	q := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY date ASC, event_time ASC`

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (t *tx) FindSlotConflict(ctx context.Context, date, venue string, excludeID *uuid.UUID) (*models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events
		WHERE date = $1::date AND venue = $2 AND status IN ('pending', 'approved')
		AND ($3::uuid IS NULL OR id <> $3)
		LIMIT 1`
	var e models.Event
	err := scanEvent(t.tx.QueryRow(ctx, q, date, venue, excludeID), &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *tx) InsertEvent(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, date, event_time, venue, category, capacity, status, image_url, organizer_id)
		VALUES ($1, NULLIF($2,''), $3::date, $4, $5, $6, $7, $8, NULLIF($9,''), $10)
		RETURNING id, registered_count, attended_count, created_at, updated_at`
	err := t.tx.QueryRow(ctx, q, e.Title, e.Description, e.Date, e.Time, e.Venue, string(e.Category), e.Capacity,
		string(e.Status), e.ImageURL, e.OrganizerID).
		Scan(&e.ID, &e.RegisteredCount, &e.AttendedCount, &e.CreatedAt, &e.UpdatedAt)
	if database.IsUniqueViolation(err, constraintSlot) {
		return store.ErrSlotTaken
	}
	return err
}

func (t *tx) UpdateEvent(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $2, description = NULLIF($3,''), date = $4::date, event_time = $5, venue = $6,
		category = $7, capacity = $8, image_url = NULLIF($9,''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := t.tx.QueryRow(ctx, q, e.ID, e.Title, e.Description, e.Date, e.Time, e.Venue, string(e.Category), e.Capacity, e.ImageURL).
		Scan(&e.UpdatedAt)
	switch {
	case database.IsUniqueViolation(err, constraintSlot):
		return store.ErrSlotTaken
	case database.IsCheckViolation(err, "events_registered_within_capacity"):
		return store.ErrOutOfBounds
	}
	return noRows(err, "event", e.ID)
}

func (t *tx) SetEventStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if database.IsUniqueViolation(err, constraintSlot) {
		return store.ErrSlotTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("event", id)
	}
	return nil
}

func (t *tx) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("event", id)
	}
	return nil
}

func (t *tx) AdjustEventCounts(ctx context.Context, id uuid.UUID, registeredDelta, attendedDelta int) error {
	const q = `UPDATE events
		SET registered_count = registered_count + $2, attended_count = attended_count + $3, updated_at = NOW()
		WHERE id = $1
		AND registered_count + $2 BETWEEN 0 AND capacity
		AND attended_count + $3 BETWEEN 0 AND registered_count + $2`
	tag, err := t.tx.Exec(ctx, q, id, registeredDelta, attendedDelta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrOutOfBounds
	}
	return nil
}
