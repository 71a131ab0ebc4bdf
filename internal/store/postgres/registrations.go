package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/store"
	"github.com/unievents/backend/pkg/database"
)

const registrationColumns = `r.id, r.event_id, r.user_id, r.attended, r.attended_at, r.registered_at,
	u.full_name, u.email, e.title, to_char(e.date, 'YYYY-MM-DD')`

const registrationFrom = ` FROM registrations r
	JOIN users u ON u.id = r.user_id
	JOIN events e ON e.id = r.event_id`

func scanRegistration(row pgx.Row, r *models.Registration) error {
	return row.Scan(&r.ID, &r.EventID, &r.UserID, &r.Attended, &r.AttendedAt, &r.RegisteredAt,
		&r.UserName, &r.UserEmail, &r.EventTitle, &r.EventDate)
}

func (t *tx) InsertRegistration(ctx context.Context, r *models.Registration) error {
	const q = `INSERT INTO registrations (event_id, user_id) VALUES ($1, $2) RETURNING id, attended, registered_at`
	err := t.tx.QueryRow(ctx, q, r.EventID, r.UserID).Scan(&r.ID, &r.Attended, &r.RegisteredAt)
	if database.IsUniqueViolation(err, constraintRegistration) {
		return store.ErrDuplicate
	}
	return err
}

func (t *tx) GetRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var r models.Registration
	err := scanRegistration(t.tx.QueryRow(ctx, `SELECT `+registrationColumns+registrationFrom+` WHERE r.id = $1`, id), &r)
	if err != nil {
		return nil, noRows(err, "registration", id)
	}
	return &r, nil
}

func (t *tx) LockRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var r models.Registration
	err := scanRegistration(t.tx.QueryRow(ctx, `SELECT `+registrationColumns+registrationFrom+` WHERE r.id = $1 FOR UPDATE OF r`, id), &r)
	if err != nil {
		return nil, noRows(err, "registration", id)
	}
	return &r, nil
}

func (t *tx) FindRegistration(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	var r models.Registration
	err := scanRegistration(t.tx.QueryRow(ctx,
		`SELECT `+registrationColumns+registrationFrom+` WHERE r.event_id = $1 AND r.user_id = $2 FOR UPDATE OF r`, eventID, userID), &r)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *tx) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("registration", id)
	}
	return nil
}

func (t *tx) SetAttendance(ctx context.Context, id uuid.UUID, attended bool, at *time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE registrations SET attended = $2, attended_at = $3 WHERE id = $1`, id, attended, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("registration", id)
	}
	return nil
}

func (t *tx) listRegistrations(ctx context.Context, where string, arg any) ([]models.Registration, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+registrationColumns+registrationFrom+` WHERE `+where+` ORDER BY r.registered_at DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		var r models.Registration
		if err := scanRegistration(rows, &r); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (t *tx) ListRegistrationsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	return t.listRegistrations(ctx, "r.event_id = $1", eventID)
}

func (t *tx) ListRegistrationsByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return t.listRegistrations(ctx, "r.user_id = $1", userID)
}
