package meetings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/database"
)

const meetingColumns = `id, event_id, title, COALESCE(description,''), COALESCE(meeting_link,''),
	to_char(date, 'YYYY-MM-DD'), meeting_time, duration_minutes, COALESCE(agenda,''), created_by, created_at, updated_at`

func scanMeeting(row pgx.Row, m *models.Meeting) error {
	return row.Scan(&m.ID, &m.EventID, &m.Title, &m.Description, &m.MeetingLink,
		&m.Date, &m.Time, &m.DurationMinutes, &m.Agenda, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
}

// Repository handles meetings and meeting_participants persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meetings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) collect(rows pgx.Rows, err error) ([]models.Meeting, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Meeting{}
	for rows.Next() {
		var m models.Meeting
		if err := scanMeeting(rows, &m); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// List returns meetings, optionally only those of one event, soonest first.
func (r *Repository) List(ctx context.Context, eventID *uuid.UUID) ([]models.Meeting, error) {
	return r.collect(r.pool.Query(ctx, `SELECT `+meetingColumns+` FROM meetings
		WHERE ($1::uuid IS NULL OR event_id = $1)
		ORDER BY date, meeting_time`, eventID))
}

// ListForUser returns meetings the user is invited to or that belong to an
// event the user registered for.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Meeting, error) {
	return r.collect(r.pool.Query(ctx, `SELECT `+meetingColumns+` FROM meetings
		WHERE id IN (SELECT meeting_id FROM meeting_participants WHERE user_id = $1)
		   OR event_id IN (SELECT event_id FROM registrations WHERE user_id = $1)
		ORDER BY date, meeting_time`, userID))
}

// Get returns one meeting.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	var m models.Meeting
	err := scanMeeting(r.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id), &m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("meeting", id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// EventOrganizer returns the organizer of an event.
func (r *Repository) EventOrganizer(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT organizer_id FROM events WHERE id = $1`, eventID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, apperr.NotFound("event", eventID)
	}
	return id, err
}

// RegisteredUserIDs returns the students registered for an event.
func (r *Repository) RegisteredUserIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM registrations WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// Create inserts a meeting and its initial participants in one transaction.
func (r *Repository) Create(ctx context.Context, m *models.Meeting, participants []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	const q = `INSERT INTO meetings (event_id, title, description, meeting_link, date, meeting_time, duration_minutes, agenda, created_by)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5, $6, $7, NULLIF($8,''), $9)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, q, m.EventID, m.Title, m.Description, m.MeetingLink, m.Date, m.Time,
		m.DurationMinutes, m.Agenda, m.CreatedBy).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return mapWriteErr(err)
	}
	if _, err := addParticipants(ctx, tx, m.ID, participants); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update saves the editable fields of a meeting.
func (r *Repository) Update(ctx context.Context, m *models.Meeting) error {
	const q = `UPDATE meetings SET title = $2, description = NULLIF($3,''), meeting_link = NULLIF($4,''),
		date = $5, meeting_time = $6, duration_minutes = $7, agenda = NULLIF($8,''), updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, m.ID, m.Title, m.Description, m.MeetingLink, m.Date, m.Time,
		m.DurationMinutes, m.Agenda).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("meeting", m.ID)
	}
	return mapWriteErr(err)
}

// Delete removes a meeting; participants go with it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("meeting", id)
	}
	return nil
}

// Participants lists the invitees of a meeting with their names.
func (r *Repository) Participants(ctx context.Context, meetingID uuid.UUID) ([]models.MeetingParticipant, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.meeting_id, p.user_id, u.full_name, u.email, p.status, p.attended, p.joined_at, p.left_at
		FROM meeting_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.meeting_id = $1
		ORDER BY u.full_name`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.MeetingParticipant{}
	for rows.Next() {
		var p models.MeetingParticipant
		var status string
		if err := rows.Scan(&p.ID, &p.MeetingID, &p.UserID, &p.UserName, &p.UserEmail, &status, &p.Attended, &p.JoinedAt, &p.LeftAt); err != nil {
			return nil, err
		}
		p.Status = models.ParticipantStatus(status)
		list = append(list, p)
	}
	return list, rows.Err()
}

// AddParticipants invites users and returns the ids that were not already invited.
func (r *Repository) AddParticipants(ctx context.Context, meetingID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	added, err := addParticipants(ctx, tx, meetingID, userIDs)
	if err != nil {
		return nil, err
	}
	return added, tx.Commit(ctx)
}

func addParticipants(ctx context.Context, tx pgx.Tx, meetingID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	var added []uuid.UUID
	for _, uid := range userIDs {
		tag, err := tx.Exec(ctx, `INSERT INTO meeting_participants (meeting_id, user_id) VALUES ($1, $2)
			ON CONFLICT ON CONSTRAINT meeting_participants_meeting_user_key DO NOTHING`, meetingID, uid)
		if database.IsForeignKeyViolation(err) {
			return nil, apperr.NotFound("user", uid)
		}
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() > 0 {
			added = append(added, uid)
		}
	}
	return added, nil
}

// GetParticipant returns one user's participation in a meeting.
func (r *Repository) GetParticipant(ctx context.Context, meetingID, userID uuid.UUID) (*models.MeetingParticipant, error) {
	var p models.MeetingParticipant
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, meeting_id, user_id, status, attended, joined_at, left_at
		FROM meeting_participants WHERE meeting_id = $1 AND user_id = $2`, meetingID, userID).
		Scan(&p.ID, &p.MeetingID, &p.UserID, &status, &p.Attended, &p.JoinedAt, &p.LeftAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("participant", userID)
	}
	if err != nil {
		return nil, err
	}
	p.Status = models.ParticipantStatus(status)
	return &p, nil
}

// SaveParticipant writes a participant's status and attendance stamps.
func (r *Repository) SaveParticipant(ctx context.Context, p *models.MeetingParticipant) error {
	tag, err := r.pool.Exec(ctx, `UPDATE meeting_participants
		SET status = $2, attended = $3, joined_at = $4, left_at = $5
		WHERE id = $1`, p.ID, string(p.Status), p.Attended, p.JoinedAt, p.LeftAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("participant", p.ID)
	}
	return nil
}

// ParticipantIDs returns the user ids invited to a meeting.
func (r *Repository) ParticipantIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM meeting_participants WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// DueOn returns meetings scheduled on date, for reminders.
func (r *Repository) DueOn(ctx context.Context, date time.Time) ([]models.Meeting, error) {
	return r.collect(r.pool.Query(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE date = $1
		ORDER BY meeting_time`, date.Format(models.DateLayout)))
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if database.IsForeignKeyViolation(err) {
		return apperr.Validation("meeting refers to an unknown event")
	}
	if database.IsCheckViolation(err, "") {
		return apperr.Validation("duration must be positive")
	}
	if database.IsUnavailable(err) {
		return apperr.StoreUnavailable(err)
	}
	return err
}
