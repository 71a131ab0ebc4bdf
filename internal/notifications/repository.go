package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
)

// DefaultPageSize bounds an inbox listing when the caller passes no limit.
const DefaultPageSize = 50

// Repository handles notifications persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateMany inserts a batch of notifications and fills their ids.
func (r *Repository) CreateMany(ctx context.Context, list []*models.Notification) error {
	if len(list) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, n := range list {
		batch.Queue(`INSERT INTO notifications (user_id, type, title, message, event_id, meeting_id)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, read, created_at`,
			n.UserID, string(n.Type), n.Title, n.Message, n.EventID, n.MeetingID)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, n := range list {
		if err := br.QueryRow().Scan(&n.ID, &n.Read, &n.CreatedAt); err != nil {
			return err
		}
	}
	return br.Close()
}

// ListByUser returns a user's notifications, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = DefaultPageSize
	}
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, type, title, message, event_id, meeting_id, read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC
		LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Notification{}
	for rows.Next() {
		var n models.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.EventID, &n.MeetingID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = models.NotificationType(typ)
		list = append(list, &n)
	}
	return list, rows.Err()
}

// UnreadCount returns the number of unread notifications for a user.
func (r *Repository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&n)
	return n, err
}

// MarkRead marks one of the user's notifications read.
func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification", id)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read and returns how many changed.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
