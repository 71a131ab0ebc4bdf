// Package emailsettings stores the global email switches, per-user email
// preferences and the delivery log written by the worker.
package emailsettings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unievents/backend/internal/models"
)

// Skip reasons recorded on skipped deliveries.
const (
	SkipDisabledGlobally = "disabled by administrator"
	SkipDisabledByUser   = "disabled by recipient"
)

// Repository handles email settings, preferences and logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListSettings returns the global switch of every notification type.
func (r *Repository) ListSettings(ctx context.Context) ([]models.EmailSetting, error) {
	rows, err := r.pool.Query(ctx, `SELECT notification_type, enabled, COALESCE(description,''), updated_by, updated_at
		FROM email_notification_settings ORDER BY notification_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.EmailSetting{}
	for rows.Next() {
		var s models.EmailSetting
		var typ string
		if err := rows.Scan(&typ, &s.Enabled, &s.Description, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.NotificationType = models.NotificationType(typ)
		list = append(list, s)
	}
	return list, rows.Err()
}

// SetSetting turns email for one notification type on or off.
func (r *Repository) SetSetting(ctx context.Context, typ models.NotificationType, enabled bool, by uuid.UUID) (*models.EmailSetting, error) {
	var s models.EmailSetting
	var t string
	err := r.pool.QueryRow(ctx, `INSERT INTO email_notification_settings (notification_type, enabled, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (notification_type) DO UPDATE SET enabled = EXCLUDED.enabled, updated_by = EXCLUDED.updated_by, updated_at = NOW()
		RETURNING notification_type, enabled, COALESCE(description,''), updated_by, updated_at`,
		string(typ), enabled, by).Scan(&t, &s.Enabled, &s.Description, &s.UpdatedBy, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.NotificationType = models.NotificationType(t)
	return &s, nil
}

// ListPreferences returns the user's stored preferences.
func (r *Repository) ListPreferences(ctx context.Context, userID uuid.UUID) ([]models.EmailPreference, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, notification_type, enabled, updated_at
		FROM user_email_preferences WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EmailPreference
	for rows.Next() {
		var p models.EmailPreference
		var typ string
		if err := rows.Scan(&p.UserID, &typ, &p.Enabled, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.NotificationType = models.NotificationType(typ)
		list = append(list, p)
	}
	return list, rows.Err()
}

// SetPreference upserts one preference.
func (r *Repository) SetPreference(ctx context.Context, userID uuid.UUID, typ models.NotificationType, enabled bool) (*models.EmailPreference, error) {
	p := models.EmailPreference{UserID: userID, NotificationType: typ, Enabled: enabled}
	err := r.pool.QueryRow(ctx, `INSERT INTO user_email_preferences (user_id, notification_type, enabled, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, notification_type) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = NOW()
		RETURNING updated_at`, userID, string(typ), enabled).Scan(&p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ShouldSend reports whether an email of typ may go to the user, and why not.
// A missing global row or preference counts as enabled.
func (r *Repository) ShouldSend(ctx context.Context, userID uuid.UUID, typ models.NotificationType) (bool, string, error) {
	var global, personal *bool
	err := r.pool.QueryRow(ctx, `SELECT
		(SELECT enabled FROM email_notification_settings WHERE notification_type = $2),
		(SELECT enabled FROM user_email_preferences WHERE user_id = $1 AND notification_type = $2)`,
		userID, string(typ)).Scan(&global, &personal)
	if err != nil {
		return false, "", err
	}
	ok, reason := Decide(global, personal)
	return ok, reason, nil
}

// Decide combines the global switch and the user preference.
func Decide(global, personal *bool) (bool, string) {
	if global != nil && !*global {
		return false, SkipDisabledGlobally
	}
	if personal != nil && !*personal {
		return false, SkipDisabledByUser
	}
	return true, ""
}

// Log records one delivery attempt.
func (r *Repository) Log(ctx context.Context, l *models.EmailLog) error {
	return r.pool.QueryRow(ctx, `INSERT INTO email_notification_logs
		(recipient_id, recipient_email, notification_type, subject, status, error_message, event_id, meeting_id, sent_at)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, NULLIF($6,''), $7, $8, $9)
		RETURNING id, created_at`,
		l.RecipientID, l.RecipientEmail, string(l.NotificationType), l.Subject, l.Status, l.ErrorMessage,
		l.EventID, l.MeetingID, l.SentAt).Scan(&l.ID, &l.CreatedAt)
}

// ListLogs returns delivery logs, newest first. A nil recipient lists everyone's.
func (r *Repository) ListLogs(ctx context.Context, recipient *uuid.UUID, limit int) ([]*models.EmailLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT id, recipient_id, recipient_email, notification_type, subject, status, error_message, event_id, meeting_id, sent_at, created_at
		FROM email_notification_logs
		WHERE ($1::uuid IS NULL OR recipient_id = $1)
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, recipient, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		var typ string
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.RecipientID, &el.RecipientEmail, &typ, &subject, &el.Status, &errMsg, &el.EventID, &el.MeetingID, &el.SentAt, &el.CreatedAt); err != nil {
			return nil, err
		}
		el.NotificationType = models.NotificationType(typ)
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
