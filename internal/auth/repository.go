package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/database"
)

const userColumns = `id, email, password_hash, full_name, role,
	COALESCE(department,''), COALESCE(student_id,''), COALESCE(phone,''), created_at, updated_at`

func scanUser(row pgx.Row, u *models.User) error {
	return row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role,
		&u.Department, &u.StudentID, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
}

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user", id)
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user", email)
		}
		return nil, err
	}
	return &u, nil
}

// List returns all users, optionally restricted to one role.
func (r *Repository) List(ctx context.Context, role models.Role) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY full_name, email`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.UserPublic{}
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		list = append(list, u.ToPublic())
	}
	return list, rows.Err()
}

// ListByRole returns the users holding role, with emails, for notification fan-out.
func (r *Repository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1`, string(role))
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// ListRegistered returns the users registered for an event.
func (r *Repository) ListRegistered(ctx context.Context, eventID uuid.UUID) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE id IN (SELECT user_id FROM registrations WHERE event_id = $1)`, eventID)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// ListByIDs returns the users with the given ids; unknown ids are skipped.
func (r *Repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]models.User, error) {
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// CreateUserParams holds optional profile fields.
type CreateUserParams struct {
	Department string
	StudentID  string
	Phone      string
}

// Create inserts a new user. A taken email is reported as apperr.Conflict.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role, profile *CreateUserParams) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name, role, department, student_id, phone)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), NULLIF($7,''))
		RETURNING ` + userColumns
	var p CreateUserParams
	if profile != nil {
		p = *profile
	}
	var u models.User
	err := scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role), p.Department, p.StudentID, p.Phone), &u)
	if database.IsUniqueViolation(err, "") {
		return nil, apperr.Conflict("email %s is already registered", email)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetRole changes a user's role.
func (r *Repository) SetRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	var u models.User
	err := scanUser(r.pool.QueryRow(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, string(role)), &u)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes a user. Their registrations are withdrawn first so event
// counters stay consistent; users who still organize events cannot be deleted.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var organized int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE organizer_id = $1`, id).Scan(&organized); err != nil {
		return err
	}
	if organized > 0 {
		return apperr.PreconditionFailed("user organizes %d events; reassign or delete them first", organized)
	}
	const release = `UPDATE events e
		SET registered_count = e.registered_count - 1,
			attended_count = e.attended_count - CASE WHEN r.attended THEN 1 ELSE 0 END,
			updated_at = NOW()
		FROM registrations r
		WHERE r.event_id = e.id AND r.user_id = $1`
	if _, err := tx.Exec(ctx, release, id); err != nil {
		return fmt.Errorf("release registrations: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM registrations WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("delete registrations: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user", id)
	}
	return tx.Commit(ctx)
}
