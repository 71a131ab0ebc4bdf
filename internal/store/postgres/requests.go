package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/database"
)

const requestColumns = `r.id, r.event_id, r.resource_type_id, rt.name, r.requested_quantity, r.status, COALESCE(r.notes,''),
	r.requested_by, r.requested_at, r.reviewed_by, r.reviewed_at`

func scanRequest(row pgx.Row, r *models.ResourceRequest) error {
	return row.Scan(&r.ID, &r.EventID, &r.ResourceTypeID, &r.ResourceTypeName, &r.RequestedQuantity, &r.Status, &r.Notes,
		&r.RequestedBy, &r.RequestedAt, &r.ReviewedBy, &r.ReviewedAt)
}

// InsertResourceRequests writes all requests with one round trip and fills in
// their resource type names.
func (t *tx) InsertResourceRequests(ctx context.Context, reqs []*models.ResourceRequest) error {
	const q = `WITH ins AS (
			INSERT INTO event_resource_requests (event_id, resource_type_id, requested_quantity, status, notes, requested_by)
			VALUES ($1, $2, $3, $4, NULLIF($5,''), $6)
			RETURNING id, resource_type_id, requested_at
		)
		SELECT ins.id, ins.requested_at, rt.name FROM ins JOIN resource_types rt ON rt.id = ins.resource_type_id`
	batch := &pgx.Batch{}
	for _, r := range reqs {
		batch.Queue(q, r.EventID, r.ResourceTypeID, r.RequestedQuantity, string(r.Status), r.Notes, r.RequestedBy)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for _, r := range reqs {
		if err := br.QueryRow().Scan(&r.ID, &r.RequestedAt, &r.ResourceTypeName); err != nil {
			if database.IsForeignKeyViolation(err) {
				return apperr.NotFound("resource type", r.ResourceTypeID)
			}
			return err
		}
	}
	return br.Close()
}

func (t *tx) ListResourceRequests(ctx context.Context, eventID *uuid.UUID) ([]models.ResourceRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM event_resource_requests r
		JOIN resource_types rt ON rt.id = r.resource_type_id
		WHERE ($1::uuid IS NULL OR r.event_id = $1)
		ORDER BY r.requested_at DESC`
	rows, err := t.tx.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ResourceRequest
	for rows.Next() {
		var r models.ResourceRequest
		if err := scanRequest(rows, &r); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (t *tx) LockResourceRequest(ctx context.Context, id uuid.UUID) (*models.ResourceRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM event_resource_requests r
		JOIN resource_types rt ON rt.id = r.resource_type_id
		WHERE r.id = $1
		FOR UPDATE OF r`
	var r models.ResourceRequest
	if err := scanRequest(t.tx.QueryRow(ctx, q, id), &r); err != nil {
		return nil, noRows(err, "resource request", id)
	}
	return &r, nil
}

func (t *tx) SetResourceRequestStatus(ctx context.Context, id uuid.UUID, status models.ResourceRequestStatus, reviewer uuid.UUID, at time.Time) error {
	const q = `UPDATE event_resource_requests SET status = $2, reviewed_by = $3, reviewed_at = $4 WHERE id = $1`
	tag, err := t.tx.Exec(ctx, q, id, string(status), reviewer, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("resource request", id)
	}
	return nil
}
