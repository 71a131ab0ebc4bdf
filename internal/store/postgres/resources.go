package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/store"
	"github.com/unievents/backend/pkg/database"
)

const resourceTypeColumns = `id, name, COALESCE(description,''), total_quantity, available_quantity, created_at`

func scanResourceType(row pgx.Row, rt *models.ResourceType) error {
	return row.Scan(&rt.ID, &rt.Name, &rt.Description, &rt.TotalQuantity, &rt.AvailableQuantity, &rt.CreatedAt)
}

func (t *tx) ListResourceTypes(ctx context.Context) ([]models.ResourceType, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+resourceTypeColumns+` FROM resource_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ResourceType
	for rows.Next() {
		var rt models.ResourceType
		if err := scanResourceType(rows, &rt); err != nil {
			return nil, err
		}
		list = append(list, rt)
	}
	return list, rows.Err()
}

func (t *tx) GetResourceType(ctx context.Context, id uuid.UUID) (*models.ResourceType, error) {
	var rt models.ResourceType
	if err := scanResourceType(t.tx.QueryRow(ctx, `SELECT `+resourceTypeColumns+` FROM resource_types WHERE id = $1`, id), &rt); err != nil {
		return nil, noRows(err, "resource type", id)
	}
	return &rt, nil
}

func (t *tx) LockResourceType(ctx context.Context, id uuid.UUID) (*models.ResourceType, error) {
	var rt models.ResourceType
	if err := scanResourceType(t.tx.QueryRow(ctx, `SELECT `+resourceTypeColumns+` FROM resource_types WHERE id = $1 FOR UPDATE`, id), &rt); err != nil {
		return nil, noRows(err, "resource type", id)
	}
	return &rt, nil
}

func (t *tx) InsertResourceType(ctx context.Context, rt *models.ResourceType) error {
	const q = `INSERT INTO resource_types (name, description, total_quantity, available_quantity)
		VALUES ($1, NULLIF($2,''), $3, $4)
		RETURNING id, created_at`
	err := t.tx.QueryRow(ctx, q, rt.Name, rt.Description, rt.TotalQuantity, rt.AvailableQuantity).Scan(&rt.ID, &rt.CreatedAt)
	if database.IsUniqueViolation(err, constraintResourceName) {
		return store.ErrDuplicate
	}
	return err
}

func (t *tx) UpdateResourceType(ctx context.Context, rt *models.ResourceType) error {
	const q = `UPDATE resource_types SET name = $2, description = NULLIF($3,''), total_quantity = $4, available_quantity = $5
		WHERE id = $1`
	tag, err := t.tx.Exec(ctx, q, rt.ID, rt.Name, rt.Description, rt.TotalQuantity, rt.AvailableQuantity)
	switch {
	case database.IsUniqueViolation(err, constraintResourceName):
		return store.ErrDuplicate
	case database.IsCheckViolation(err, ""):
		return store.ErrOutOfBounds
	case err != nil:
		return err
	case tag.RowsAffected() == 0:
		return apperr.NotFound("resource type", rt.ID)
	}
	return nil
}

// AdjustAvailable is a guarded update: the WHERE clause keeps the pool inside
// [0, total_quantity] even if a caller skipped its own check.
func (t *tx) AdjustAvailable(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	const q = `UPDATE resource_types SET available_quantity = available_quantity + $2
		WHERE id = $1 AND available_quantity + $2 BETWEEN 0 AND total_quantity
		RETURNING available_quantity`
	var available int
	err := t.tx.QueryRow(ctx, q, id, delta).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, store.ErrOutOfBounds
	}
	return available, err
}

const allocationColumns = `a.id, a.event_id, a.resource_type_id, rt.name, a.quantity, a.allocated_by, a.allocated_at, COALESCE(a.notes,'')`

func scanAllocation(row pgx.Row, a *models.Allocation) error {
	return row.Scan(&a.ID, &a.EventID, &a.ResourceTypeID, &a.ResourceTypeName, &a.Quantity, &a.AllocatedBy, &a.AllocatedAt, &a.Notes)
}

func (t *tx) FindAllocation(ctx context.Context, eventID, resourceTypeID uuid.UUID) (*models.Allocation, error) {
	const q = `SELECT ` + allocationColumns + ` FROM event_resources a
		JOIN resource_types rt ON rt.id = a.resource_type_id
		WHERE a.event_id = $1 AND a.resource_type_id = $2
		FOR UPDATE OF a`
	var a models.Allocation
	err := scanAllocation(t.tx.QueryRow(ctx, q, eventID, resourceTypeID), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *tx) GetAllocation(ctx context.Context, id uuid.UUID) (*models.Allocation, error) {
	const q = `SELECT ` + allocationColumns + ` FROM event_resources a
		JOIN resource_types rt ON rt.id = a.resource_type_id
		WHERE a.id = $1`
	var a models.Allocation
	if err := scanAllocation(t.tx.QueryRow(ctx, q, id), &a); err != nil {
		return nil, noRows(err, "allocation", id)
	}
	return &a, nil
}

func (t *tx) LockAllocation(ctx context.Context, id uuid.UUID) (*models.Allocation, error) {
	const q = `SELECT ` + allocationColumns + ` FROM event_resources a
		JOIN resource_types rt ON rt.id = a.resource_type_id
		WHERE a.id = $1
		FOR UPDATE OF a`
	var a models.Allocation
	if err := scanAllocation(t.tx.QueryRow(ctx, q, id), &a); err != nil {
		return nil, noRows(err, "allocation", id)
	}
	return &a, nil
}

// UpsertAllocation replaces the quantity of an existing (event, resource type) pair.
func (t *tx) UpsertAllocation(ctx context.Context, a *models.Allocation) error {
	const q = `INSERT INTO event_resources (event_id, resource_type_id, quantity, allocated_by, notes)
		VALUES ($1, $2, $3, $4, NULLIF($5,''))
		ON CONFLICT ON CONSTRAINT ` + constraintAllocationKey + ` DO UPDATE
		SET quantity = EXCLUDED.quantity, allocated_by = EXCLUDED.allocated_by, notes = EXCLUDED.notes, allocated_at = NOW()
		RETURNING id, allocated_at`
	return t.tx.QueryRow(ctx, q, a.EventID, a.ResourceTypeID, a.Quantity, a.AllocatedBy, a.Notes).Scan(&a.ID, &a.AllocatedAt)
}

func (t *tx) DeleteAllocation(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM event_resources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("allocation", id)
	}
	return nil
}

func (t *tx) ListAllocations(ctx context.Context, eventID uuid.UUID) ([]models.Allocation, error) {
	const q = `SELECT ` + allocationColumns + ` FROM event_resources a
		JOIN resource_types rt ON rt.id = a.resource_type_id
		WHERE a.event_id = $1
		ORDER BY rt.name`
	rows, err := t.tx.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Allocation
	for rows.Next() {
		var a models.Allocation
		if err := scanAllocation(rows, &a); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (t *tx) CountAllocations(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM event_resources WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}
