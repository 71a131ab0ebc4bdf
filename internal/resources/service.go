// Package resources is the resource inventory and allocation engine.
//
// available_quantity is the only counter with many writers. Every change to it
// runs in one store transaction holding the resource type row lock, and the
// store guards the write itself with 0 <= available <= total.
package resources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/store"
)

// AllocateInput is an allocation request. Quantity replaces any existing
// allocation of the same resource type to the same event.
type AllocateInput struct {
	ResourceTypeID uuid.UUID `json:"resource_type_id" binding:"required"`
	Quantity       int       `json:"quantity" binding:"required"`
	Notes          string    `json:"notes"`
}

// DeallocateInput identifies the allocation being released. ResourceTypeID and
// Quantity must match the stored row.
type DeallocateInput struct {
	ResourceTypeID uuid.UUID `json:"resource_type_id" binding:"required"`
	Quantity       int       `json:"quantity" binding:"required"`
}

// TypeInput creates a resource type.
type TypeInput struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	TotalQuantity int    `json:"total_quantity"`
}

// TypeUpdate edits a resource type. Nil fields are left unchanged.
type TypeUpdate struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	TotalQuantity *int    `json:"total_quantity"`
}

// Service implements the allocation engine.
type Service struct {
	store  store.Store
	logger *zap.Logger
}

// NewService creates a resource service.
func NewService(st store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// ListTypes returns every resource type ordered by name.
func (s *Service) ListTypes(ctx context.Context) ([]models.ResourceType, error) {
	var list []models.ResourceType
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		list, err = tx.ListResourceTypes(ctx)
		return err
	})
	if list == nil {
		list = []models.ResourceType{}
	}
	return list, err
}

// GetType returns one resource type.
func (s *Service) GetType(ctx context.Context, id uuid.UUID) (*models.ResourceType, error) {
	var rt *models.ResourceType
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		rt, err = tx.GetResourceType(ctx, id)
		return err
	})
	return rt, err
}

// CreateType adds a resource type with its whole pool available.
func (s *Service) CreateType(ctx context.Context, in TypeInput) (*models.ResourceType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if in.TotalQuantity < 0 {
		return nil, apperr.Validation("total quantity must not be negative, got %d", in.TotalQuantity)
	}
	rt := &models.ResourceType{
		Name:              name,
		Description:       in.Description,
		TotalQuantity:     in.TotalQuantity,
		AvailableQuantity: in.TotalQuantity,
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertResourceType(ctx, rt)
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict("resource type %q already exists", name)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("resource type created", zap.String("resource_type_id", rt.ID.String()), zap.Int("total", rt.TotalQuantity))
	return rt, nil
}

// UpdateType edits a resource type. Changing the total shifts the available
// count by the same amount; shrinking below what is currently allocated fails.
func (s *Service) UpdateType(ctx context.Context, id uuid.UUID, in TypeUpdate) (*models.ResourceType, error) {
	if in.TotalQuantity != nil && *in.TotalQuantity < 0 {
		return nil, apperr.Validation("total quantity must not be negative, got %d", *in.TotalQuantity)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Validation("name must not be empty")
	}
	var rt *models.ResourceType
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		rt, err = tx.LockResourceType(ctx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			rt.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			rt.Description = *in.Description
		}
		if in.TotalQuantity != nil {
			allocated := rt.TotalQuantity - rt.AvailableQuantity
			if *in.TotalQuantity < allocated {
				return apperr.PreconditionFailed("cannot reduce %s to %d: %d are currently allocated", rt.Name, *in.TotalQuantity, allocated)
			}
			rt.AvailableQuantity += *in.TotalQuantity - rt.TotalQuantity
			rt.TotalQuantity = *in.TotalQuantity
		}
		return tx.UpdateResourceType(ctx, rt)
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict("resource type %q already exists", rt.Name)
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// ListAllocations returns the allocations of an event with resource type names.
func (s *Service) ListAllocations(ctx context.Context, eventID uuid.UUID) ([]models.Allocation, error) {
	var list []models.Allocation
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return err
		}
		var err error
		list, err = tx.ListAllocations(ctx, eventID)
		return err
	})
	if list == nil {
		list = []models.Allocation{}
	}
	return list, err
}

// Allocate assigns quantity units of a resource type to an event. An existing
// allocation for the same pair is replaced, so the pool moves by the
// difference between the old and the new quantity.
func (s *Service) Allocate(ctx context.Context, actor models.Actor, eventID uuid.UUID, in AllocateInput) (*models.Allocation, error) {
	if in.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive, got %d", in.Quantity)
	}
	var (
		alloc     *models.Allocation
		available int
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e.Status.Terminal() {
			return apperr.PreconditionFailed("cannot allocate resources to a %s event", e.Status)
		}
		rt, err := tx.LockResourceType(ctx, in.ResourceTypeID)
		if err != nil {
			return err
		}
		prior := 0
		existing, err := tx.FindAllocation(ctx, eventID, rt.ID)
		if err != nil {
			return fmt.Errorf("find allocation: %w", err)
		}
		if existing != nil {
			prior = existing.Quantity
		}
		if in.Quantity > rt.AvailableQuantity+prior {
			return apperr.InsufficientResource(rt.Name, rt.AvailableQuantity+prior, in.Quantity)
		}

		alloc = &models.Allocation{
			EventID:        eventID,
			ResourceTypeID: rt.ID,
			Quantity:       in.Quantity,
			AllocatedBy:    &actor.ID,
			Notes:          in.Notes,
		}
		if err := tx.UpsertAllocation(ctx, alloc); err != nil {
			return err
		}
		alloc.ResourceTypeName = rt.Name
		available, err = tx.AdjustAvailable(ctx, rt.ID, prior-in.Quantity)
		if errors.Is(err, store.ErrOutOfBounds) {
			return apperr.InsufficientResource(rt.Name, rt.AvailableQuantity+prior, in.Quantity)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("resource allocated",
		zap.String("event_id", eventID.String()),
		zap.String("resource_type_id", in.ResourceTypeID.String()),
		zap.Int("quantity", in.Quantity),
		zap.Int("available", available))
	return alloc, nil
}

// Deallocate deletes an allocation and returns its stored quantity to the pool.
// The last allocation of an approved event cannot be removed.
func (s *Service) Deallocate(ctx context.Context, allocationID uuid.UUID, in DeallocateInput) error {
	if in.Quantity <= 0 {
		return apperr.Validation("quantity must be positive, got %d", in.Quantity)
	}
	var restored int
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		peek, err := tx.GetAllocation(ctx, allocationID)
		if err != nil {
			return err
		}
		e, err := tx.LockEvent(ctx, peek.EventID)
		if err != nil {
			return err
		}
		if _, err := tx.LockResourceType(ctx, peek.ResourceTypeID); err != nil {
			return err
		}
		a, err := tx.LockAllocation(ctx, allocationID)
		if err != nil {
			return err
		}
		if a.ResourceTypeID != in.ResourceTypeID {
			return apperr.Validation("allocation %s is for resource type %s, not %s", a.ID, a.ResourceTypeID, in.ResourceTypeID)
		}
		if a.Quantity != in.Quantity {
			return apperr.Validation("allocation %s holds %d %s, not %d", a.ID, a.Quantity, a.ResourceTypeName, in.Quantity)
		}
		if e.Status == models.EventStatusApproved {
			n, err := tx.CountAllocations(ctx, e.ID)
			if err != nil {
				return fmt.Errorf("count allocations: %w", err)
			}
			if n <= 1 {
				return apperr.PreconditionFailed("cannot remove the last resource allocation of approved event %q", e.Title)
			}
		}
		if err := tx.DeleteAllocation(ctx, a.ID); err != nil {
			return err
		}
		restored, err = tx.AdjustAvailable(ctx, a.ResourceTypeID, a.Quantity)
		if err != nil {
			return fmt.Errorf("restore %d %s: %w", a.Quantity, a.ResourceTypeName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("resource deallocated",
		zap.String("allocation_id", allocationID.String()),
		zap.String("resource_type_id", in.ResourceTypeID.String()),
		zap.Int("available", restored))
	return nil
}
