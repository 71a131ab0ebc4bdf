// Package store declares the transactional persistence contract shared by the
// event, resource and registration services.
//
// Every mutation of shared counters (resource availability, event registration
// counts, event status) happens inside Store.InTx. Implementations must run fn in
// a single transaction, roll back when fn returns an error, and honour the Lock*
// methods as row locks held until commit. Callers take locks in the order
// event -> resource type -> allocation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/unievents/backend/internal/models"
)

// Store-level errors. Missing rows are reported as apperr.NotFound and
// infrastructure failures as apperr.StoreUnavailable.
var (
	// ErrSlotTaken means another pending or approved event holds the (date, venue) slot.
	ErrSlotTaken = errors.New("store: venue slot already taken")
	// ErrDuplicate means a unique key other than the venue slot was violated.
	ErrDuplicate = errors.New("store: duplicate row")
	// ErrOutOfBounds means a guarded counter update would leave its allowed range.
	ErrOutOfBounds = errors.New("store: quantity out of bounds")
)

// Store runs units of work.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of row operations available inside one unit of work.
type Tx interface {
	EventTx
	ResourceTx
	RequestTx
	RegistrationTx
}

// EventTx covers the events table.
type EventTx interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	LockEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error)
	// FindSlotConflict returns one pending or approved event at (date, venue) other
	// than excludeID, or nil when the slot is free.
	FindSlotConflict(ctx context.Context, date, venue string, excludeID *uuid.UUID) (*models.Event, error)
	// InsertEvent assigns ID and timestamps. Returns ErrSlotTaken when the slot is held.
	InsertEvent(ctx context.Context, e *models.Event) error
	// UpdateEvent writes the editable fields. Returns ErrSlotTaken when the new slot is held.
	UpdateEvent(ctx context.Context, e *models.Event) error
	SetEventStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	// AdjustEventCounts adds the deltas to registered_count and attended_count.
	// Returns ErrOutOfBounds when the result would break 0 <= attended <= registered <= capacity.
	AdjustEventCounts(ctx context.Context, id uuid.UUID, registeredDelta, attendedDelta int) error
}

// ResourceTx covers resource_types and event_resources.
type ResourceTx interface {
	ListResourceTypes(ctx context.Context) ([]models.ResourceType, error)
	GetResourceType(ctx context.Context, id uuid.UUID) (*models.ResourceType, error)
	LockResourceType(ctx context.Context, id uuid.UUID) (*models.ResourceType, error)
	// InsertResourceType returns ErrDuplicate when the name is taken.
	InsertResourceType(ctx context.Context, rt *models.ResourceType) error
	UpdateResourceType(ctx context.Context, rt *models.ResourceType) error
	// AdjustAvailable adds delta to available_quantity and returns the new value.
	// Returns ErrOutOfBounds when the result would leave [0, total_quantity].
	AdjustAvailable(ctx context.Context, id uuid.UUID, delta int) (int, error)

	// FindAllocation locks and returns the allocation for the pair, or nil.
	FindAllocation(ctx context.Context, eventID, resourceTypeID uuid.UUID) (*models.Allocation, error)
	// GetAllocation reads without locking; use it to learn the event before taking locks in order.
	GetAllocation(ctx context.Context, id uuid.UUID) (*models.Allocation, error)
	LockAllocation(ctx context.Context, id uuid.UUID) (*models.Allocation, error)
	// UpsertAllocation inserts or replaces the quantity for (EventID, ResourceTypeID).
	UpsertAllocation(ctx context.Context, a *models.Allocation) error
	DeleteAllocation(ctx context.Context, id uuid.UUID) error
	ListAllocations(ctx context.Context, eventID uuid.UUID) ([]models.Allocation, error)
	CountAllocations(ctx context.Context, eventID uuid.UUID) (int, error)
}

// RequestTx covers event_resource_requests.
type RequestTx interface {
	InsertResourceRequests(ctx context.Context, reqs []*models.ResourceRequest) error
	// ListResourceRequests lists newest first; a nil eventID lists all events.
	ListResourceRequests(ctx context.Context, eventID *uuid.UUID) ([]models.ResourceRequest, error)
	LockResourceRequest(ctx context.Context, id uuid.UUID) (*models.ResourceRequest, error)
	SetResourceRequestStatus(ctx context.Context, id uuid.UUID, status models.ResourceRequestStatus, reviewer uuid.UUID, at time.Time) error
}

// RegistrationTx covers registrations.
type RegistrationTx interface {
	// InsertRegistration returns ErrDuplicate when the user is already registered.
	InsertRegistration(ctx context.Context, r *models.Registration) error
	// GetRegistration reads without locking; use it to learn the event before taking locks in order.
	GetRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	LockRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// FindRegistration locks and returns the user's registration for the event, or nil.
	FindRegistration(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error)
	DeleteRegistration(ctx context.Context, id uuid.UUID) error
	SetAttendance(ctx context.Context, id uuid.UUID, attended bool, at *time.Time) error
	ListRegistrationsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error)
	ListRegistrationsByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
}
