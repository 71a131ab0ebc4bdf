package models

import (
	"time"

	"github.com/google/uuid"
)

// ResourceType is a category of reusable asset with a shared pool.
// 0 <= AvailableQuantity <= TotalQuantity always holds.
type ResourceType struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	CreatedAt         time.Time `json:"created_at"`
}

// Allocation assigns a quantity of one resource type to one event.
// There is at most one allocation per (EventID, ResourceTypeID).
type Allocation struct {
	ID               uuid.UUID  `json:"id"`
	EventID          uuid.UUID  `json:"event_id"`
	ResourceTypeID   uuid.UUID  `json:"resource_type_id"`
	ResourceTypeName string     `json:"resource_type_name,omitempty"`
	Quantity         int        `json:"quantity"`
	AllocatedBy      *uuid.UUID `json:"allocated_by,omitempty"`
	AllocatedAt      time.Time  `json:"allocated_at"`
	Notes            string     `json:"notes,omitempty"`
}

// ResourceRequestStatus is the review state of a resource request.
type ResourceRequestStatus string

const (
	RequestStatusPending  ResourceRequestStatus = "pending"
	RequestStatusApproved ResourceRequestStatus = "approved"
	RequestStatusRejected ResourceRequestStatus = "rejected"
)

// ResourceRequest is an organizer's ask for resources. It is informational and never allocates.
type ResourceRequest struct {
	ID                uuid.UUID             `json:"id"`
	EventID           uuid.UUID             `json:"event_id"`
	ResourceTypeID    uuid.UUID             `json:"resource_type_id"`
	ResourceTypeName  string                `json:"resource_type_name,omitempty"`
	RequestedQuantity int                   `json:"requested_quantity"`
	Status            ResourceRequestStatus `json:"status"`
	Notes             string                `json:"notes,omitempty"`
	RequestedBy       uuid.UUID             `json:"requested_by"`
	RequestedAt       time.Time             `json:"requested_at"`
	ReviewedBy        *uuid.UUID            `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time            `json:"reviewed_at,omitempty"`
}
