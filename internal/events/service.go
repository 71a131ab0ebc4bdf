// Package events owns the event lifecycle: scheduling conflict checks, creation,
// editing and the approval gate.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/store"
)

// Notifier is told about lifecycle changes after they commit.
type Notifier interface {
	EventChanged(ctx context.Context, kind models.NotificationType, e *models.Event)
}

// RequestInput is one resource request submitted with a new event.
type RequestInput struct {
	ResourceTypeID uuid.UUID `json:"resource_type_id" binding:"required"`
	Quantity       int       `json:"quantity" binding:"required"`
	Notes          string    `json:"notes"`
}

// CreateInput holds the fields of a new event.
type CreateInput struct {
	Title            string               `json:"title" binding:"required"`
	Description      string               `json:"description"`
	Date             string               `json:"date" binding:"required"`
	Time             string               `json:"time" binding:"required"`
	Venue            string               `json:"venue" binding:"required"`
	Category         models.EventCategory `json:"category" binding:"required"`
	Capacity         int                  `json:"capacity" binding:"required"`
	ImageURL         string               `json:"image_url"`
	ResourceRequests []RequestInput       `json:"resource_requests" binding:"omitempty,dive"`
}

// UpdateInput holds the editable fields of an event. Nil fields are left unchanged.
type UpdateInput struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Date        *string               `json:"date"`
	Time        *string               `json:"time"`
	Venue       *string               `json:"venue"`
	Category    *models.EventCategory `json:"category"`
	Capacity    *int                  `json:"capacity"`
	ImageURL    *string               `json:"image_url"`
}

// Created is the result of Create.
type Created struct {
	Event    *models.Event            `json:"event"`
	Requests []models.ResourceRequest `json:"resource_requests"`
}

// Service implements event operations on top of a transactional store.
type Service struct {
	store    store.Store
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates an event service. notifier may be nil.
func NewService(st store.Store, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, notifier: notifier, logger: logger}
}

func (s *Service) notify(ctx context.Context, kind models.NotificationType, e *models.Event) {
	if s.notifier != nil {
		s.notifier.EventChanged(ctx, kind, e)
	}
}

// Create checks the slot, then writes the pending event and its resource requests
// in one transaction.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*Created, error) {
	e := &models.Event{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Date:        in.Date,
		Time:        in.Time,
		Venue:       strings.TrimSpace(in.Venue),
		Category:    in.Category,
		Capacity:    in.Capacity,
		Status:      models.EventStatusPending,
		ImageURL:    in.ImageURL,
		OrganizerID: actor.ID,
	}
	if err := validateEvent(e); err != nil {
		return nil, err
	}
	reqs := make([]*models.ResourceRequest, 0, len(in.ResourceRequests))
	for _, r := range in.ResourceRequests {
		if r.Quantity <= 0 {
			return nil, apperr.Validation("requested quantity must be positive, got %d", r.Quantity)
		}
		reqs = append(reqs, &models.ResourceRequest{
			ResourceTypeID:    r.ResourceTypeID,
			RequestedQuantity: r.Quantity,
			Status:            models.RequestStatusPending,
			Notes:             r.Notes,
			RequestedBy:       actor.ID,
		})
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		conflict, err := findConflict(ctx, tx, e.Date, e.Venue, nil)
		if err != nil {
			return fmt.Errorf("check conflict: %w", err)
		}
		if conflict.HasConflict {
			return conflictError(conflict.ConflictingEventTitle, e.Venue, e.Date)
		}
		if err := tx.InsertEvent(ctx, e); err != nil {
			return err
		}
		if len(reqs) == 0 {
			return nil
		}
		for _, r := range reqs {
			r.EventID = e.ID
		}
		return tx.InsertResourceRequests(ctx, reqs)
	})
	if errors.Is(err, store.ErrSlotTaken) {
		return nil, s.slotTaken(ctx, e.Date, e.Venue, nil)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("venue", e.Venue), zap.String("date", e.Date))
	s.notify(ctx, models.NotifyEventCreated, e)

	out := &Created{Event: e, Requests: make([]models.ResourceRequest, 0, len(reqs))}
	for _, r := range reqs {
		out.Requests = append(out.Requests, *r)
	}
	return out, nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var e *models.Event
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.GetEvent(ctx, id)
		return err
	})
	return e, err
}

// List returns events matching f, ordered by date and time.
func (s *Service) List(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	var list []models.Event
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		list, err = tx.ListEvents(ctx, f)
		return err
	})
	if list == nil {
		list = []models.Event{}
	}
	return list, err
}

// Update edits an event. When date or venue is supplied the slot is re-checked
// with the event itself excluded, so re-saving unchanged values never conflicts.
func (s *Service) Update(ctx context.Context, actor models.Actor, id uuid.UUID, in UpdateInput) (*models.Event, error) {
	var (
		e         *models.Event
		slotMoved bool
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(e.OrganizerID) {
			return apperr.Forbidden("only the organizer or an admin can edit this event")
		}
		if e.Status.Terminal() {
			return apperr.PreconditionFailed("event is %s and can no longer be edited", e.Status)
		}
		applyUpdate(e, in)
		if err := validateEvent(e); err != nil {
			return err
		}
		if e.Capacity < e.RegisteredCount {
			return apperr.Validation("capacity %d is below the %d students already registered", e.Capacity, e.RegisteredCount)
		}
		if in.Date != nil || in.Venue != nil {
			slotMoved = true
			conflict, err := findConflict(ctx, tx, e.Date, e.Venue, &e.ID)
			if err != nil {
				return fmt.Errorf("check conflict: %w", err)
			}
			if conflict.HasConflict {
				return conflictError(conflict.ConflictingEventTitle, e.Venue, e.Date)
			}
		}
		return tx.UpdateEvent(ctx, e)
	})
	if errors.Is(err, store.ErrSlotTaken) && slotMoved {
		return nil, s.slotTaken(ctx, e.Date, e.Venue, &id)
	}
	if err != nil {
		return nil, err
	}
	s.notify(ctx, models.NotifyEventUpdated, e)
	return e, nil
}

func applyUpdate(e *models.Event, in UpdateInput) {
	if in.Title != nil {
		e.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Date != nil {
		e.Date = *in.Date
	}
	if in.Time != nil {
		e.Time = *in.Time
	}
	if in.Venue != nil {
		e.Venue = strings.TrimSpace(*in.Venue)
	}
	if in.Category != nil {
		e.Category = *in.Category
	}
	if in.Capacity != nil {
		e.Capacity = *in.Capacity
	}
	if in.ImageURL != nil {
		e.ImageURL = *in.ImageURL
	}
}

// SetImage stores the public URL of an uploaded event image.
func (s *Service) SetImage(ctx context.Context, actor models.Actor, id uuid.UUID, url string) (*models.Event, error) {
	return s.Update(ctx, actor, id, UpdateInput{ImageURL: &url})
}

// ApprovalNeedsResources is the precondition message of the approval gate.
const ApprovalNeedsResources = "resources must be allocated before approving the event: it has 0 resource allocations, allocate at least one resource first"

// SetStatus is the admin review step: approve or reject a pending event.
// Approval requires at least one resource allocation; the check and the status
// write happen under the event row lock so a concurrent deallocation cannot
// slip between them.
func (s *Service) SetStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status models.EventStatus) (*models.Event, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only admins can review events")
	}
	if status != models.EventStatusApproved && status != models.EventStatusRejected {
		return nil, apperr.Validation("status must be approved or rejected, got %q", status)
	}
	return s.transition(ctx, id, status, nil)
}

// Cancel withdraws a pending or approved event and returns its resources to the pool.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Event, error) {
	return s.transition(ctx, id, models.EventStatusCancelled, func(e *models.Event) error {
		if !actor.CanManage(e.OrganizerID) {
			return apperr.Forbidden("only the organizer or an admin can cancel this event")
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, next models.EventStatus, authorize func(*models.Event) error) (*models.Event, error) {
	var (
		e        *models.Event
		released []models.Allocation
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(e); err != nil {
				return err
			}
		}
		if !e.Status.CanTransition(next) {
			return apperr.PreconditionFailed("cannot change event status from %s to %s", e.Status, next)
		}
		if next == models.EventStatusApproved {
			n, err := tx.CountAllocations(ctx, id)
			if err != nil {
				return fmt.Errorf("count allocations: %w", err)
			}
			if n == 0 {
				return apperr.PreconditionFailed(ApprovalNeedsResources)
			}
		}
		if next.Terminal() {
			if released, err = releaseAllocations(ctx, tx, id); err != nil {
				return err
			}
		}
		if err := tx.SetEventStatus(ctx, id, next); err != nil {
			return err
		}
		e.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("event status changed",
		zap.String("event_id", id.String()), zap.String("status", string(next)), zap.Int("released_allocations", len(released)))

	switch next {
	case models.EventStatusApproved:
		s.notify(ctx, models.NotifyEventApproved, e)
	case models.EventStatusRejected:
		s.notify(ctx, models.NotifyEventRejected, e)
	case models.EventStatusCancelled:
		s.notify(ctx, models.NotifyEventCancelled, e)
	}
	return e, nil
}

// Delete removes an event after returning its allocations to the pool.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	return s.store.InTx(ctx, func(tx store.Tx) error {
		e, err := tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(e.OrganizerID) {
			return apperr.Forbidden("only the organizer or an admin can delete this event")
		}
		if _, err := releaseAllocations(ctx, tx, id); err != nil {
			return err
		}
		return tx.DeleteEvent(ctx, id)
	})
}

// releaseAllocations deletes every allocation of the event and restores the
// stored quantities. Caller holds the event row lock.
func releaseAllocations(ctx context.Context, tx store.Tx, eventID uuid.UUID) ([]models.Allocation, error) {
	allocs, err := tx.ListAllocations(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	for _, a := range allocs {
		if _, err := tx.LockResourceType(ctx, a.ResourceTypeID); err != nil {
			return nil, err
		}
		if err := tx.DeleteAllocation(ctx, a.ID); err != nil {
			return nil, err
		}
		if _, err := tx.AdjustAvailable(ctx, a.ResourceTypeID, a.Quantity); err != nil {
			return nil, fmt.Errorf("restore %d %s: %w", a.Quantity, a.ResourceTypeName, err)
		}
	}
	return allocs, nil
}

func validateEvent(e *models.Event) error {
	if e.Title == "" {
		return apperr.Validation("title is required")
	}
	if err := validateSlot(e.Date, e.Venue); err != nil {
		return err
	}
	if _, err := time.Parse(models.TimeLayout, e.Time); err != nil {
		return apperr.Validation("time must be HH:MM, got %q", e.Time)
	}
	if !e.Category.Valid() {
		return apperr.Validation("unknown category %q", e.Category)
	}
	if e.Capacity <= 0 {
		return apperr.Validation("capacity must be positive, got %d", e.Capacity)
	}
	return nil
}

// validateFilter rejects date bounds the store cannot compare.
func validateFilter(f models.EventFilter) error {
	var from, to time.Time
	var err error
	if f.DateFrom != "" {
		if from, err = time.Parse(models.DateLayout, f.DateFrom); err != nil {
			return apperr.Validation("date_from must be YYYY-MM-DD, got %q", f.DateFrom)
		}
	}
	if f.DateTo != "" {
		if to, err = time.Parse(models.DateLayout, f.DateTo); err != nil {
			return apperr.Validation("date_to must be YYYY-MM-DD, got %q", f.DateTo)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return apperr.Validation("date_to %s is before date_from %s", f.DateTo, f.DateFrom)
	}
	return nil
}
