// Package resourcerequests keeps the organizer-submitted resource requests.
// Reviewing a request only records the decision; allocation is a separate
// admin action in package resources.
package resourcerequests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/store"
)

// Item is one requested resource.
type Item struct {
	ResourceTypeID uuid.UUID `json:"resource_type_id" binding:"required"`
	Quantity       int       `json:"quantity" binding:"required"`
	Notes          string    `json:"notes"`
}

// Service implements the request workflow.
type Service struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a resource request service.
func NewService(st store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger, now: time.Now}
}

// Submit adds pending requests for an event owned by the actor.
func (s *Service) Submit(ctx context.Context, actor models.Actor, eventID uuid.UUID, items []Item) ([]models.ResourceRequest, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("at least one resource request is required")
	}
	reqs := make([]*models.ResourceRequest, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, apperr.Validation("requested quantity must be positive, got %d", it.Quantity)
		}
		reqs = append(reqs, &models.ResourceRequest{
			EventID:           eventID,
			ResourceTypeID:    it.ResourceTypeID,
			RequestedQuantity: it.Quantity,
			Status:            models.RequestStatusPending,
			Notes:             it.Notes,
			RequestedBy:       actor.ID,
		})
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		e, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !actor.CanManage(e.OrganizerID) {
			return apperr.Forbidden("only the organizer or an admin can request resources for this event")
		}
		if e.Status.Terminal() {
			return apperr.PreconditionFailed("cannot request resources for a %s event", e.Status)
		}
		return tx.InsertResourceRequests(ctx, reqs)
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.ResourceRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, *r)
	}
	return out, nil
}

// List returns requests newest first. A nil eventID lists every event.
func (s *Service) List(ctx context.Context, eventID *uuid.UUID) ([]models.ResourceRequest, error) {
	var list []models.ResourceRequest
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if eventID != nil {
			if _, err := tx.GetEvent(ctx, *eventID); err != nil {
				return err
			}
		}
		var err error
		list, err = tx.ListResourceRequests(ctx, eventID)
		return err
	})
	if list == nil {
		list = []models.ResourceRequest{}
	}
	return list, err
}

// Review records an admin decision on a pending request.
func (s *Service) Review(ctx context.Context, actor models.Actor, id uuid.UUID, status models.ResourceRequestStatus) (*models.ResourceRequest, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only admins can review resource requests")
	}
	if status != models.RequestStatusApproved && status != models.RequestStatusRejected {
		return nil, apperr.Validation("status must be approved or rejected, got %q", status)
	}
	var r *models.ResourceRequest
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.LockResourceRequest(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != models.RequestStatusPending {
			return apperr.PreconditionFailed("resource request is already %s", r.Status)
		}
		at := s.now().UTC()
		if err := tx.SetResourceRequestStatus(ctx, id, status, actor.ID, at); err != nil {
			return err
		}
		r.Status, r.ReviewedBy, r.ReviewedAt = status, &actor.ID, &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("resource request reviewed", zap.String("request_id", id.String()), zap.String("status", string(status)))
	return r, nil
}
