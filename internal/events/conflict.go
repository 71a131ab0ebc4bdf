package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/store"
)

// CheckConflict reports whether a pending or approved event other than excludeID
// already holds venue on date. Venue matching is exact. Read-only.
func (s *Service) CheckConflict(ctx context.Context, date, venue string, excludeID *uuid.UUID) (models.ConflictResult, error) {
	if err := validateSlot(date, venue); err != nil {
		return models.ConflictResult{}, err
	}
	var result models.ConflictResult
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		result, err = findConflict(ctx, tx, date, venue, excludeID)
		return err
	})
	if err != nil {
		return models.ConflictResult{}, err
	}
	return result, nil
}

func findConflict(ctx context.Context, tx store.Tx, date, venue string, excludeID *uuid.UUID) (models.ConflictResult, error) {
	holder, err := tx.FindSlotConflict(ctx, date, venue, excludeID)
	if err != nil {
		return models.ConflictResult{}, err
	}
	if holder == nil {
		return models.ConflictResult{}, nil
	}
	id := holder.ID
	return models.ConflictResult{HasConflict: true, ConflictingEventID: &id, ConflictingEventTitle: holder.Title}, nil
}

func conflictError(title, venue, date string) error {
	return apperr.Conflict("scheduling conflict: %q is already booked at %s on %s", title, venue, date)
}

// slotTaken builds the conflict error after the store rejected a write because a
// concurrent writer claimed the slot between our check and our insert.
func (s *Service) slotTaken(ctx context.Context, date, venue string, excludeID *uuid.UUID) error {
	res, err := s.CheckConflict(ctx, date, venue, excludeID)
	if err != nil || !res.HasConflict {
		return apperr.Conflict("scheduling conflict: %s is already booked on %s", venue, date)
	}
	return conflictError(res.ConflictingEventTitle, venue, date)
}

func validateSlot(date, venue string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return apperr.Validation("date must be YYYY-MM-DD, got %q", date)
	}
	if strings.TrimSpace(venue) == "" {
		return apperr.Validation("venue is required")
	}
	return nil
}
