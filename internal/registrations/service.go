// Package registrations is the attendance ledger: seats taken per event and
// who actually showed up. registered_count and attended_count on the event are
// only changed here, in the same transaction as the registration row.
package registrations

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

// TicketPrefix starts every attendance ticket payload.
const TicketPrefix = "attendance:"

// Notifier is told about new registrations after they commit.
type Notifier interface {
	Registered(ctx context.Context, r *models.Registration, e *models.Event)
}

// Service implements the registration ledger.
type Service struct {
	store    store.Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a registration service. notifier may be nil.
func NewService(st store.Store, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, notifier: notifier, logger: logger, now: time.Now}
}

// Ticket returns the check-in payload for a registration.
func Ticket(r *models.Registration) string {
	return TicketPrefix + r.ID.String()
}

// Register takes a seat at an approved event for the actor.
func (s *Service) Register(ctx context.Context, actor models.Actor, eventID uuid.UUID) (*models.Registration, error) {
	var (
		reg *models.Registration
		e   *models.Event
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e.Status != models.EventStatusApproved {
			return apperr.PreconditionFailed("registration is only open for approved events, this one is %s", e.Status)
		}
		if e.RegisteredCount >= e.Capacity {
			return apperr.Conflict("event is full: %d of %d seats taken", e.RegisteredCount, e.Capacity)
		}
		reg = &models.Registration{EventID: eventID, UserID: actor.ID}
		if err := tx.InsertRegistration(ctx, reg); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("already registered for %q", e.Title)
			}
			return err
		}
		if err := tx.AdjustEventCounts(ctx, eventID, 1, 0); err != nil {
			if errors.Is(err, store.ErrOutOfBounds) {
				return apperr.Conflict("event is full: %d of %d seats taken", e.Capacity, e.Capacity)
			}
			return err
		}
		e.RegisteredCount++
		reg.EventTitle, reg.EventDate = e.Title, e.Date
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("registered", zap.String("event_id", eventID.String()), zap.String("user_id", actor.ID.String()))
	if s.notifier != nil {
		s.notifier.Registered(ctx, reg, e)
	}
	return reg, nil
}

// Cancel gives up the actor's seat.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, eventID uuid.UUID) error {
	return s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockEvent(ctx, eventID); err != nil {
			return err
		}
		reg, err := tx.FindRegistration(ctx, eventID, actor.ID)
		if err != nil {
			return err
		}
		if reg == nil {
			return apperr.NotFound("registration for event", eventID)
		}
		return release(ctx, tx, reg)
	})
}

func release(ctx context.Context, tx store.Tx, reg *models.Registration) error {
	if err := tx.DeleteRegistration(ctx, reg.ID); err != nil {
		return err
	}
	attended := 0
	if reg.Attended {
		attended = -1
	}
	if err := tx.AdjustEventCounts(ctx, reg.EventID, -1, attended); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

// SetAttendance marks or clears attendance on a registration. Only the event
// organizer or an admin may do this.
func (s *Service) SetAttendance(ctx context.Context, actor models.Actor, registrationID uuid.UUID, attended bool) (*models.Registration, error) {
	var reg *models.Registration
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		peek, err := tx.GetRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		e, err := tx.LockEvent(ctx, peek.EventID)
		if err != nil {
			return err
		}
		if !actor.CanManage(e.OrganizerID) {
			return apperr.Forbidden("only the organizer or an admin can record attendance")
		}
		reg, err = tx.LockRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		return s.mark(ctx, tx, reg, attended)
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Service) mark(ctx context.Context, tx store.Tx, reg *models.Registration, attended bool) error {
	if reg.Attended == attended {
		return nil
	}
	var (
		at    *time.Time
		delta = -1
	)
	if attended {
		now := s.now().UTC()
		at, delta = &now, 1
	}
	if err := tx.SetAttendance(ctx, reg.ID, attended, at); err != nil {
		return err
	}
	if err := tx.AdjustEventCounts(ctx, reg.EventID, 0, delta); err != nil {
		return fmt.Errorf("adjust attended count: %w", err)
	}
	reg.Attended, reg.AttendedAt = attended, at
	return nil
}

// CheckIn marks attendance from a scanned ticket. Accepted payloads are
// "attendance:<registration id>" and the older "attendance:<event id>:<user id>".
func (s *Service) CheckIn(ctx context.Context, actor models.Actor, eventID uuid.UUID, ticket string) (*models.Registration, error) {
	regID, ticketEvent, userID, err := parseTicket(ticket)
	if err != nil {
		return nil, err
	}
	if ticketEvent != uuid.Nil && ticketEvent != eventID {
		return nil, apperr.Validation("ticket is for a different event")
	}
	var reg *models.Registration
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !actor.CanManage(e.OrganizerID) {
			return apperr.Forbidden("only the organizer or an admin can check in attendees")
		}
		if regID != uuid.Nil {
			reg, err = tx.LockRegistration(ctx, regID)
			if err != nil {
				return err
			}
			if reg.EventID != eventID {
				return apperr.Validation("ticket is for a different event")
			}
		} else {
			reg, err = tx.FindRegistration(ctx, eventID, userID)
			if err != nil {
				return err
			}
			if reg == nil {
				return apperr.NotFound("registration for user", userID)
			}
		}
		if reg.Attended {
			if reg.AttendedAt != nil {
				return apperr.Conflict("already checked in at %s", reg.AttendedAt.Format(time.RFC3339))
			}
			return apperr.Conflict("already checked in")
		}
		return s.mark(ctx, tx, reg, true)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("checked in", zap.String("event_id", eventID.String()), zap.String("registration_id", reg.ID.String()))
	return reg, nil
}

func parseTicket(ticket string) (regID, eventID, userID uuid.UUID, err error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(ticket), TicketPrefix)
	if !ok {
		return uuid.Nil, uuid.Nil, uuid.Nil, apperr.Validation("not an attendance ticket")
	}
	parts := strings.Split(body, ":")
	switch len(parts) {
	case 1:
		if regID, err = uuid.Parse(parts[0]); err == nil {
			return regID, uuid.Nil, uuid.Nil, nil
		}
	case 2:
		if eventID, err = uuid.Parse(parts[0]); err == nil {
			if userID, err = uuid.Parse(parts[1]); err == nil {
				return uuid.Nil, eventID, userID, nil
			}
		}
	}
	return uuid.Nil, uuid.Nil, uuid.Nil, apperr.Validation("malformed attendance ticket")
}

// ListMine returns the actor's registrations, newest first.
func (s *Service) ListMine(ctx context.Context, actor models.Actor) ([]models.Registration, error) {
	var list []models.Registration
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		list, err = tx.ListRegistrationsByUser(ctx, actor.ID)
		return err
	})
	if list == nil {
		list = []models.Registration{}
	}
	return list, err
}

// ListByEvent returns an event's registrations to its organizer or an admin.
func (s *Service) ListByEvent(ctx context.Context, actor models.Actor, eventID uuid.UUID) ([]models.Registration, error) {
	var list []models.Registration
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		e, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !actor.CanManage(e.OrganizerID) {
			return apperr.Forbidden("only the organizer or an admin can list registrations")
		}
		list, err = tx.ListRegistrationsByEvent(ctx, eventID)
		return err
	})
	if list == nil {
		list = []models.Registration{}
	}
	return list, err
}
