// Package reminders sends "coming up" notifications for approved events and
// meetings a configurable number of days ahead.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/notifications"
	"github.com/unievents/backend/internal/store"
)

// Sender delivers a note to a list of users.
type Sender interface {
	Send(ctx context.Context, recipients []models.User, note notifications.Note) error
}

// Directory resolves recipients.
type Directory interface {
	ListRegistered(ctx context.Context, eventID uuid.UUID) ([]models.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Meetings finds meetings due on a day and their participants.
type Meetings interface {
	DueOn(ctx context.Context, date time.Time) ([]models.Meeting, error)
	ParticipantIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error)
}

// Result summarizes one sweep.
type Result struct {
	Date     string `json:"date"`
	Events   int    `json:"events"`
	Meetings int    `json:"meetings"`
	Notified int    `json:"notified"`
	Failures int    `json:"failures"`
}

// Sweeper finds what is coming up and notifies the people involved.
type Sweeper struct {
	store    store.Store
	dir      Directory
	meetings Meetings
	sender   Sender
	leadDays int
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. meetings may be nil to skip meeting reminders.
func NewSweeper(st store.Store, dir Directory, meetings Meetings, sender Sender, leadDays int, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if leadDays <= 0 {
		leadDays = 1
	}
	return &Sweeper{store: st, dir: dir, meetings: meetings, sender: sender, leadDays: leadDays, logger: logger}
}

// Target returns the day whose events a sweep run on today reminds about.
func (s *Sweeper) Target(today time.Time) time.Time {
	y, m, d := today.Date()
	return time.Date(y, m, d+s.leadDays, 0, 0, 0, 0, time.UTC)
}

// Run sends reminders for everything happening on the target day of today.
// One failing event does not stop the others; failures are counted.
func (s *Sweeper) Run(ctx context.Context, today time.Time) (Result, error) {
	target := s.Target(today)
	day := target.Format(models.DateLayout)
	res := Result{Date: day}

	var events []models.Event
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		events, err = tx.ListEvents(ctx, models.EventFilter{Status: models.EventStatusApproved, DateFrom: day, DateTo: day})
		return err
	})
	if err != nil {
		return res, fmt.Errorf("list events on %s: %w", day, err)
	}
	for i := range events {
		e := &events[i]
		users, err := s.dir.ListRegistered(ctx, e.ID)
		if err == nil {
			err = s.sender.Send(ctx, users, notifications.EventNote(models.NotifyEventReminder, e))
		}
		if err != nil {
			res.Failures++
			s.logger.Error("event reminder failed", zap.String("event_id", e.ID.String()), zap.Error(err))
			continue
		}
		res.Events++
		res.Notified += len(users)
	}

	if s.meetings != nil {
		meetings, err := s.meetings.DueOn(ctx, target)
		if err != nil {
			return res, fmt.Errorf("list meetings on %s: %w", day, err)
		}
		for i := range meetings {
			m := &meetings[i]
			n, err := s.remindMeeting(ctx, m)
			if err != nil {
				res.Failures++
				s.logger.Error("meeting reminder failed", zap.String("meeting_id", m.ID.String()), zap.Error(err))
				continue
			}
			res.Meetings++
			res.Notified += n
		}
	}
	s.logger.Info("reminder sweep done", zap.String("date", day), zap.Int("events", res.Events),
		zap.Int("meetings", res.Meetings), zap.Int("notified", res.Notified), zap.Int("failures", res.Failures))
	return res, nil
}

func (s *Sweeper) remindMeeting(ctx context.Context, m *models.Meeting) (int, error) {
	ids, err := s.meetings.ParticipantIDs(ctx, m.ID)
	if err != nil {
		return 0, err
	}
	users, err := s.dir.ListByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	return len(users), s.sender.Send(ctx, users, notifications.MeetingNote(models.NotifyMeetingReminder, m))
}
