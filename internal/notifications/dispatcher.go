package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/realtime"
	"github.com/unievents/backend/pkg/eventbus"
	"github.com/unievents/backend/pkg/queue"
)

// Directory resolves notification recipients.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	ListRegistered(ctx context.Context, eventID uuid.UUID) ([]models.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Inbox stores in-app notifications.
type Inbox interface {
	CreateMany(ctx context.Context, list []*models.Notification) error
}

// EmailQueue accepts email jobs for the worker.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Pusher delivers a payload to a user's open websocket connections.
type Pusher interface {
	Publish(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error
}

// Bus receives event lifecycle messages for other systems.
type Bus interface {
	Publish(ctx context.Context, m eventbus.Message) error
}

// Note is one notification addressed to a set of users.
type Note struct {
	Type      models.NotificationType
	Title     string
	Message   string
	EventID   *uuid.UUID
	MeetingID *uuid.UUID
	Details   map[string]string
}

// Dispatcher fans lifecycle changes out to the inbox, websockets, email and Kafka.
// Every channel except the inbox is optional. Failures are logged and never
// reach the caller's already committed operation.
type Dispatcher struct {
	dir    Directory
	inbox  Inbox
	email  EmailQueue
	push   Pusher
	bus    Bus
	logger *zap.Logger
}

// Option configures an optional delivery channel.
type Option func(*Dispatcher)

// WithEmail enqueues an email per recipient.
func WithEmail(q EmailQueue) Option { return func(d *Dispatcher) { d.email = q } }

// WithPush sends each notification over the realtime hub.
func WithPush(p Pusher) Option { return func(d *Dispatcher) { d.push = p } }

// WithBus publishes event lifecycle messages.
func WithBus(b Bus) Option { return func(d *Dispatcher) { d.bus = b } }

// NewDispatcher creates a dispatcher.
func NewDispatcher(dir Directory, inbox Inbox, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{dir: dir, inbox: inbox, logger: logger}
	for _, o := range opts {
		o(d)
	}
	return d
}

// EventChanged notifies the people affected by an event lifecycle change:
// admins when an event is submitted, the organizer on review, registered
// students on update or cancellation.
func (d *Dispatcher) EventChanged(ctx context.Context, kind models.NotificationType, e *models.Event) {
	ctx = context.WithoutCancel(ctx)
	d.publishBus(ctx, kind, e)

	var (
		recipients []models.User
		err        error
	)
	switch kind {
	case models.NotifyEventCreated:
		recipients, err = d.dir.ListByRole(ctx, models.RoleAdmin)
	case models.NotifyEventApproved, models.NotifyEventRejected:
		var u *models.User
		if u, err = d.dir.GetByID(ctx, e.OrganizerID); err == nil {
			recipients = []models.User{*u}
		}
	case models.NotifyEventUpdated, models.NotifyEventCancelled:
		recipients, err = d.dir.ListRegistered(ctx, e.ID)
	default:
		d.logger.Warn("no recipients for event notification", zap.String("type", string(kind)))
		return
	}
	if err != nil {
		d.logger.Error("resolve recipients failed", zap.String("type", string(kind)), zap.String("event_id", e.ID.String()), zap.Error(err))
		return
	}
	if err := d.Send(ctx, recipients, EventNote(kind, e)); err != nil {
		d.logger.Error("event notification failed", zap.String("type", string(kind)), zap.Error(err))
	}
}

// Registered confirms a registration to the student.
func (d *Dispatcher) Registered(ctx context.Context, r *models.Registration, e *models.Event) {
	ctx = context.WithoutCancel(ctx)
	u, err := d.dir.GetByID(ctx, r.UserID)
	if err != nil {
		d.logger.Error("resolve registrant failed", zap.String("registration_id", r.ID.String()), zap.Error(err))
		return
	}
	if err := d.Send(ctx, []models.User{*u}, EventNote(models.NotifyEventRegistration, e)); err != nil {
		d.logger.Error("registration notification failed", zap.Error(err))
	}
}

// MeetingChanged notifies the given participants about a meeting.
func (d *Dispatcher) MeetingChanged(ctx context.Context, kind models.NotificationType, m *models.Meeting, userIDs []uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	users, err := d.dir.ListByIDs(ctx, userIDs)
	if err != nil {
		d.logger.Error("resolve participants failed", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		return
	}
	if err := d.Send(ctx, users, MeetingNote(kind, m)); err != nil {
		d.logger.Error("meeting notification failed", zap.String("type", string(kind)), zap.Error(err))
	}
}

// RoleAssigned tells a user their role changed.
func (d *Dispatcher) RoleAssigned(ctx context.Context, u *models.User) {
	ctx = context.WithoutCancel(ctx)
	note := Note{
		Type:    models.NotifyRoleAssigned,
		Title:   "Your role was updated",
		Message: fmt.Sprintf("You are now %s.", article(string(u.Role))),
		Details: map[string]string{"role": string(u.Role)},
	}
	if err := d.Send(ctx, []models.User{*u}, note); err != nil {
		d.logger.Error("role notification failed", zap.String("user_id", u.ID.String()), zap.Error(err))
	}
}

// Send stores one in-app notification per recipient, then pushes and enqueues
// email for each. Only the inbox write is reported; the rest is best effort.
func (d *Dispatcher) Send(ctx context.Context, recipients []models.User, note Note) error {
	if len(recipients) == 0 {
		return nil
	}
	list := make([]*models.Notification, 0, len(recipients))
	for _, u := range recipients {
		list = append(list, &models.Notification{
			UserID:    u.ID,
			Type:      note.Type,
			Title:     note.Title,
			Message:   note.Message,
			EventID:   note.EventID,
			MeetingID: note.MeetingID,
		})
	}
	if err := d.inbox.CreateMany(ctx, list); err != nil {
		return fmt.Errorf("store notifications: %w", err)
	}
	for i, u := range recipients {
		if d.push != nil {
			if err := d.push.Publish(ctx, u.ID, realtime.EventNotification, list[i]); err != nil {
				d.logger.Warn("push notification failed", zap.String("user_id", u.ID.String()), zap.Error(err))
			}
		}
		if d.email != nil {
			payload := queue.EmailPayload{
				NotificationType: string(note.Type),
				RecipientID:      u.ID,
				RecipientEmail:   u.Email,
				RecipientName:    u.FullName,
				Subject:          note.Title,
				Message:          note.Message,
				EventID:          note.EventID,
				MeetingID:        note.MeetingID,
				Details:          note.Details,
			}
			if err := d.email.EnqueueEmail(ctx, payload); err != nil {
				d.logger.Warn("enqueue email failed", zap.String("user_id", u.ID.String()), zap.Error(err))
			}
		}
	}
	d.logger.Debug("notifications sent", zap.String("type", string(note.Type)), zap.Int("recipients", len(recipients)))
	return nil
}

func (d *Dispatcher) publishBus(ctx context.Context, kind models.NotificationType, e *models.Event) {
	if d.bus == nil {
		return
	}
	m := eventbus.Message{
		Type:       string(kind),
		EventID:    e.ID,
		Title:      e.Title,
		Status:     string(e.Status),
		Date:       e.Date,
		Venue:      e.Venue,
		OccurredAt: time.Now().UTC(),
	}
	if err := d.bus.Publish(ctx, m); err != nil {
		d.logger.Warn("publish lifecycle message failed", zap.String("event_id", e.ID.String()), zap.Error(err))
	}
}

// EventNote builds the notification text for an event change.
func EventNote(kind models.NotificationType, e *models.Event) Note {
	id := e.ID
	n := Note{
		Type:    kind,
		EventID: &id,
		Details: map[string]string{
			"event_title": e.Title,
			"date":        e.Date,
			"time":        e.Time,
			"venue":       e.Venue,
		},
	}
	when := fmt.Sprintf("%s at %s, %s", e.Date, e.Time, e.Venue)
	switch kind {
	case models.NotifyEventCreated:
		n.Title = "New event awaiting approval"
		n.Message = fmt.Sprintf("%q was submitted for %s.", e.Title, when)
	case models.NotifyEventApproved:
		n.Title = "Event approved"
		n.Message = fmt.Sprintf("%q has been approved and is open for registration.", e.Title)
	case models.NotifyEventRejected:
		n.Title = "Event rejected"
		n.Message = fmt.Sprintf("%q was not approved.", e.Title)
	case models.NotifyEventUpdated:
		n.Title = "Event updated"
		n.Message = fmt.Sprintf("%q changed. It now takes place on %s.", e.Title, when)
	case models.NotifyEventCancelled:
		n.Title = "Event cancelled"
		n.Message = fmt.Sprintf("%q on %s has been cancelled.", e.Title, e.Date)
	case models.NotifyEventRegistration:
		n.Title = "Registration confirmed"
		n.Message = fmt.Sprintf("You are registered for %q on %s.", e.Title, when)
	case models.NotifyEventReminder:
		n.Title = "Event reminder"
		n.Message = fmt.Sprintf("%q starts %s.", e.Title, when)
	default:
		n.Title = e.Title
		n.Message = when
	}
	return n
}

// MeetingNote builds the notification text for a meeting change.
func MeetingNote(kind models.NotificationType, m *models.Meeting) Note {
	id := m.ID
	n := Note{
		Type:      kind,
		EventID:   m.EventID,
		MeetingID: &id,
		Details: map[string]string{
			"meeting_title": m.Title,
			"date":          m.Date,
			"time":          m.Time,
			"meeting_link":  m.MeetingLink,
		},
	}
	when := fmt.Sprintf("%s at %s", m.Date, m.Time)
	switch kind {
	case models.NotifyMeetingInvitation, models.NotifyMeetingScheduled:
		n.Title = "Meeting invitation"
		n.Message = fmt.Sprintf("You are invited to %q on %s.", m.Title, when)
	case models.NotifyMeetingUpdated:
		n.Title = "Meeting updated"
		n.Message = fmt.Sprintf("%q now takes place on %s.", m.Title, when)
	case models.NotifyMeetingCancelled:
		n.Title = "Meeting cancelled"
		n.Message = fmt.Sprintf("%q on %s has been cancelled.", m.Title, when)
	case models.NotifyMeetingReminder:
		n.Title = "Meeting reminder"
		n.Message = fmt.Sprintf("%q starts %s.", m.Title, when)
	default:
		n.Title = m.Title
		n.Message = when
	}
	return n
}

func article(word string) string {
	if word == "" {
		return word
	}
	switch word[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an " + word
	}
	return "a " + word
}
