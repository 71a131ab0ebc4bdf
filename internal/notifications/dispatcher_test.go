package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/eventbus"
	"github.com/unievents/backend/pkg/queue"
)

type fakeDirectory struct {
	users      map[uuid.UUID]models.User
	registered map[uuid.UUID][]uuid.UUID
	err        error
}

func newDirectory(users ...models.User) *fakeDirectory {
	d := &fakeDirectory{users: map[uuid.UUID]models.User{}, registered: map[uuid.UUID][]uuid.UUID{}}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[id]
	if !ok {
		return nil, errors.New("no such user")
	}
	return &u, nil
}

func (d *fakeDirectory) ListByRole(_ context.Context, role models.Role) ([]models.User, error) {
	var out []models.User
	for _, u := range d.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, d.err
}

func (d *fakeDirectory) ListRegistered(ctx context.Context, eventID uuid.UUID) ([]models.User, error) {
	return d.ListByIDs(ctx, d.registered[eventID])
}

func (d *fakeDirectory) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, d.err
}

type fakeInbox struct {
	stored []*models.Notification
	err    error
}

func (f *fakeInbox) CreateMany(_ context.Context, list []*models.Notification) error {
	if f.err != nil {
		return f.err
	}
	for _, n := range list {
		n.ID = uuid.New()
	}
	f.stored = append(f.stored, list...)
	return nil
}

type fakeEmail struct{ jobs []queue.EmailPayload }

func (f *fakeEmail) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	f.jobs = append(f.jobs, p)
	return nil
}

type fakePush struct{ to []uuid.UUID }

func (f *fakePush) Publish(_ context.Context, userID uuid.UUID, _ string, _ interface{}) error {
	f.to = append(f.to, userID)
	return errors.New("redis down")
}

type fakeBus struct{ msgs []eventbus.Message }

func (f *fakeBus) Publish(_ context.Context, m eventbus.Message) error {
	f.msgs = append(f.msgs, m)
	return nil
}

type rig struct {
	d     *Dispatcher
	dir   *fakeDirectory
	inbox *fakeInbox
	email *fakeEmail
	push  *fakePush
	bus   *fakeBus
}

func newRig(users ...models.User) *rig {
	r := &rig{dir: newDirectory(users...), inbox: &fakeInbox{}, email: &fakeEmail{}, push: &fakePush{}, bus: &fakeBus{}}
	r.d = NewDispatcher(r.dir, r.inbox, nil, WithEmail(r.email), WithPush(r.push), WithBus(r.bus))
	return r
}

func user(role models.Role, name string) models.User {
	return models.User{ID: uuid.New(), Role: role, FullName: name, Email: name + "@campus.edu"}
}

func recipients(list []*models.Notification) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(list))
	for _, n := range list {
		out = append(out, n.UserID)
	}
	return out
}

func TestEventCreatedGoesToAdmins(t *testing.T) {
	a1, a2 := user(models.RoleAdmin, "dean"), user(models.RoleAdmin, "registrar")
	org := user(models.RoleOrganizer, "club")
	r := newRig(a1, a2, org)
	e := &models.Event{ID: uuid.New(), Title: "Robotics Expo", Date: "2025-04-10", Time: "10:00", Venue: "Hall A", OrganizerID: org.ID, Status: models.EventStatusPending}

	r.d.EventChanged(context.Background(), models.NotifyEventCreated, e)

	assert.ElementsMatch(t, []uuid.UUID{a1.ID, a2.ID}, recipients(r.inbox.stored))
	require.Len(t, r.email.jobs, 2)
	assert.Equal(t, string(models.NotifyEventCreated), r.email.jobs[0].NotificationType)
	assert.Equal(t, "Robotics Expo", r.email.jobs[0].Details["event_title"])
	assert.Len(t, r.push.to, 2, "a failing push does not stop delivery")
	require.Len(t, r.bus.msgs, 1)
	assert.Equal(t, e.ID, r.bus.msgs[0].EventID)
	assert.Equal(t, "pending", r.bus.msgs[0].Status)
}

func TestReviewGoesToOrganizer(t *testing.T) {
	org := user(models.RoleOrganizer, "club")
	r := newRig(user(models.RoleAdmin, "dean"), org)
	e := &models.Event{ID: uuid.New(), Title: "Film Night", OrganizerID: org.ID}

	r.d.EventChanged(context.Background(), models.NotifyEventRejected, e)

	require.Len(t, r.inbox.stored, 1)
	n := r.inbox.stored[0]
	assert.Equal(t, org.ID, n.UserID)
	assert.Equal(t, "Event rejected", n.Title)
	require.NotNil(t, n.EventID)
	assert.Equal(t, e.ID, *n.EventID)
}

func TestCancellationGoesToRegistrants(t *testing.T) {
	s1, s2 := user(models.RoleStudent, "ana"), user(models.RoleStudent, "ben")
	r := newRig(s1, s2, user(models.RoleStudent, "cy"))
	e := &models.Event{ID: uuid.New(), Title: "Career Fair", Date: "2025-06-10"}
	r.dir.registered[e.ID] = []uuid.UUID{s1.ID, s2.ID}

	r.d.EventChanged(context.Background(), models.NotifyEventCancelled, e)

	assert.ElementsMatch(t, []uuid.UUID{s1.ID, s2.ID}, recipients(r.inbox.stored))
	assert.Contains(t, r.inbox.stored[0].Message, "has been cancelled")
}

func TestNoRegistrantsStillPublishes(t *testing.T) {
	r := newRig()
	e := &models.Event{ID: uuid.New(), Title: "Quiet Event"}

	r.d.EventChanged(context.Background(), models.NotifyEventUpdated, e)

	assert.Empty(t, r.inbox.stored)
	assert.Empty(t, r.email.jobs)
	assert.Len(t, r.bus.msgs, 1)
}

func TestInboxFailureSkipsEmail(t *testing.T) {
	org := user(models.RoleOrganizer, "club")
	r := newRig(org)
	r.inbox.err = errors.New("db down")

	r.d.EventChanged(context.Background(), models.NotifyEventApproved, &models.Event{ID: uuid.New(), OrganizerID: org.ID})

	assert.Empty(t, r.email.jobs)
	assert.Empty(t, r.push.to)
}

func TestRegisteredConfirmsToStudent(t *testing.T) {
	s := user(models.RoleStudent, "ana")
	r := newRig(s)
	e := &models.Event{ID: uuid.New(), Title: "Career Fair", Date: "2025-06-10", Time: "11:00", Venue: "Main Hall"}

	r.d.Registered(context.Background(), &models.Registration{ID: uuid.New(), UserID: s.ID, EventID: e.ID}, e)

	require.Len(t, r.email.jobs, 1)
	job := r.email.jobs[0]
	assert.Equal(t, s.Email, job.RecipientEmail)
	assert.Equal(t, "Registration confirmed", job.Subject)
	assert.Contains(t, job.Message, "2025-06-10 at 11:00, Main Hall")
	assert.Empty(t, r.bus.msgs, "registrations are not lifecycle messages")
}

func TestMeetingAndRoleNotes(t *testing.T) {
	s := user(models.RoleStudent, "ana")
	r := newRig(s)
	m := &models.Meeting{ID: uuid.New(), Title: "Volunteer briefing", Date: "2025-06-09", Time: "17:00"}

	r.d.MeetingChanged(context.Background(), models.NotifyMeetingInvitation, m, []uuid.UUID{s.ID, uuid.New()})
	require.Len(t, r.inbox.stored, 1)
	require.NotNil(t, r.inbox.stored[0].MeetingID)
	assert.Equal(t, m.ID, *r.inbox.stored[0].MeetingID)

	s.Role = models.RoleOrganizer
	r.d.RoleAssigned(context.Background(), &s)
	require.Len(t, r.inbox.stored, 2)
	assert.Equal(t, "You are now an organizer.", r.inbox.stored[1].Message)
}

func TestDispatcherWithoutOptionalChannels(t *testing.T) {
	org := user(models.RoleOrganizer, "club")
	dir, inbox := newDirectory(org), &fakeInbox{}
	d := NewDispatcher(dir, inbox, nil)

	d.EventChanged(context.Background(), models.NotifyEventApproved, &models.Event{ID: uuid.New(), OrganizerID: org.ID})

	assert.Len(t, inbox.stored, 1)
}
