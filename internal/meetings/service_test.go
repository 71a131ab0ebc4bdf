package meetings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
)

type memStore struct {
	mu           sync.Mutex
	meetings     map[uuid.UUID]*models.Meeting
	participants map[uuid.UUID]map[uuid.UUID]*models.MeetingParticipant
	organizers   map[uuid.UUID]uuid.UUID
	registered   map[uuid.UUID][]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		meetings:     map[uuid.UUID]*models.Meeting{},
		participants: map[uuid.UUID]map[uuid.UUID]*models.MeetingParticipant{},
		organizers:   map[uuid.UUID]uuid.UUID{},
		registered:   map[uuid.UUID][]uuid.UUID{},
	}
}

func (s *memStore) List(_ context.Context, eventID *uuid.UUID) ([]models.Meeting, error) {
	out := []models.Meeting{}
	for _, m := range s.meetings {
		if eventID == nil || (m.EventID != nil && *m.EventID == *eventID) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Meeting, error) {
	out := []models.Meeting{}
	for id, m := range s.meetings {
		if _, ok := s.participants[id][userID]; ok {
			out = append(out, *m)
			continue
		}
		if m.EventID != nil {
			for _, u := range s.registered[*m.EventID] {
				if u == userID {
					out = append(out, *m)
					break
				}
			}
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	m, ok := s.meetings[id]
	if !ok {
		return nil, apperr.NotFound("meeting", id)
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) EventOrganizer(_ context.Context, eventID uuid.UUID) (uuid.UUID, error) {
	id, ok := s.organizers[eventID]
	if !ok {
		return uuid.Nil, apperr.NotFound("event", eventID)
	}
	return id, nil
}

func (s *memStore) RegisteredUserIDs(_ context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	return s.registered[eventID], nil
}

func (s *memStore) Create(ctx context.Context, m *models.Meeting, participants []uuid.UUID) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	cp := *m
	s.meetings[m.ID] = &cp
	s.participants[m.ID] = map[uuid.UUID]*models.MeetingParticipant{}
	_, err := s.AddParticipants(ctx, m.ID, participants)
	return err
}

func (s *memStore) Update(_ context.Context, m *models.Meeting) error {
	cp := *m
	s.meetings[m.ID] = &cp
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.meetings, id)
	delete(s.participants, id)
	return nil
}

func (s *memStore) Participants(_ context.Context, meetingID uuid.UUID) ([]models.MeetingParticipant, error) {
	out := []models.MeetingParticipant{}
	for _, p := range s.participants[meetingID] {
		out = append(out, *p)
	}
	return out, nil
}

func (s *memStore) AddParticipants(_ context.Context, meetingID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	var added []uuid.UUID
	for _, u := range userIDs {
		if _, ok := s.participants[meetingID][u]; ok {
			continue
		}
		s.participants[meetingID][u] = &models.MeetingParticipant{ID: uuid.New(), MeetingID: meetingID, UserID: u, Status: models.ParticipantInvited}
		added = append(added, u)
	}
	return added, nil
}

func (s *memStore) GetParticipant(_ context.Context, meetingID, userID uuid.UUID) (*models.MeetingParticipant, error) {
	p, ok := s.participants[meetingID][userID]
	if !ok {
		return nil, apperr.NotFound("participant", userID)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) SaveParticipant(_ context.Context, p *models.MeetingParticipant) error {
	cp := *p
	s.participants[p.MeetingID][p.UserID] = &cp
	return nil
}

func (s *memStore) ParticipantIDs(_ context.Context, meetingID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for u := range s.participants[meetingID] {
		out = append(out, u)
	}
	return out, nil
}

type sent struct {
	kind models.NotificationType
	to   []uuid.UUID
}

type notes struct{ log []sent }

func (n *notes) MeetingChanged(_ context.Context, kind models.NotificationType, _ *models.Meeting, ids []uuid.UUID) {
	n.log = append(n.log, sent{kind, ids})
}

var (
	admin     = models.Actor{ID: uuid.New(), Role: models.RoleAdmin}
	organizer = models.Actor{ID: uuid.New(), Role: models.RoleOrganizer}
)

func setup() (*Service, *memStore, *notes) {
	st := newMemStore()
	n := &notes{}
	svc := NewService(st, n, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 9, 17, 2, 0, 0, time.UTC) }
	return svc, st, n
}

func TestCreateMeeting(t *testing.T) {
	svc, st, n := setup()
	ctx := context.Background()
	eventID := uuid.New()
	st.organizers[eventID] = organizer.ID
	registrant, invitee := uuid.New(), uuid.New()
	st.registered[eventID] = []uuid.UUID{registrant, invitee}

	m, err := svc.Create(ctx, organizer, CreateInput{
		EventID: &eventID, Title: " Volunteer briefing ", Date: "2025-06-09", Time: "17:00",
		ParticipantIDs: []uuid.UUID{invitee, invitee, organizer.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Volunteer briefing", m.Title)
	assert.Equal(t, models.DefaultMeetingMinutes, m.DurationMinutes)

	parts, err := svc.Participants(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1, "duplicates and the creator are not invited")

	require.Len(t, n.log, 2)
	assert.Equal(t, sent{models.NotifyMeetingInvitation, []uuid.UUID{invitee}}, n.log[0])
	assert.Equal(t, sent{models.NotifyMeetingScheduled, []uuid.UUID{registrant}}, n.log[1])

	mine, err := svc.ListMine(ctx, models.Actor{ID: registrant, Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCreateMeetingRules(t *testing.T) {
	svc, st, _ := setup()
	ctx := context.Background()
	eventID := uuid.New()
	st.organizers[eventID] = uuid.New()

	_, err := svc.Create(ctx, models.Actor{ID: uuid.New(), Role: models.RoleStudent}, CreateInput{Title: "x", Date: "2025-06-09", Time: "17:00"})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = svc.Create(ctx, organizer, CreateInput{EventID: &eventID, Title: "x", Date: "2025-06-09", Time: "17:00"})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = svc.Create(ctx, admin, CreateInput{EventID: &eventID, Title: "x", Date: "2025-06-09", Time: "17:00"})
	assert.NoError(t, err)

	missing := uuid.New()
	_, err = svc.Create(ctx, admin, CreateInput{EventID: &missing, Title: "x", Date: "2025-06-09", Time: "17:00"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	for name, in := range map[string]CreateInput{
		"bad date":     {Title: "x", Date: "09/06/2025", Time: "17:00"},
		"bad time":     {Title: "x", Date: "2025-06-09", Time: "5pm"},
		"neg duration": {Title: "x", Date: "2025-06-09", Time: "17:00", DurationMinutes: -5},
		"blank title":  {Title: "  ", Date: "2025-06-09", Time: "17:00"},
	} {
		_, err := svc.Create(ctx, organizer, in)
		assert.True(t, errors.Is(err, apperr.ErrValidation), name)
	}
}

func TestUpdateAndDeleteNotifyParticipants(t *testing.T) {
	svc, _, n := setup()
	ctx := context.Background()
	guest := uuid.New()
	m, err := svc.Create(ctx, organizer, CreateInput{Title: "Sync", Date: "2025-06-09", Time: "17:00", ParticipantIDs: []uuid.UUID{guest}})
	require.NoError(t, err)

	_, err = svc.Update(ctx, models.Actor{ID: uuid.New(), Role: models.RoleOrganizer}, m.ID, UpdateInput{})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	later := "18:30"
	got, err := svc.Update(ctx, organizer, m.ID, UpdateInput{Time: &later})
	require.NoError(t, err)
	assert.Equal(t, "18:30", got.Time)

	require.NoError(t, svc.Delete(ctx, admin, m.ID))
	_, err = svc.Get(ctx, m.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	kinds := []models.NotificationType{}
	for _, s := range n.log {
		kinds = append(kinds, s.kind)
	}
	assert.Equal(t, []models.NotificationType{models.NotifyMeetingInvitation, models.NotifyMeetingUpdated, models.NotifyMeetingCancelled}, kinds)
}

func TestInviteOnlyNotifiesNewParticipants(t *testing.T) {
	svc, _, n := setup()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	m, err := svc.Create(ctx, organizer, CreateInput{Title: "Sync", Date: "2025-06-09", Time: "17:00", ParticipantIDs: []uuid.UUID{a}})
	require.NoError(t, err)

	added, err := svc.Invite(ctx, organizer, m.ID, []uuid.UUID{a, b})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b}, added)
	assert.Equal(t, []uuid.UUID{b}, n.log[len(n.log)-1].to)

	added, err = svc.Invite(ctx, organizer, m.ID, []uuid.UUID{a})
	require.NoError(t, err)
	assert.Empty(t, added)

	_, err = svc.Invite(ctx, organizer, m.ID, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRespondJoinLeave(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()
	guest := models.Actor{ID: uuid.New(), Role: models.RoleStudent}
	m, err := svc.Create(ctx, organizer, CreateInput{Title: "Sync", Date: "2025-06-09", Time: "17:00", ParticipantIDs: []uuid.UUID{guest.ID}})
	require.NoError(t, err)

	_, err = svc.Leave(ctx, guest, m.ID)
	assert.True(t, errors.Is(err, apperr.ErrPreconditionFailed))

	p, err := svc.Join(ctx, guest, m.ID)
	require.NoError(t, err)
	assert.True(t, p.Attended)
	assert.Equal(t, models.ParticipantAccepted, p.Status)
	require.NotNil(t, p.JoinedAt)

	p, err = svc.Leave(ctx, guest, m.ID)
	require.NoError(t, err)
	require.NotNil(t, p.LeftAt)

	_, err = svc.Respond(ctx, guest, m.ID, models.ParticipantInvited)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	p, err = svc.Respond(ctx, guest, m.ID, models.ParticipantDeclined)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantDeclined, p.Status)

	_, err = svc.Join(ctx, guest, m.ID)
	assert.True(t, errors.Is(err, apperr.ErrPreconditionFailed))

	_, err = svc.Join(ctx, models.Actor{ID: uuid.New(), Role: models.RoleStudent}, m.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
