// Package meetings manages meetings attached to events and their participants.
package meetings

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
)

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	List(ctx context.Context, eventID *uuid.UUID) ([]models.Meeting, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Meeting, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	EventOrganizer(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error)
	RegisteredUserIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, m *models.Meeting, participants []uuid.UUID) error
	Update(ctx context.Context, m *models.Meeting) error
	Delete(ctx context.Context, id uuid.UUID) error
	Participants(ctx context.Context, meetingID uuid.UUID) ([]models.MeetingParticipant, error)
	AddParticipants(ctx context.Context, meetingID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error)
	GetParticipant(ctx context.Context, meetingID, userID uuid.UUID) (*models.MeetingParticipant, error)
	SaveParticipant(ctx context.Context, p *models.MeetingParticipant) error
	ParticipantIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error)
}

// Notifier is told about meeting changes.
type Notifier interface {
	MeetingChanged(ctx context.Context, kind models.NotificationType, m *models.Meeting, userIDs []uuid.UUID)
}

// CreateInput holds the fields of a new meeting.
type CreateInput struct {
	EventID         *uuid.UUID  `json:"event_id"`
	Title           string      `json:"title" binding:"required"`
	Description     string      `json:"description"`
	MeetingLink     string      `json:"meeting_link"`
	Date            string      `json:"date" binding:"required"`
	Time            string      `json:"time" binding:"required"`
	DurationMinutes int         `json:"duration_minutes"`
	Agenda          string      `json:"agenda"`
	ParticipantIDs  []uuid.UUID `json:"participant_ids"`
}

// UpdateInput holds editable fields; nil fields stay unchanged.
type UpdateInput struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	MeetingLink     *string `json:"meeting_link"`
	Date            *string `json:"date"`
	Time            *string `json:"time"`
	DurationMinutes *int    `json:"duration_minutes"`
	Agenda          *string `json:"agenda"`
}

// Service holds the meeting rules.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a meeting service. notifier may be nil.
func NewService(st Store, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, notifier: notifier, logger: logger, now: time.Now}
}

func (s *Service) notify(ctx context.Context, kind models.NotificationType, m *models.Meeting, userIDs []uuid.UUID) {
	if s.notifier != nil && len(userIDs) > 0 {
		s.notifier.MeetingChanged(ctx, kind, m, userIDs)
	}
}

// List returns all meetings or those of one event.
func (s *Service) List(ctx context.Context, eventID *uuid.UUID) ([]models.Meeting, error) {
	return s.store.List(ctx, eventID)
}

// ListMine returns the actor's meetings.
func (s *Service) ListMine(ctx context.Context, actor models.Actor) ([]models.Meeting, error) {
	return s.store.ListForUser(ctx, actor.ID)
}

// Get returns one meeting.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	return s.store.Get(ctx, id)
}

// Create schedules a meeting. A meeting tied to an event can only be created
// by that event's organizer or an admin; its registered students are told.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.Meeting, error) {
	if actor.Role == models.RoleStudent {
		return nil, apperr.Forbidden("students cannot schedule meetings")
	}
	m := &models.Meeting{
		EventID:         in.EventID,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		MeetingLink:     strings.TrimSpace(in.MeetingLink),
		Date:            in.Date,
		Time:            in.Time,
		DurationMinutes: in.DurationMinutes,
		Agenda:          in.Agenda,
		CreatedBy:       actor.ID,
	}
	if m.DurationMinutes == 0 {
		m.DurationMinutes = models.DefaultMeetingMinutes
	}
	if err := validate(m); err != nil {
		return nil, err
	}
	var registered []uuid.UUID
	if m.EventID != nil {
		owner, err := s.store.EventOrganizer(ctx, *m.EventID)
		if err != nil {
			return nil, err
		}
		if !actor.CanManage(owner) {
			return nil, apperr.Forbidden("only the event organizer or an admin can schedule its meetings")
		}
		if registered, err = s.store.RegisteredUserIDs(ctx, *m.EventID); err != nil {
			return nil, err
		}
	}
	invitees := dedupe(in.ParticipantIDs, actor.ID)
	if err := s.store.Create(ctx, m, invitees); err != nil {
		return nil, err
	}
	s.logger.Info("meeting created", zap.String("meeting_id", m.ID.String()), zap.Int("participants", len(invitees)))
	s.notify(ctx, models.NotifyMeetingInvitation, m, invitees)
	s.notify(ctx, models.NotifyMeetingScheduled, m, except(registered, invitees))
	return m, nil
}

// Update edits a meeting and tells its participants.
func (s *Service) Update(ctx context.Context, actor models.Actor, id uuid.UUID, in UpdateInput) (*models.Meeting, error) {
	m, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		m.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		m.Description = *in.Description
	}
	if in.MeetingLink != nil {
		m.MeetingLink = strings.TrimSpace(*in.MeetingLink)
	}
	if in.Date != nil {
		m.Date = *in.Date
	}
	if in.Time != nil {
		m.Time = *in.Time
	}
	if in.DurationMinutes != nil {
		m.DurationMinutes = *in.DurationMinutes
	}
	if in.Agenda != nil {
		m.Agenda = *in.Agenda
	}
	if err := validate(m); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, m); err != nil {
		return nil, err
	}
	ids, err := s.store.ParticipantIDs(ctx, id)
	if err != nil {
		s.logger.Warn("load participants failed", zap.String("meeting_id", id.String()), zap.Error(err))
	}
	s.notify(ctx, models.NotifyMeetingUpdated, m, ids)
	return m, nil
}

// Delete cancels a meeting and tells its participants.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	m, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	ids, err := s.store.ParticipantIDs(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("meeting deleted", zap.String("meeting_id", id.String()))
	s.notify(ctx, models.NotifyMeetingCancelled, m, ids)
	return nil
}

// Participants lists a meeting's invitees.
func (s *Service) Participants(ctx context.Context, id uuid.UUID) ([]models.MeetingParticipant, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Participants(ctx, id)
}

// Invite adds participants and notifies the newly invited ones.
func (s *Service) Invite(ctx context.Context, actor models.Actor, id uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(userIDs) == 0 {
		return nil, apperr.Validation("at least one participant is required")
	}
	m, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	added, err := s.store.AddParticipants(ctx, id, dedupe(userIDs, uuid.Nil))
	if err != nil {
		return nil, err
	}
	s.notify(ctx, models.NotifyMeetingInvitation, m, added)
	if added == nil {
		added = []uuid.UUID{}
	}
	return added, nil
}

// Respond records the actor's answer to an invitation.
func (s *Service) Respond(ctx context.Context, actor models.Actor, id uuid.UUID, status models.ParticipantStatus) (*models.MeetingParticipant, error) {
	if status != models.ParticipantAccepted && status != models.ParticipantDeclined {
		return nil, apperr.Validation("response must be accepted or declined, got %q", status)
	}
	p, err := s.store.GetParticipant(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	p.Status = status
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Join stamps the actor's arrival and marks them attended.
func (s *Service) Join(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.MeetingParticipant, error) {
	p, err := s.store.GetParticipant(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.ParticipantDeclined {
		return nil, apperr.PreconditionFailed("you declined this meeting")
	}
	now := s.now().UTC()
	p.Attended = true
	p.JoinedAt = &now
	p.LeftAt = nil
	if p.Status == models.ParticipantInvited {
		p.Status = models.ParticipantAccepted
	}
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Leave stamps the actor's departure.
func (s *Service) Leave(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.MeetingParticipant, error) {
	p, err := s.store.GetParticipant(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	if p.JoinedAt == nil || p.LeftAt != nil {
		return nil, apperr.PreconditionFailed("you have not joined this meeting")
	}
	now := s.now().UTC()
	p.LeftAt = &now
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) owned(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Meeting, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(m.CreatedBy) {
		return nil, apperr.Forbidden("only the meeting's creator or an admin can change it")
	}
	return m, nil
}

func validate(m *models.Meeting) error {
	if m.Title == "" {
		return apperr.Validation("title is required")
	}
	if _, err := time.Parse(models.DateLayout, m.Date); err != nil {
		return apperr.Validation("date must be YYYY-MM-DD, got %q", m.Date)
	}
	if _, err := time.Parse(models.TimeLayout, m.Time); err != nil {
		return apperr.Validation("time must be HH:MM, got %q", m.Time)
	}
	if m.DurationMinutes <= 0 {
		return apperr.Validation("duration must be positive, got %d", m.DurationMinutes)
	}
	return nil
}

// dedupe drops duplicates and skip.
func dedupe(ids []uuid.UUID, skip uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == skip || id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func except(ids, drop []uuid.UUID) []uuid.UUID {
	skip := make(map[uuid.UUID]bool, len(drop))
	for _, id := range drop {
		skip[id] = true
	}
	var out []uuid.UUID
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}
