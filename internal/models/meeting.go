package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMeetingMinutes applies when a meeting is created without a duration.
const DefaultMeetingMinutes = 60

// Meeting is an online or in-person session attached to an event.
type Meeting struct {
	ID              uuid.UUID  `json:"id"`
	EventID         *uuid.UUID `json:"event_id,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	MeetingLink     string     `json:"meeting_link,omitempty"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	DurationMinutes int        `json:"duration_minutes"`
	Agenda          string     `json:"agenda,omitempty"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ParticipantStatus is an invitee's answer to a meeting invitation.
type ParticipantStatus string

const (
	ParticipantInvited  ParticipantStatus = "invited"
	ParticipantAccepted ParticipantStatus = "accepted"
	ParticipantDeclined ParticipantStatus = "declined"
)

// MeetingParticipant is one invitee of a meeting.
type MeetingParticipant struct {
	ID        uuid.UUID         `json:"id"`
	MeetingID uuid.UUID         `json:"meeting_id"`
	UserID    uuid.UUID         `json:"user_id"`
	UserName  string            `json:"user_name,omitempty"`
	UserEmail string            `json:"user_email,omitempty"`
	Status    ParticipantStatus `json:"status"`
	Attended  bool              `json:"attended"`
	JoinedAt  *time.Time        `json:"joined_at,omitempty"`
	LeftAt    *time.Time        `json:"left_at,omitempty"`
}
