package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType names a kind of in-app or email notification.
type NotificationType string

const (
	NotifyEventCreated      NotificationType = "event_created"
	NotifyEventUpdated      NotificationType = "event_updated"
	NotifyEventCancelled    NotificationType = "event_cancelled"
	NotifyEventApproved     NotificationType = "event_approved"
	NotifyEventRejected     NotificationType = "event_rejected"
	NotifyEventReminder     NotificationType = "event_reminder"
	NotifyEventRegistration NotificationType = "event_registration"
	NotifyMeetingScheduled  NotificationType = "meeting_scheduled"
	NotifyMeetingUpdated    NotificationType = "meeting_updated"
	NotifyMeetingCancelled  NotificationType = "meeting_cancelled"
	NotifyMeetingInvitation NotificationType = "meeting_invitation"
	NotifyMeetingReminder   NotificationType = "meeting_reminder"
	NotifyRoleAssigned      NotificationType = "role_assigned"
)

// NotificationTypes lists every known type in display order.
var NotificationTypes = []NotificationType{
	NotifyEventCreated, NotifyEventUpdated, NotifyEventCancelled, NotifyEventApproved,
	NotifyEventRejected, NotifyEventReminder, NotifyEventRegistration,
	NotifyMeetingScheduled, NotifyMeetingUpdated, NotifyMeetingCancelled,
	NotifyMeetingInvitation, NotifyMeetingReminder, NotifyRoleAssigned,
}

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	for _, v := range NotificationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Notification is an in-app message for one user.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	EventID   *uuid.UUID       `json:"event_id,omitempty"`
	MeetingID *uuid.UUID       `json:"meeting_id,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
