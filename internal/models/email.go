package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
	EmailLogStatusSkipped = "skipped"
)

// EmailSetting is the global on/off switch for one notification type.
type EmailSetting struct {
	NotificationType NotificationType `json:"notification_type"`
	Enabled          bool             `json:"enabled"`
	Description      string           `json:"description,omitempty"`
	UpdatedBy        *uuid.UUID       `json:"updated_by,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// EmailPreference is one user's opt-in for one notification type.
type EmailPreference struct {
	UserID           uuid.UUID        `json:"user_id"`
	NotificationType NotificationType `json:"notification_type"`
	Enabled          bool             `json:"enabled"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// EmailLog records one delivery attempt.
type EmailLog struct {
	ID               uuid.UUID        `json:"id"`
	RecipientID      *uuid.UUID       `json:"recipient_id,omitempty"`
	RecipientEmail   string           `json:"recipient_email"`
	NotificationType NotificationType `json:"notification_type"`
	Subject          string           `json:"subject,omitempty"`
	Status           string           `json:"status"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	EventID          *uuid.UUID       `json:"event_id,omitempty"`
	MeetingID        *uuid.UUID       `json:"meeting_id,omitempty"`
	SentAt           *time.Time       `json:"sent_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}
