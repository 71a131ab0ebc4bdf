package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout and TimeLayout are the wire formats of Event.Date and Event.Time.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// EventStatus is the approval state of an event.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusApproved  EventStatus = "approved"
	EventStatusRejected  EventStatus = "rejected"
	EventStatusCancelled EventStatus = "cancelled"
)

// OccupiesSlot reports whether an event in this status holds its (date, venue) slot.
// Pending events count so that two requests for the same slot surface before either is approved.
func (s EventStatus) OccupiesSlot() bool {
	return s == EventStatusPending || s == EventStatusApproved
}

// Terminal reports whether no transition leaves s.
func (s EventStatus) Terminal() bool {
	return s == EventStatusRejected || s == EventStatusCancelled
}

// CanTransition reports whether an event may move from s to next.
func (s EventStatus) CanTransition(next EventStatus) bool {
	switch s {
	case EventStatusPending:
		return next == EventStatusApproved || next == EventStatusRejected || next == EventStatusCancelled
	case EventStatusApproved:
		return next == EventStatusCancelled
	}
	return false
}

// EventCategory classifies an event.
type EventCategory string

const (
	CategoryAcademic EventCategory = "academic"
	CategorySocial   EventCategory = "social"
	CategorySports   EventCategory = "sports"
	CategoryCultural EventCategory = "cultural"
	CategoryWorkshop EventCategory = "workshop"
	CategorySeminar  EventCategory = "seminar"
)

// Valid reports whether c is a known category.
func (c EventCategory) Valid() bool {
	switch c {
	case CategoryAcademic, CategorySocial, CategorySports, CategoryCultural, CategoryWorkshop, CategorySeminar:
		return true
	}
	return false
}

// Event is a scheduled campus event. Date is YYYY-MM-DD and Time is HH:MM.
type Event struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	Date            string        `json:"date"`
	Time            string        `json:"time"`
	Venue           string        `json:"venue"`
	Category        EventCategory `json:"category"`
	Capacity        int           `json:"capacity"`
	RegisteredCount int           `json:"registered_count"`
	AttendedCount   int           `json:"attended_count"`
	Status          EventStatus   `json:"status"`
	ImageURL        string        `json:"image_url,omitempty"`
	OrganizerID     uuid.UUID     `json:"organizer_id"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// EventFilter narrows event listings. Zero fields are ignored.
type EventFilter struct {
	Status      EventStatus
	Category    EventCategory
	OrganizerID *uuid.UUID
	DateFrom    string
	DateTo      string
}

// ConflictResult is the answer of a scheduling conflict check.
type ConflictResult struct {
	HasConflict           bool       `json:"has_conflict"`
	ConflictingEventID    *uuid.UUID `json:"conflicting_event_id,omitempty"`
	ConflictingEventTitle string     `json:"conflicting_event_title,omitempty"`
}
