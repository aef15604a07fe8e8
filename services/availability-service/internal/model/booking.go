package model

import "time"

// Booking is a validated class reservation ready to be written to the calendar.
type Booking struct {
	CalendarID  string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []Attendee
	ExternalID  string
	SendUpdates string
}

type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// CalendarEvent is the subset of a provider event echoed back to callers.
type CalendarEvent struct {
	ID          string     `json:"id"`
	Status      string     `json:"status,omitempty"`
	HTMLLink    string     `json:"htmlLink,omitempty"`
	ETag        string     `json:"etag,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	Start       string     `json:"start,omitempty"`
	End         string     `json:"end,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	ExternalID  string     `json:"externalId,omitempty"`
}

// CalendarSummary describes a calendar visible to the configured identity.
type CalendarSummary struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Primary  bool   `json:"primary"`
	TimeZone string `json:"timeZone,omitempty"`
}
