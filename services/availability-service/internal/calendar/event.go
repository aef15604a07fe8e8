package calendar

import (
	"fmt"
	"time"
)

// Event is a read-only snapshot of a provider event, reduced to the fields
// used to decide whether it occupies a coach.
type Event struct {
	ID             string
	Status         string
	Transparency   string
	Summary        string
	Description    string
	OrganizerEmail string
	Attendees      []Attendee
	Start          Boundary // nil when the provider sent neither dateTime nor date
	End            Boundary
}

type Attendee struct {
	Email          string
	ResponseStatus string
}

const (
	StatusCancelled         = "cancelled"
	TransparencyTransparent = "transparent"
	ResponseStatusDeclined  = "declined"
)

// Boundary is either a TimedBoundary or a DateBoundary.
type Boundary interface {
	// Instant resolves the boundary to an absolute time. Dates resolve to
	// local midnight in loc.
	Instant(loc *time.Location) time.Time
}

type TimedBoundary struct {
	At time.Time
}

func (b TimedBoundary) Instant(*time.Location) time.Time { return b.At }

// DateBoundary is an all-day date. End dates are exclusive, as sent by the provider.
type DateBoundary struct {
	Year  int
	Month time.Month
	Day   int
}

func (b DateBoundary) Instant(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(b.Year, b.Month, b.Day, 0, 0, 0, 0, loc)
}

func (b DateBoundary) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", b.Year, b.Month, b.Day)
}

// ParseBoundary prefers dateTime over date. It returns nil when both are empty.
func ParseBoundary(dateTime, date string) (Boundary, error) {
	if dateTime != "" {
		t, err := time.Parse(time.RFC3339, dateTime)
		if err != nil {
			return nil, fmt.Errorf("parse dateTime %q: %w", dateTime, err)
		}
		return TimedBoundary{At: t}, nil
	}
	if date != "" {
		t, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		return DateBoundary{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
	}
	return nil, nil
}
