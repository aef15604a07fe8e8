// Package busy decides which calendar events occupy a coach.
package busy

import (
	"strings"
	"time"

	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/coach"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/model"
)

// Extract returns the busy intervals for identity. On a personal calendar every
// live, opaque event counts. On a shared calendar an event counts when the
// coach organizes it, attends without declining, or its text mentions the
// fallback. Organizing wins over a declined attendance. All-day events resolve
// to local midnight in loc.
func Extract(events []calendar.Event, identity coach.Identity, personal bool, loc *time.Location) []model.Interval {
	out := make([]model.Interval, 0, len(events))
	for _, ev := range events {
		if ev.Status == calendar.StatusCancelled || ev.Transparency == calendar.TransparencyTransparent {
			continue
		}
		if !personal && !belongsTo(ev, identity) {
			continue
		}
		if ev.Start == nil || ev.End == nil {
			continue
		}
		start, end := ev.Start.Instant(loc), ev.End.Instant(loc)
		if !end.After(start) {
			continue
		}
		out = append(out, model.Interval{Start: start, End: end})
	}
	return out
}

func belongsTo(ev calendar.Event, identity coach.Identity) bool {
	email := strings.TrimSpace(identity.Email)
	if email != "" {
		if strings.EqualFold(ev.OrganizerEmail, email) {
			return true
		}
		for _, a := range ev.Attendees {
			if strings.EqualFold(a.Email, email) && a.ResponseStatus != calendar.ResponseStatusDeclined {
				return true
			}
		}
	}

	needle := strings.ToLower(strings.TrimSpace(identity.FallbackText))
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(ev.Summary), needle) ||
		strings.Contains(strings.ToLower(ev.Description), needle)
}
