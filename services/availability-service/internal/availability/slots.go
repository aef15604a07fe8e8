package availability

import (
	"time"

	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/model"
)

// HoursPolicy decides whether an interval is inside club operating hours.
type HoursPolicy interface {
	Within(start, end time.Time, loc *time.Location) bool
}

type Query struct {
	WindowStart time.Time
	WindowEnd   time.Time
	// Granularity is both the cursor step and the width of every emitted slot.
	Granularity time.Duration
	// RequiredSpan must be free from each candidate start. Usually equal to Granularity.
	RequiredSpan time.Duration
	Busy         []model.Interval
	Hours        HoursPolicy // nil disables the operating hours check
	Location     *time.Location
}

// FreeSlots walks the window in Granularity steps and returns the starts whose
// RequiredSpan fits the window, stays within operating hours and overlaps no
// busy interval. Slots are strictly increasing and each one is Granularity wide.
func FreeSlots(q Query) []model.Slot {
	if q.Granularity <= 0 || q.RequiredSpan <= 0 {
		return nil
	}
	if !q.WindowEnd.After(q.WindowStart) {
		return nil
	}
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}

	var slots []model.Slot
	for t := q.WindowStart; !t.Add(q.Granularity).After(q.WindowEnd); t = t.Add(q.Granularity) {
		checkEnd := t.Add(q.RequiredSpan)
		if checkEnd.After(q.WindowEnd) {
			break
		}
		if q.Hours != nil && !q.Hours.Within(t, checkEnd, loc) {
			continue
		}
		if overlapsAny(t, checkEnd, q.Busy) {
			continue
		}
		slots = append(slots, model.Slot{Start: t, End: t.Add(q.Granularity)})
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []model.Interval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
