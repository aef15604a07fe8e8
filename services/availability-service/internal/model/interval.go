package model

import "time"

// Interval is a half-open range [Start, End) of absolute instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects the interval.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && end.After(i.Start)
}

// Slot is a free, granularity-wide block returned by the enumerator.
type Slot struct {
	Start time.Time
	End   time.Time
}

// TimeRange is the wire form of an Interval or Slot.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func FormatRange(start, end time.Time) TimeRange {
	return TimeRange{
		Start: start.UTC().Format(time.RFC3339),
		End:   end.UTC().Format(time.RFC3339),
	}
}
