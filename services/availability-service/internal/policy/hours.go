package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a civil time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Window is the open/close pair for one day class. Open must be before Close.
type Window struct {
	Open  Clock
	Close Clock
}

func (w Window) String() string { return w.Open.String() + "-" + w.Close.String() }

// BusinessHours holds the operating window for weekdays and weekends.
type BusinessHours struct {
	Weekday Window
	Weekend Window
}

func Default() BusinessHours {
	return BusinessHours{
		Weekday: Window{Open: Clock{7, 0}, Close: Clock{22, 30}},
		Weekend: Window{Open: Clock{8, 0}, Close: Clock{14, 0}},
	}
}

// FromStrings overrides the defaults with non-empty "HH:MM-HH:MM" values.
func FromStrings(weekday, weekend string) (BusinessHours, error) {
	h := Default()
	if strings.TrimSpace(weekday) != "" {
		w, err := ParseWindow(weekday)
		if err != nil {
			return BusinessHours{}, fmt.Errorf("weekday hours: %w", err)
		}
		h.Weekday = w
	}
	if strings.TrimSpace(weekend) != "" {
		w, err := ParseWindow(weekend)
		if err != nil {
			return BusinessHours{}, fmt.Errorf("weekend hours: %w", err)
		}
		h.Weekend = w
	}
	return h, nil
}

func ParseWindow(raw string) (Window, error) {
	openRaw, closeRaw, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return Window{}, fmt.Errorf("window %q must look like HH:MM-HH:MM", raw)
	}
	open, err := parseClock(openRaw)
	if err != nil {
		return Window{}, err
	}
	closing, err := parseClock(closeRaw)
	if err != nil {
		return Window{}, err
	}
	if open.minutes() >= closing.minutes() {
		return Window{}, fmt.Errorf("window %q: open must be before close", raw)
	}
	return Window{Open: open, Close: closing}, nil
}

func parseClock(raw string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid time %q", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return Clock{}, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return Clock{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// For returns the window that applies to a local weekday.
func (b BusinessHours) For(day time.Weekday) Window {
	if day == time.Saturday || day == time.Sunday {
		return b.Weekend
	}
	return b.Weekday
}

// Within reports whether [start, end) lies inside the operating window of a
// single local day in loc. Both bounds are inclusive; intervals that cross
// local midnight are always rejected.
func (b BusinessHours) Within(start, end time.Time, loc *time.Location) bool {
	if !end.After(start) {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	ls, le := start.In(loc), end.In(loc)
	y, m, d := ls.Date()
	if ey, em, ed := le.Date(); ey != y || em != m || ed != d {
		return false
	}

	w := b.For(ls.Weekday())
	open := time.Date(y, m, d, w.Open.Hour, w.Open.Minute, 0, 0, loc)
	closing := time.Date(y, m, d, w.Close.Hour, w.Close.Minute, 0, 0, loc)
	return !ls.Before(open) && !le.After(closing)
}
