// Package datefrag turns loose chat input ("10/7", "9:30") into instants.
package datefrag

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	monthDayRe = regexp.MustCompile(`(\d{1,2})\D(\d{1,2})`)
	clockRe    = regexp.MustCompile(`^(\d{1,2})(?::?(\d{1,2}))?$`)

	ErrMissing = errors.New("missing date fragment")
)

// ParseMonthDay reads "10-7", "10/07" or "10.7" as month and day.
func ParseMonthDay(raw string) (time.Month, int, error) {
	m := monthDayRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, 0, fmt.Errorf("invalid month/day %q", raw)
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, fmt.Errorf("month/day out of range in %q", raw)
	}
	return time.Month(month), day, nil
}

// ParseClock reads "9", "09", "9:5" or "09:05". Minutes default to 0.
func ParseClock(raw string) (int, int, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, 0, fmt.Errorf("invalid time %q", raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range in %q", raw)
	}
	return hour, minute, nil
}

// StartFromPieces builds a local instant from month/day and clock fragments.
// A blank year means the current year in loc, taken from now.
func StartFromPieces(monthDay, clock, year string, now time.Time, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(monthDay) == "" || strings.TrimSpace(clock) == "" {
		return time.Time{}, ErrMissing
	}
	if loc == nil {
		loc = time.UTC
	}
	month, day, err := ParseMonthDay(monthDay)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}

	y := now.In(loc).Year()
	if s := strings.TrimSpace(year); s != "" {
		if y, err = strconv.Atoi(s); err != nil || y < 1970 || y > 9999 {
			return time.Time{}, fmt.Errorf("invalid year %q", year)
		}
	}

	t := time.Date(y, month, day, hour, minute, 0, 0, loc)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("%04d-%02d-%02d is not a calendar date", y, month, day)
	}
	return t, nil
}

var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"}

// ParseInstant accepts RFC 3339. Timestamps without an offset are read as
// wall time in loc.
func ParseInstant(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrMissing
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}
