// Package chatfmt renders free slots as a short, chat friendly summary.
package chatfmt

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang-module/carbon/v2"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/model"
)

type Mode string

const (
	ModeStarts Mode = "starts"
	ModeRanges Mode = "ranges"
)

// ParseMode falls back to ModeStarts for anything but "ranges".
func ParseMode(raw string) Mode {
	if strings.EqualFold(strings.TrimSpace(raw), string(ModeRanges)) {
		return ModeRanges
	}
	return ModeStarts
}

type Options struct {
	DisplayName string
	Locale      string
	Location    *time.Location
	Mode        Mode
	Granularity time.Duration
	MaxDays     int
	Markdown    bool
	EmptyLabel  string
	Emoji       string
	DayFormat   string // carbon layout, e.g. "l d/m"
	TimeFormat  string // Go layout, e.g. "15:04"
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.DisplayName) == "" {
		o.DisplayName = "Coach"
	}
	if o.Locale == "" {
		o.Locale = "es"
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Mode != ModeRanges {
		o.Mode = ModeStarts
	}
	if o.Granularity <= 0 {
		o.Granularity = 30 * time.Minute
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 7
	}
	if o.EmptyLabel == "" {
		o.EmptyLabel = "sin horarios disponibles"
	}
	if o.Emoji == "" {
		o.Emoji = "🗓"
	}
	if o.DayFormat == "" {
		o.DayFormat = "l d/m"
	}
	if o.TimeFormat == "" {
		o.TimeFormat = "15:04"
	}
	return o
}

type day struct {
	key   string
	first time.Time
	slots []model.Slot
}

// Format groups slots by local day (earliest first, at most MaxDays) and
// renders one line per day under a title.
func Format(slots []model.Slot, opts Options) string {
	o := opts.withDefaults()

	title := o.Emoji + " Disponibilidad de " + o.DisplayName + ":"
	if o.Markdown {
		title = "**" + title + "**"
	}
	if len(slots) == 0 {
		return title + "\n• " + o.EmptyLabel
	}

	days := groupByDay(slots, o.Location)
	if len(days) > o.MaxDays {
		days = days[:o.MaxDays]
	}

	lines := make([]string, 0, len(days)+1)
	lines = append(lines, title)
	for _, d := range days {
		var pieces []string
		if o.Mode == ModeRanges {
			pieces = rangePieces(d.slots, o)
		} else {
			pieces = startPieces(d.slots, o)
		}
		body := o.EmptyLabel
		if len(pieces) > 0 {
			body = strings.Join(pieces, ", ")
		}
		lines = append(lines, "• "+dayLabel(d.first, o)+" — "+body)
	}
	return strings.Join(lines, "\n")
}

func groupByDay(slots []model.Slot, loc *time.Location) []*day {
	byKey := map[string]*day{}
	var days []*day
	for _, s := range slots {
		local := s.Start.In(loc)
		key := local.Format(time.DateOnly)
		d, ok := byKey[key]
		if !ok {
			d = &day{key: key, first: local}
			byKey[key] = d
			days = append(days, d)
		}
		d.slots = append(d.slots, s)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].key < days[j].key })
	for _, d := range days {
		sort.SliceStable(d.slots, func(i, j int) bool { return d.slots[i].Start.Before(d.slots[j].Start) })
		d.first = d.slots[0].Start.In(loc)
	}
	return days
}

func startPieces(slots []model.Slot, o Options) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.In(o.Location).Format(o.TimeFormat))
	}
	return out
}

// rangePieces merges a slot into the previous range when the gap between
// them is zero or exactly one granularity.
func rangePieces(slots []model.Slot, o Options) []string {
	var out []string
	cur := slots[0]
	flush := func() {
		out = append(out, cur.Start.In(o.Location).Format(o.TimeFormat)+"–"+cur.End.In(o.Location).Format(o.TimeFormat))
	}
	for _, s := range slots[1:] {
		gap := s.Start.Sub(cur.End)
		if gap == 0 || gap == o.Granularity {
			if s.End.After(cur.End) {
				cur.End = s.End
			}
			continue
		}
		flush()
		cur = s
	}
	flush()
	return out
}

func dayLabel(t time.Time, o Options) string {
	c := carbon.CreateFromTimestamp(t.Unix(), o.Location.String()).SetLocale(o.Locale)
	label := ""
	if c.Error == nil {
		label = c.Format(o.DayFormat)
	}
	if label == "" {
		label = t.Format("Monday 02/01")
	}
	return capitalize(label)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
