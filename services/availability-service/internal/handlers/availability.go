package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/clubcal/libs/otel"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/busy"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/chatfmt"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/coach"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/datefrag"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

type AvailabilityHandler struct {
	base
}

func NewAvailabilityHandler(provider Provider, logger *slog.Logger, settings Settings) *AvailabilityHandler {
	return &AvailabilityHandler{base: newBase(provider, nil, logger, settings)}
}

type prettyBody struct {
	Chat string `json:"chat"`
}

type availabilityResponse struct {
	Busy      []model.TimeRange `json:"busy"`
	FreeSlots []model.TimeRange `json:"freeSlots"`
	TimeZone  string            `json:"timeZone"`
	Pretty    *prettyBody       `json:"pretty,omitempty"`
}

type availabilityQuery struct {
	start, end  time.Time
	granularity time.Duration
	span        time.Duration
	mode        chatfmt.Mode
	calendarID  string
	coachAlias  string
	maxDays     int
}

func (h *AvailabilityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, err := readParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	q, err := h.parseQuery(p)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	ctx, span := otelx.Start(r.Context(), "availability-service", "availability.compute")
	defer span.End()
	span.SetAttributes(
		attribute.String("calendar.id", q.calendarID),
		attribute.String("coach.alias", q.coachAlias),
		attribute.Int("granularity.minutes", int(q.granularity/time.Minute)),
	)

	loc := h.settings.Location
	var intervals []model.Interval
	if identity, ok := h.settings.Coaches.Resolve(q.coachAlias); ok {
		events, err := h.provider.ListEvents(ctx, q.calendarID, q.start, q.end)
		if err != nil {
			span.RecordError(err)
			writeProviderError(w, r, h.logger, "availability.list_events", err)
			return
		}
		intervals = busy.Extract(events, identity, coach.IsPersonal(q.calendarID, identity), loc)
	} else {
		intervals, err = h.provider.QueryFreeBusy(ctx, q.calendarID, q.start, q.end)
		if err != nil {
			span.RecordError(err)
			writeProviderError(w, r, h.logger, "availability.freebusy", err)
			return
		}
	}

	slots := availability.FreeSlots(availability.Query{
		WindowStart:  q.start,
		WindowEnd:    q.end,
		Granularity:  q.granularity,
		RequiredSpan: q.span,
		Busy:         intervals,
		Hours:        h.settings.Hours,
		Location:     loc,
	})
	span.SetAttributes(attribute.Int("slots.free", len(slots)), attribute.Int("intervals.busy", len(intervals)))

	resp := availabilityResponse{
		Busy:      make([]model.TimeRange, 0, len(intervals)),
		FreeSlots: make([]model.TimeRange, 0, len(slots)),
		TimeZone:  loc.String(),
	}
	for _, b := range intervals {
		resp.Busy = append(resp.Busy, model.FormatRange(b.Start, b.End))
	}
	for _, s := range slots {
		resp.FreeSlots = append(resp.FreeSlots, model.FormatRange(s.Start, s.End))
	}

	if p["pretty"] == "chat" || strings.EqualFold(r.Header.Get("X-Pretty"), "chat") {
		name := q.coachAlias
		if name == "" {
			name = "Coach"
		}
		text := chatfmt.Format(slots, chatfmt.Options{
			DisplayName: name,
			Location:    loc,
			Mode:        q.mode,
			Granularity: q.granularity,
			MaxDays:     q.maxDays,
			Markdown:    p["md"] == "1",
		})
		if strings.Contains(r.Header.Get("Accept"), "text/plain") || p["format"] == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(text))
			return
		}
		resp.Pretty = &prettyBody{Chat: text}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AvailabilityHandler) parseQuery(p params) (availabilityQuery, error) {
	loc := h.settings.Location
	q := availabilityQuery{
		mode:       chatfmt.ParseMode(p["mode"]),
		calendarID: h.settings.CalendarID,
		coachAlias: p["coach"],
	}
	if id := p["calendarId"]; id != "" {
		q.calendarID = id
	}

	start, err := parseStart(p, h.settings.Now(), loc)
	if err != nil {
		return q, err
	}
	q.start = start

	durationMin, hasDuration, err := optionalMinutes(p["durationMin"], "durationMin")
	if err != nil {
		return q, err
	}
	switch {
	case p["end"] != "":
		if q.end, err = datefrag.ParseInstant(p["end"], loc); err != nil {
			return q, errors.New("invalid end")
		}
	case hasDuration:
		q.end = q.start.Add(h.settings.Lookahead)
	default:
		return q, errors.New("end or durationMin is required")
	}
	if !q.end.After(q.start) {
		return q, errors.New("end must be after start")
	}

	gran, err := positiveInt(p["granularity"], "granularity", 30)
	if err != nil {
		return q, err
	}
	q.granularity = time.Duration(gran) * time.Minute
	q.span = q.granularity
	if durationMin > 0 && strings.EqualFold(p["mode"], string(chatfmt.ModeStarts)) {
		q.span = time.Duration(durationMin) * time.Minute
	}

	if q.maxDays, err = positiveInt(p["maxDays"], "maxDays", 7); err != nil {
		return q, err
	}
	return q, nil
}

// parseStart prefers an explicit start and falls back to mes_dia + hora_match.
func parseStart(p params, now time.Time, loc *time.Location) (time.Time, error) {
	if raw := p["start"]; raw != "" {
		t, err := datefrag.ParseInstant(raw, loc)
		if err != nil {
			return time.Time{}, errors.New("invalid start (use ISO 8601, e.g. 2025-10-10T18:00:00Z)")
		}
		return t, nil
	}
	t, err := datefrag.StartFromPieces(p["mes_dia"], p["hora_match"], p["year"], now, loc)
	if errors.Is(err, datefrag.ErrMissing) {
		return time.Time{}, errors.New("start is required (or mes_dia and hora_match)")
	}
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
