package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/coach"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/notify"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/policy"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls []string

	events   []calendar.Event
	busy     []model.Interval
	existing *model.CalendarEvent
	err      error

	inserted  *model.Booking
	patched   *calendar.EventPatch
	writeOpts calendar.WriteOptions
	listedCal string
}

func (f *fakeProvider) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeProvider) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (f *fakeProvider) ListEvents(_ context.Context, calendarID string, _, _ time.Time) ([]calendar.Event, error) {
	f.record("ListEvents")
	f.listedCal = calendarID
	return f.events, f.err
}

func (f *fakeProvider) QueryFreeBusy(_ context.Context, calendarID string, _, _ time.Time) ([]model.Interval, error) {
	f.record("QueryFreeBusy")
	f.listedCal = calendarID
	return f.busy, f.err
}

func (f *fakeProvider) FindByExternalID(context.Context, string, string) (*model.CalendarEvent, error) {
	f.record("FindByExternalID")
	return f.existing, nil
}

func (f *fakeProvider) InsertEvent(_ context.Context, b model.Booking) (*model.CalendarEvent, error) {
	f.record("InsertEvent")
	if f.err != nil {
		return nil, f.err
	}
	f.inserted = &b
	return &model.CalendarEvent{ID: "evt-1", Summary: b.Summary, ExternalID: b.ExternalID}, nil
}

func (f *fakeProvider) PatchEvent(_ context.Context, _, eventID string, patch calendar.EventPatch, opts calendar.WriteOptions) (*model.CalendarEvent, error) {
	f.record("PatchEvent")
	if f.err != nil {
		return nil, f.err
	}
	f.patched, f.writeOpts = &patch, opts
	return &model.CalendarEvent{ID: eventID}, nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, _, _ string, opts calendar.WriteOptions) error {
	f.record("DeleteEvent")
	f.writeOpts = opts
	return f.err
}

func (f *fakeProvider) ListCalendars(context.Context) ([]model.CalendarSummary, error) {
	f.record("ListCalendars")
	return []model.CalendarSummary{{ID: "club", Summary: "Club", Primary: true}}, f.err
}

func (f *fakeProvider) GetCalendar(_ context.Context, id string) (*model.CalendarSummary, error) {
	f.record("GetCalendar")
	if f.err != nil {
		return nil, f.err
	}
	return &model.CalendarSummary{ID: id, Summary: "Tropical Padel", TimeZone: "America/Mexico_City"}, nil
}

type recordingPublisher struct {
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt notify.Event) {
	p.events = append(p.events, evt)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings(t *testing.T) Settings {
	t.Helper()
	loc, err := time.LoadLocation("America/Mexico_City")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	dir, err := coach.ParseDirectory("Enzo=enzo@club.mx")
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}
	return Settings{
		CalendarID: "club@group.calendar.google.com",
		Location:   loc,
		Hours:      policy.Default(),
		Coaches:    dir,
		Now:        func() time.Time { return time.Date(2025, 10, 1, 12, 0, 0, 0, loc) },
	}
}

func decodeEnvelope(t *testing.T, body io.Reader) (envelope, map[string]any) {
	t.Helper()
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var env envelope
	b, _ := json.Marshal(raw)
	_ = json.Unmarshal(b, &env)
	data, _ := raw["data"].(map[string]any)
	return env, data
}

func TestAvailability_FreeBusyDay(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{busy: []model.Interval{{
		Start: time.Date(2025, 10, 7, 9, 0, 0, 0, s.Location),
		End:   time.Date(2025, 10, 7, 10, 0, 0, 0, s.Location),
	}}}
	h := NewAvailabilityHandler(fp, testLogger(), s)

	req := httptest.NewRequest(http.MethodGet, "/availability?start=2025-10-07T07:00:00&end=2025-10-07T23:00:00", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}

	var resp availabilityResponse
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !fp.called("QueryFreeBusy") || fp.called("ListEvents") {
		t.Fatalf("expected freebusy path, calls=%v", fp.calls)
	}
	if fp.listedCal != s.CalendarID {
		t.Fatalf("expected club calendar, got %q", fp.listedCal)
	}
	if resp.TimeZone != "America/Mexico_City" || len(resp.Busy) != 1 {
		t.Fatalf("unexpected response header fields: %+v", resp)
	}
	if len(resp.FreeSlots) != 29 {
		t.Fatalf("expected 29 free slots, got %d", len(resp.FreeSlots))
	}
	// 22:00 local is 04:00Z the next day.
	last := resp.FreeSlots[len(resp.FreeSlots)-1]
	if last.Start != "2025-10-08T04:00:00Z" || last.End != "2025-10-08T04:30:00Z" {
		t.Fatalf("unexpected last slot %+v", last)
	}
	if resp.Pretty != nil {
		t.Fatalf("pretty output should be opt-in")
	}
}

func TestAvailability_CoachUsesEventList(t *testing.T) {
	s := testSettings(t)
	at := func(h int) calendar.Boundary {
		return calendar.TimedBoundary{At: time.Date(2025, 10, 7, h, 0, 0, 0, s.Location)}
	}
	fp := &fakeProvider{events: []calendar.Event{
		{OrganizerEmail: "enzo@club.mx", Start: at(9), End: at(10)},
		{Summary: "Clase Lucia", Start: at(11), End: at(12)},
	}}
	h := NewAvailabilityHandler(fp, testLogger(), s)

	req := httptest.NewRequest(http.MethodGet, "/availability?start=2025-10-07T07:00:00&end=2025-10-07T13:00:00&coach=enzo", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp availabilityResponse
	_ = json.NewDecoder(rw.Body).Decode(&resp)
	if !fp.called("ListEvents") || fp.called("QueryFreeBusy") {
		t.Fatalf("expected event list path, calls=%v", fp.calls)
	}
	if len(resp.Busy) != 1 {
		t.Fatalf("only the coach's class should be busy, got %v", resp.Busy)
	}
	// 07:00-13:00 is 12 slots, minus 09:00 and 09:30.
	if len(resp.FreeSlots) != 10 {
		t.Fatalf("expected 10 free slots, got %d", len(resp.FreeSlots))
	}
}

func TestAvailability_PersonalCalendarCountsEverything(t *testing.T) {
	s := testSettings(t)
	at := func(h int) calendar.Boundary {
		return calendar.TimedBoundary{At: time.Date(2025, 10, 7, h, 0, 0, 0, s.Location)}
	}
	fp := &fakeProvider{events: []calendar.Event{{Summary: "Dentista", Start: at(11), End: at(12)}}}
	h := NewAvailabilityHandler(fp, testLogger(), s)

	req := httptest.NewRequest(http.MethodGet, "/availability?start=2025-10-07T07:00:00&end=2025-10-07T13:00:00&coach=Enzo&calendarId=enzo@club.mx", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	var resp availabilityResponse
	_ = json.NewDecoder(rw.Body).Decode(&resp)
	if fp.listedCal != "enzo@club.mx" || len(resp.Busy) != 1 {
		t.Fatalf("expected personal calendar busy interval, cal=%q busy=%v", fp.listedCal, resp.Busy)
	}
}

func TestAvailability_DurationWidensCheckedSpan(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{busy: []model.Interval{{
		Start: time.Date(2025, 10, 7, 9, 0, 0, 0, s.Location),
		End:   time.Date(2025, 10, 7, 10, 0, 0, 0, s.Location),
	}}}
	h := NewAvailabilityHandler(fp, testLogger(), s)

	body := strings.NewReader(`{"mes_dia":"10/7","hora_match":"7","durationMin":90,"mode":"starts"}`)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/availability", body))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp availabilityResponse
	_ = json.NewDecoder(rw.Body).Decode(&resp)

	starts := map[string]bool{}
	for _, fs := range resp.FreeSlots {
		st, _ := time.Parse(time.RFC3339, fs.Start)
		starts[st.In(s.Location).Format("01-02 15:04")] = true
	}
	if !starts["10-07 07:30"] {
		t.Fatalf("07:30 has 90 free minutes and should be offered")
	}
	if starts["10-07 08:00"] {
		t.Fatalf("08:00 runs into the 09:00 class and must be skipped")
	}
	if !starts["10-09 21:00"] || starts["10-09 21:30"] {
		t.Fatalf("the 90 minute span must also fit before close")
	}
}

func TestAvailability_ZeroDurationOpensLookahead(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{busy: []model.Interval{{
		Start: time.Date(2025, 10, 7, 9, 0, 0, 0, s.Location),
		End:   time.Date(2025, 10, 7, 10, 0, 0, 0, s.Location),
	}}}
	h := NewAvailabilityHandler(fp, testLogger(), s)

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/availability?start=2025-10-07T07:00:00&durationMin=0&mode=starts", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp availabilityResponse
	_ = json.NewDecoder(rw.Body).Decode(&resp)

	starts := map[string]bool{}
	for _, fs := range resp.FreeSlots {
		st, _ := time.Parse(time.RFC3339, fs.Start)
		starts[st.In(s.Location).Format("01-02 15:04")] = true
	}
	if !starts["10-07 08:30"] || starts["10-07 09:00"] {
		t.Fatalf("a zero duration should check one granularity, got %v", resp.FreeSlots)
	}
	if !starts["10-09 22:00"] {
		t.Fatalf("a zero duration should still open the lookahead window")
	}
}

func TestAvailability_ChatText(t *testing.T) {
	s := testSettings(t)
	h := NewAvailabilityHandler(&fakeProvider{}, testLogger(), s)

	req := httptest.NewRequest(http.MethodGet, "/availability?start=2025-10-11T12:00:00&end=2025-10-11T15:00:00&coach=Lucia&pretty=chat&format=text&mode=ranges&md=1", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if ct := rw.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain, got %q", ct)
	}
	lines := strings.Split(rw.Body.String(), "\n")
	if len(lines) != 2 || lines[0] != "**🗓 Disponibilidad de Lucia:**" {
		t.Fatalf("unexpected chat text %q", rw.Body.String())
	}
	// Saturday closes at 14:00.
	if !strings.HasSuffix(lines[1], " — 12:00–14:00") {
		t.Fatalf("unexpected day line %q", lines[1])
	}
}

func TestAvailability_ValidationBeforeProvider(t *testing.T) {
	s := testSettings(t)
	cases := map[string]string{
		"missing start":     "/availability?end=2025-10-07T23:00:00",
		"missing end":       "/availability?start=2025-10-07T07:00:00",
		"bad start":         "/availability?start=tomorrow&end=2025-10-07T23:00:00",
		"end before start":  "/availability?start=2025-10-07T12:00:00&end=2025-10-07T07:00:00",
		"bad granularity":   "/availability?start=2025-10-07T07:00:00&end=2025-10-07T23:00:00&granularity=0",
		"bad month day":     "/availability?mes_dia=13/45&hora_match=9&durationMin=60",
		"negative duration": "/availability?start=2025-10-07T07:00:00&durationMin=-30",
	}
	for name, target := range cases {
		fp := &fakeProvider{}
		h := NewAvailabilityHandler(fp, testLogger(), s)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, target, nil))
		if rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rw.Code)
		}
		env, _ := decodeEnvelope(t, rw.Body)
		if env.OK || env.Error == nil || env.Error.Code != CodeValidation {
			t.Fatalf("%s: expected VALIDATION envelope, got %+v", name, env)
		}
		if len(fp.calls) != 0 {
			t.Fatalf("%s: provider must not be called, got %v", name, fp.calls)
		}
	}
}

func TestAvailability_ProviderErrorIsMapped(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{err: calendar.MapError(&googleapi.Error{Code: http.StatusUnauthorized, Body: "secret"})}
	h := NewAvailabilityHandler(fp, testLogger(), s)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/availability?start=2025-10-07T07:00:00&durationMin=60", nil))
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
	if strings.Contains(rw.Body.String(), "secret") {
		t.Fatalf("provider payload leaked: %s", rw.Body.String())
	}
	env, _ := decodeEnvelope(t, rw.Body)
	if env.Error == nil || env.Error.Code != calendar.CodeAuth {
		t.Fatalf("expected AUTH, got %+v", env.Error)
	}
}

func TestBook_Created(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{}
	pub := &recordingPublisher{}
	h := NewBookHandler(fp, pub, testLogger(), s)

	req := httptest.NewRequest(http.MethodPost, "/book", strings.NewReader(`{"start":"2025-10-07T15:00:00Z","coach_id":"Enzo","attendees":[{"email":"alumno@example.com"}]}`))
	req.Header.Set("X-Correlation-Id", "corr-42")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	env, data := decodeEnvelope(t, rw.Body)
	if !env.OK || env.Meta.CorrelationID != "corr-42" || env.Meta.TS == "" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if data["event"] == nil {
		t.Fatalf("expected event in data")
	}

	b := fp.inserted
	if b == nil {
		t.Fatalf("expected insert")
	}
	if b.Summary != "Clase Tropical Padel" || b.SendUpdates != "all" || !strings.HasPrefix(b.ExternalID, "tp-") {
		t.Fatalf("defaults not applied: %+v", b)
	}
	if b.End.Sub(b.Start) != time.Hour {
		t.Fatalf("expected default 60 minute class, got %s", b.End.Sub(b.Start))
	}
	if len(b.Attendees) != 2 || b.Attendees[1].Email != "enzo@club.mx" {
		t.Fatalf("expected coach to be added as attendee, got %+v", b.Attendees)
	}
	if fp.called("FindByExternalID") {
		t.Fatalf("generated external ids need no lookup")
	}
	if len(pub.events) != 1 || pub.events[0].Type != notify.EventCreated || pub.events[0].CorrelationID != "corr-42" {
		t.Fatalf("expected created event, got %+v", pub.events)
	}
}

func TestBook_ZeroDurationUsesDefault(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{}
	h := NewBookHandler(fp, &recordingPublisher{}, testLogger(), s)

	req := httptest.NewRequest(http.MethodPost, "/book", strings.NewReader(`{"start":"2025-10-07T15:00:00Z","durationMin":0}`))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	if fp.inserted == nil || fp.inserted.End.Sub(fp.inserted.Start) != time.Hour {
		t.Fatalf("expected default 60 minute class, got %+v", fp.inserted)
	}
}

func TestBook_IdempotentReplay(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{existing: &model.CalendarEvent{ID: "evt-0", ExternalID: "tp-abc"}}
	pub := &recordingPublisher{}
	h := NewBookHandler(fp, pub, testLogger(), s)

	req := httptest.NewRequest(http.MethodPost, "/book", strings.NewReader(`{"mes_dia":"10-7","hora_match":"9:00","durationMin":"90","externalId":"tp-abc"}`))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	_, data := decodeEnvelope(t, rw.Body)
	if data["idempotent"] != true {
		t.Fatalf("expected idempotent flag, got %v", data)
	}
	if fp.called("InsertEvent") || len(pub.events) != 0 {
		t.Fatalf("replay must not insert or publish")
	}
}

func TestBook_OutOfBusinessHours(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{}
	h := NewBookHandler(fp, nil, testLogger(), s)

	// Saturday 13:30 local for an hour runs past the 14:00 close.
	req := httptest.NewRequest(http.MethodPost, "/book", strings.NewReader(`{"start":"2025-10-11T13:30:00","durationMin":60}`))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
	env, _ := decodeEnvelope(t, rw.Body)
	if env.Error == nil || env.Error.Code != CodeOutOfBusinessHours {
		t.Fatalf("expected OUT_OF_BUSINESS_HOURS, got %+v", env.Error)
	}
	if len(fp.calls) != 0 {
		t.Fatalf("provider must not be called, got %v", fp.calls)
	}
}

func TestBook_Validation(t *testing.T) {
	s := testSettings(t)
	bodies := map[string]string{
		"not json":       `{`,
		"no start":       `{"durationMin":60}`,
		"bad duration":   `{"start":"2025-10-07T15:00:00Z","durationMin":-5}`,
		"end before":     `{"start":"2025-10-07T15:00:00Z","end":"2025-10-07T14:00:00Z"}`,
		"bad timezone":   `{"start":"2025-10-07T15:00:00Z","timeZone":"Mars/Olympus"}`,
		"bad updates":    `{"start":"2025-10-07T15:00:00Z","sendUpdates":"everyone"}`,
		"blank attendee": `{"start":"2025-10-07T15:00:00Z","attendees":[{"email":" "}]}`,
	}
	for name, body := range bodies {
		fp := &fakeProvider{}
		h := NewBookHandler(fp, nil, testLogger(), s)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/book", strings.NewReader(body)))
		if rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rw.Code)
		}
		if len(fp.calls) != 0 {
			t.Fatalf("%s: provider must not be called", name)
		}
	}
}

func TestBook_ProviderPermissionError(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{err: &googleapi.Error{Code: http.StatusForbidden}}
	h := NewBookHandler(fp, nil, testLogger(), s)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/book", strings.NewReader(`{"start":"2025-10-07T15:00:00Z"}`)))
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}
	env, _ := decodeEnvelope(t, rw.Body)
	if env.Error == nil || env.Error.Code != calendar.CodePermission {
		t.Fatalf("expected PERMISSION, got %+v", env.Error)
	}
}

func newEventsMux(h http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/events/{id}", h)
	return mux
}

func TestEvents_PatchWithETag(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{}
	pub := &recordingPublisher{}
	mux := newEventsMux(NewEventsHandler(fp, pub, testLogger(), s))

	body := `{"etag":"\"v1\"","sendUpdates":"none","summary":"Clase movida","start":{"dateTime":"2025-10-07T10:00:00-06:00"},"end":"2025-10-07T11:00:00-06:00"}`
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodPatch, "/events/evt-9", strings.NewReader(body)))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	if fp.writeOpts.ETag != `"v1"` || fp.writeOpts.SendUpdates != "none" {
		t.Fatalf("unexpected write options %+v", fp.writeOpts)
	}
	if fp.patched == nil || fp.patched.Summary == nil || *fp.patched.Summary != "Clase movida" || fp.patched.Start == nil {
		t.Fatalf("unexpected patch %+v", fp.patched)
	}
	if fp.patched.Description != nil {
		t.Fatalf("absent fields must stay untouched")
	}
	if len(pub.events) != 1 || pub.events[0].Type != notify.EventUpdated {
		t.Fatalf("expected updated event, got %+v", pub.events)
	}
}

func TestEvents_PatchETagMismatch(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{err: &googleapi.Error{Code: http.StatusPreconditionFailed}}
	mux := newEventsMux(NewEventsHandler(fp, nil, testLogger(), s))
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodPatch, "/events/evt-9", strings.NewReader(`{"etag":"old","summary":"x"}`)))
	if rw.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", rw.Code)
	}
	env, _ := decodeEnvelope(t, rw.Body)
	if env.Error == nil || env.Error.Code != calendar.CodeConflictTag {
		t.Fatalf("expected CONFLICT_ETAG, got %+v", env.Error)
	}
}

func TestEvents_Delete(t *testing.T) {
	s := testSettings(t)
	fp := &fakeProvider{}
	pub := &recordingPublisher{}
	mux := newEventsMux(NewEventsHandler(fp, pub, testLogger(), s))

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodDelete, "/events/evt-9?etag=v2", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	_, data := decodeEnvelope(t, rw.Body)
	if data["deleted"] != "evt-9" {
		t.Fatalf("unexpected data %v", data)
	}
	if fp.writeOpts.ETag != "v2" || fp.writeOpts.SendUpdates != "all" {
		t.Fatalf("unexpected write options %+v", fp.writeOpts)
	}
	if len(pub.events) != 1 || pub.events[0].Type != notify.EventDeleted {
		t.Fatalf("expected deleted event")
	}

	rw = httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/events/evt-9", nil))
	if rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rw.Code)
	}
}

type staticTokens struct {
	tok *oauth2.Token
	err error
}

func (s staticTokens) Token() (*oauth2.Token, error) { return s.tok, s.err }

func TestHealth(t *testing.T) {
	s := testSettings(t)
	h := NewHealthHandler(&fakeProvider{}, staticTokens{tok: &oauth2.Token{AccessToken: "a", Expiry: time.Date(2025, 10, 7, 16, 0, 0, 0, time.UTC)}}, testLogger(), s)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp healthResponse
	_ = json.NewDecoder(rw.Body).Decode(&resp)
	if resp.CalendarSummary != "Tropical Padel" || resp.Token == nil || !resp.Token.HasAccessToken || resp.Token.Expiry != "2025-10-07T16:00:00Z" {
		t.Fatalf("unexpected health %+v", resp)
	}

	h = NewHealthHandler(&fakeProvider{}, staticTokens{err: errors.New("revoked")}, testLogger(), s)
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/health", nil))
	_ = json.NewDecoder(rw.Body).Decode(&resp)
	if resp.Token == nil || resp.Token.HasAccessToken {
		t.Fatalf("expected missing access token to be reported")
	}
}

func TestCalendars(t *testing.T) {
	h := NewCalendarsHandler(&fakeProvider{}, testLogger())
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/calendars", nil))
	_, data := decodeEnvelope(t, rw.Body)
	items, _ := data["calendars"].([]any)
	if rw.Code != http.StatusOK || len(items) != 1 {
		t.Fatalf("unexpected calendars response %d %v", rw.Code, data)
	}
}

type fakeConsent struct{}

func (fakeConsent) URL() string { return "https://accounts.example/auth?state=s&x=<y>" }

func (fakeConsent) Exchange(_ context.Context, state, code string) (*oauth2.Token, error) {
	if state != "s" {
		return nil, calendar.ErrStateMismatch
	}
	return &oauth2.Token{AccessToken: "a", RefreshToken: "refresh-" + code}, nil
}

func TestOAuthHandler(t *testing.T) {
	h := NewOAuthHandler(fakeConsent{}, testLogger())

	rw := httptest.NewRecorder()
	h.AuthURL(rw, httptest.NewRequest(http.MethodGet, "/auth/url", nil))
	if !strings.Contains(rw.Body.String(), "&lt;y&gt;") {
		t.Fatalf("expected escaped url, got %s", rw.Body.String())
	}

	rw = httptest.NewRecorder()
	h.Callback(rw, httptest.NewRequest(http.MethodGet, "/oauth2callback?state=s&code=abc", nil))
	if rw.Code != http.StatusOK || !strings.Contains(rw.Body.String(), "REFRESH_TOKEN=refresh-abc") {
		t.Fatalf("unexpected callback %d %s", rw.Code, rw.Body.String())
	}

	rw = httptest.NewRecorder()
	h.Callback(rw, httptest.NewRequest(http.MethodGet, "/oauth2callback?state=evil&code=abc", nil))
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on state mismatch, got %d", rw.Code)
	}
}
