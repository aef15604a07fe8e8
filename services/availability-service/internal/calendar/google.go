package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/model"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	maxResultsPerPage = 2500
	externalIDKey     = "externalId"
)

// WriteOptions apply to patch and delete. An empty ETag makes the call unconditional.
type WriteOptions struct {
	SendUpdates string
	ETag        string
}

// EventPatch carries only the fields a caller wants to change.
type EventPatch struct {
	Summary     *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
	TimeZone    string
	Attendees   []model.Attendee
}

// GoogleProvider talks to the Google Calendar v3 REST API.
type GoogleProvider struct {
	svc      *gcal.Service
	timeZone string
	loc      *time.Location
}

func NewGoogleProvider(ctx context.Context, client *http.Client, loc *time.Location, opts ...option.ClientOption) (*GoogleProvider, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleProvider{svc: svc, timeZone: loc.String(), loc: loc}, nil
}

// ListEvents expands recurring events and drains every page before returning.
func (p *GoogleProvider) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error) {
	var out []Event
	err := p.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResultsPerPage).
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				out = append(out, fromAPI(item))
			}
			return nil
		})
	if err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

func (p *GoogleProvider) QueryFreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]model.Interval, error) {
	resp, err := p.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin:  timeMin.Format(time.RFC3339),
		TimeMax:  timeMax.Format(time.RFC3339),
		TimeZone: p.timeZone,
		Items:    []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, MapError(err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, &ProviderError{Status: http.StatusBadGateway, Code: CodeGoogleAPI, Message: fmt.Sprintf("freebusy failed for calendar (%s)", cal.Errors[0].Reason)}
	}
	busy := make([]model.Interval, 0, len(cal.Busy))
	for _, b := range cal.Busy {
		start, err := time.Parse(time.RFC3339, b.Start)
		if err != nil {
			return nil, fmt.Errorf("parse freebusy start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, b.End)
		if err != nil {
			return nil, fmt.Errorf("parse freebusy end: %w", err)
		}
		busy = append(busy, model.Interval{Start: start, End: end})
	}
	return busy, nil
}

// FindByExternalID returns the first non-cancelled event tagged with the
// private externalId property, or nil.
func (p *GoogleProvider) FindByExternalID(ctx context.Context, calendarID, externalID string) (*model.CalendarEvent, error) {
	resp, err := p.svc.Events.List(calendarID).
		PrivateExtendedProperty(externalIDKey + "=" + externalID).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, MapError(err)
	}
	for _, item := range resp.Items {
		if item.Status != StatusCancelled {
			ev := toModel(item)
			return &ev, nil
		}
	}
	return nil, nil
}

func (p *GoogleProvider) InsertEvent(ctx context.Context, b model.Booking) (*model.CalendarEvent, error) {
	tz := b.TimeZone
	if tz == "" {
		tz = p.timeZone
	}
	ev := &gcal.Event{
		Summary:     b.Summary,
		Description: b.Description,
		Start:       &gcal.EventDateTime{DateTime: b.Start.Format(time.RFC3339), TimeZone: tz},
		End:         &gcal.EventDateTime{DateTime: b.End.Format(time.RFC3339), TimeZone: tz},
		Attendees:   toAPIAttendees(b.Attendees),
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{externalIDKey: b.ExternalID},
		},
	}
	call := p.svc.Events.Insert(b.CalendarID, ev).Context(ctx)
	if b.SendUpdates != "" {
		call = call.SendUpdates(b.SendUpdates)
	}
	created, err := call.Do()
	if err != nil {
		return nil, MapError(err)
	}
	out := toModel(created)
	return &out, nil
}

func (p *GoogleProvider) PatchEvent(ctx context.Context, calendarID, eventID string, patch EventPatch, opts WriteOptions) (*model.CalendarEvent, error) {
	tz := patch.TimeZone
	if tz == "" {
		tz = p.timeZone
	}
	ev := &gcal.Event{Attendees: toAPIAttendees(patch.Attendees)}
	if patch.Summary != nil {
		ev.Summary = *patch.Summary
		ev.ForceSendFields = append(ev.ForceSendFields, "Summary")
	}
	if patch.Description != nil {
		ev.Description = *patch.Description
		ev.ForceSendFields = append(ev.ForceSendFields, "Description")
	}
	if patch.Location != nil {
		ev.Location = *patch.Location
		ev.ForceSendFields = append(ev.ForceSendFields, "Location")
	}
	if patch.Start != nil {
		ev.Start = &gcal.EventDateTime{DateTime: patch.Start.Format(time.RFC3339), TimeZone: tz}
	}
	if patch.End != nil {
		ev.End = &gcal.EventDateTime{DateTime: patch.End.Format(time.RFC3339), TimeZone: tz}
	}

	call := p.svc.Events.Patch(calendarID, eventID, ev).Context(ctx)
	if opts.SendUpdates != "" {
		call = call.SendUpdates(opts.SendUpdates)
	}
	if opts.ETag != "" {
		call.Header().Set("If-Match", opts.ETag)
	}
	updated, err := call.Do()
	if err != nil {
		return nil, MapError(err)
	}
	out := toModel(updated)
	return &out, nil
}

func (p *GoogleProvider) DeleteEvent(ctx context.Context, calendarID, eventID string, opts WriteOptions) error {
	call := p.svc.Events.Delete(calendarID, eventID).Context(ctx)
	if opts.SendUpdates != "" {
		call = call.SendUpdates(opts.SendUpdates)
	}
	if opts.ETag != "" {
		call.Header().Set("If-Match", opts.ETag)
	}
	if err := call.Do(); err != nil {
		return MapError(err)
	}
	return nil
}

func (p *GoogleProvider) ListCalendars(ctx context.Context) ([]model.CalendarSummary, error) {
	var out []model.CalendarSummary
	err := p.svc.CalendarList.List().Pages(ctx, func(page *gcal.CalendarList) error {
		for _, c := range page.Items {
			out = append(out, model.CalendarSummary{ID: c.Id, Summary: c.Summary, Primary: c.Primary, TimeZone: c.TimeZone})
		}
		return nil
	})
	if err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

func (p *GoogleProvider) GetCalendar(ctx context.Context, calendarID string) (*model.CalendarSummary, error) {
	c, err := p.svc.Calendars.Get(calendarID).Context(ctx).Do()
	if err != nil {
		return nil, MapError(err)
	}
	return &model.CalendarSummary{ID: c.Id, Summary: c.Summary, TimeZone: c.TimeZone}, nil
}

func fromAPI(item *gcal.Event) Event {
	ev := Event{
		ID:           item.Id,
		Status:       item.Status,
		Transparency: item.Transparency,
		Summary:      item.Summary,
		Description:  item.Description,
	}
	if item.Organizer != nil {
		ev.OrganizerEmail = item.Organizer.Email
	}
	for _, a := range item.Attendees {
		if a == nil {
			continue
		}
		ev.Attendees = append(ev.Attendees, Attendee{Email: a.Email, ResponseStatus: a.ResponseStatus})
	}
	// Unparseable boundaries stay nil and the event is dropped by the extractor.
	if item.Start != nil {
		ev.Start, _ = ParseBoundary(item.Start.DateTime, item.Start.Date)
	}
	if item.End != nil {
		ev.End, _ = ParseBoundary(item.End.DateTime, item.End.Date)
	}
	return ev
}

func toModel(item *gcal.Event) model.CalendarEvent {
	out := model.CalendarEvent{
		ID:          item.Id,
		Status:      item.Status,
		HTMLLink:    item.HtmlLink,
		ETag:        item.Etag,
		Summary:     item.Summary,
		Description: item.Description,
		Start:       eventTime(item.Start),
		End:         eventTime(item.End),
	}
	for _, a := range item.Attendees {
		if a != nil {
			out.Attendees = append(out.Attendees, model.Attendee{Email: a.Email, DisplayName: a.DisplayName})
		}
	}
	if item.ExtendedProperties != nil {
		out.ExternalID = item.ExtendedProperties.Private[externalIDKey]
	}
	return out
}

func eventTime(dt *gcal.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}

func toAPIAttendees(in []model.Attendee) []*gcal.EventAttendee {
	if len(in) == 0 {
		return nil
	}
	out := make([]*gcal.EventAttendee, 0, len(in))
	for _, a := range in {
		out = append(out, &gcal.EventAttendee{Email: a.Email, DisplayName: a.DisplayName})
	}
	return out
}
