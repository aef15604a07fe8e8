package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/coach"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/notify"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/policy"
)

// Provider is the slice of the calendar backend the HTTP layer needs.
type Provider interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]calendar.Event, error)
	QueryFreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]model.Interval, error)
	FindByExternalID(ctx context.Context, calendarID, externalID string) (*model.CalendarEvent, error)
	InsertEvent(ctx context.Context, b model.Booking) (*model.CalendarEvent, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, patch calendar.EventPatch, opts calendar.WriteOptions) (*model.CalendarEvent, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string, opts calendar.WriteOptions) error
	ListCalendars(ctx context.Context) ([]model.CalendarSummary, error)
	GetCalendar(ctx context.Context, calendarID string) (*model.CalendarSummary, error)
}

// Publisher receives booking mutations. It must not block.
type Publisher interface {
	Publish(ctx context.Context, evt notify.Event)
}

// Settings is the read-only club configuration shared by every handler.
type Settings struct {
	CalendarID         string
	Location           *time.Location
	Hours              policy.BusinessHours
	Coaches            *coach.Directory
	Lookahead          time.Duration
	DefaultSendUpdates string
	DefaultSummary     string
	DefaultDuration    time.Duration
	Now                func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.Hours == (policy.BusinessHours{}) {
		s.Hours = policy.Default()
	}
	if s.Lookahead <= 0 {
		s.Lookahead = 72 * time.Hour
	}
	if s.DefaultSendUpdates == "" {
		s.DefaultSendUpdates = "all"
	}
	if s.DefaultSummary == "" {
		s.DefaultSummary = "Clase Tropical Padel"
	}
	if s.DefaultDuration <= 0 {
		s.DefaultDuration = 60 * time.Minute
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, notify.Event) {}

type base struct {
	provider  Provider
	publisher Publisher
	logger    *slog.Logger
	settings  Settings
}

func newBase(provider Provider, publisher Publisher, logger *slog.Logger, settings Settings) base {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return base{provider: provider, publisher: publisher, logger: logger, settings: settings.withDefaults()}
}
