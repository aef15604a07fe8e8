package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/datefrag"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/notify"
)

type BookHandler struct {
	base
}

func NewBookHandler(provider Provider, publisher Publisher, logger *slog.Logger, settings Settings) *BookHandler {
	return &BookHandler{base: newBase(provider, publisher, logger, settings)}
}

type bookRequest struct {
	Start       string           `json:"start"`
	End         string           `json:"end"`
	DurationMin looseString      `json:"durationMin"`
	TimeZone    string           `json:"timeZone"`
	Summary     string           `json:"summary"`
	Description string           `json:"description"`
	Attendees   []model.Attendee `json:"attendees"`
	SendUpdates string           `json:"sendUpdates"`
	ExternalID  string           `json:"externalId"`
	CoachID     string           `json:"coach_id"`
	MesDia      looseString      `json:"mes_dia"`
	HoraMatch   looseString      `json:"hora_match"`
	Year        looseString      `json:"year"`
}

type bookResponse struct {
	Event      *model.CalendarEvent `json:"event"`
	Idempotent bool                 `json:"idempotent,omitempty"`
}

func (h *BookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "invalid json body")
		return
	}

	booking, err := h.validate(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	if !h.settings.Hours.Within(booking.Start, booking.End, h.settings.Location) {
		writeError(w, r, http.StatusBadRequest, CodeOutOfBusinessHours, h.hoursMessage())
		return
	}

	ctx := r.Context()
	if strings.TrimSpace(req.ExternalID) != "" {
		existing, err := h.provider.FindByExternalID(ctx, booking.CalendarID, booking.ExternalID)
		if err != nil {
			writeProviderError(w, r, h.logger, "book.find_external_id", err)
			return
		}
		if existing != nil {
			writeData(w, r, http.StatusOK, bookResponse{Event: existing, Idempotent: true})
			return
		}
	}

	created, err := h.provider.InsertEvent(ctx, booking)
	if err != nil {
		writeProviderError(w, r, h.logger, "book.insert", err)
		return
	}

	h.publisher.Publish(ctx, notify.Event{
		Type:          notify.EventCreated,
		CalendarID:    booking.CalendarID,
		EventID:       created.ID,
		ExternalID:    booking.ExternalID,
		Start:         booking.Start.UTC().Format(time.RFC3339),
		End:           booking.End.UTC().Format(time.RFC3339),
		CorrelationID: correlationID(r),
	})
	h.logger.Info("booking created", "event_id", created.ID, "external_id", booking.ExternalID, "correlation_id", correlationID(r))
	writeData(w, r, http.StatusCreated, bookResponse{Event: created})
}

func (h *BookHandler) validate(req bookRequest) (model.Booking, error) {
	loc := h.settings.Location
	tz := strings.TrimSpace(req.TimeZone)
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return model.Booking{}, fmt.Errorf("unknown timeZone %q", tz)
		}
	}

	start, err := parseStart(params{
		"start":      strings.TrimSpace(req.Start),
		"mes_dia":    string(req.MesDia),
		"hora_match": string(req.HoraMatch),
		"year":       string(req.Year),
	}, h.settings.Now(), loc)
	if err != nil {
		return model.Booking{}, err
	}

	duration := h.settings.DefaultDuration
	mins, _, err := optionalMinutes(string(req.DurationMin), "durationMin")
	if err != nil {
		return model.Booking{}, err
	}
	if mins > 0 {
		duration = time.Duration(mins) * time.Minute
	}

	end := start.Add(duration)
	if raw := strings.TrimSpace(req.End); raw != "" {
		if end, err = datefrag.ParseInstant(raw, loc); err != nil {
			return model.Booking{}, errors.New("invalid end")
		}
	}
	if !end.After(start) {
		return model.Booking{}, errors.New("end must be after start")
	}

	b := model.Booking{
		CalendarID:  h.settings.CalendarID,
		Summary:     strings.TrimSpace(req.Summary),
		Description: strings.TrimSpace(req.Description),
		Start:       start,
		End:         end,
		TimeZone:    tz,
		ExternalID:  strings.TrimSpace(req.ExternalID),
		SendUpdates: strings.TrimSpace(req.SendUpdates),
	}
	if b.Summary == "" {
		b.Summary = h.settings.DefaultSummary
	}
	if b.TimeZone == "" {
		b.TimeZone = loc.String()
	}
	if b.ExternalID == "" {
		b.ExternalID = "tp-" + uuid.NewString()
	}
	if b.SendUpdates == "" {
		b.SendUpdates = h.settings.DefaultSendUpdates
	}
	if !validSendUpdates(b.SendUpdates) {
		return model.Booking{}, errors.New("sendUpdates must be all, externalOnly or none")
	}

	for _, a := range req.Attendees {
		if a.Email = strings.TrimSpace(a.Email); a.Email == "" {
			return model.Booking{}, errors.New("attendee email is required")
		}
		b.Attendees = append(b.Attendees, a)
	}
	// The coach joins as an attendee so the class shows up as their busy time.
	if identity, ok := h.settings.Coaches.Resolve(req.CoachID); ok && !hasAttendee(b.Attendees, identity.Email) {
		b.Attendees = append(b.Attendees, model.Attendee{Email: identity.Email, DisplayName: identity.Alias})
	}
	return b, nil
}

func (h *BookHandler) hoursMessage() string {
	hours := h.settings.Hours
	return fmt.Sprintf("the club is open Mon-Fri %s and Sat-Sun %s (%s); choose a time inside that window",
		hours.Weekday, hours.Weekend, h.settings.Location)
}

func validSendUpdates(v string) bool {
	switch v {
	case "all", "externalOnly", "none":
		return true
	}
	return false
}

func hasAttendee(list []model.Attendee, email string) bool {
	for _, a := range list {
		if strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}
