package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/datefrag"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/notify"
)

// EventsHandler serves PATCH and DELETE on /events/{id}.
type EventsHandler struct {
	base
}

func NewEventsHandler(provider Provider, publisher Publisher, logger *slog.Logger, settings Settings) *EventsHandler {
	return &EventsHandler{base: newBase(provider, publisher, logger, settings)}
}

type patchRequest struct {
	CalendarID  string           `json:"calendarId"`
	SendUpdates string           `json:"sendUpdates"`
	ETag        string           `json:"etag"`
	Summary     *string          `json:"summary"`
	Description *string          `json:"description"`
	Location    *string          `json:"location"`
	Start       *eventTime       `json:"start"`
	End         *eventTime       `json:"end"`
	Attendees   []model.Attendee `json:"attendees"`
}

type patchResponse struct {
	Event *model.CalendarEvent `json:"event"`
}

type deleteResponse struct {
	Deleted string `json:"deleted"`
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "event id is required")
		return
	}
	switch r.Method {
	case http.MethodPatch:
		h.patch(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *EventsHandler) patch(w http.ResponseWriter, r *http.Request, id string) {
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "invalid json body")
		return
	}
	patch, err := h.buildPatch(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	if patch.Start != nil && patch.End != nil && !h.settings.Hours.Within(*patch.Start, *patch.End, h.settings.Location) {
		writeError(w, r, http.StatusBadRequest, CodeOutOfBusinessHours, "the new time is outside club hours")
		return
	}

	calendarID := firstNonEmpty(req.CalendarID, h.settings.CalendarID)
	opts := calendar.WriteOptions{
		SendUpdates: firstNonEmpty(req.SendUpdates, h.settings.DefaultSendUpdates),
		ETag:        strings.TrimSpace(req.ETag),
	}
	updated, err := h.provider.PatchEvent(r.Context(), calendarID, id, patch, opts)
	if err != nil {
		writeProviderError(w, r, h.logger, "events.patch", err)
		return
	}

	h.publisher.Publish(r.Context(), notify.Event{
		Type:          notify.EventUpdated,
		CalendarID:    calendarID,
		EventID:       updated.ID,
		ExternalID:    updated.ExternalID,
		Start:         updated.Start,
		End:           updated.End,
		CorrelationID: correlationID(r),
	})
	writeData(w, r, http.StatusOK, patchResponse{Event: updated})
}

func (h *EventsHandler) buildPatch(req patchRequest) (calendar.EventPatch, error) {
	patch := calendar.EventPatch{
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Attendees:   req.Attendees,
	}
	parse := func(t *eventTime, name string) (*time.Time, error) {
		if t == nil || t.DateTime == "" {
			return nil, nil
		}
		loc := h.settings.Location
		if t.TimeZone != "" {
			l, err := time.LoadLocation(t.TimeZone)
			if err != nil {
				return nil, errors.New("unknown " + name + ".timeZone")
			}
			loc, patch.TimeZone = l, t.TimeZone
		}
		v, err := datefrag.ParseInstant(t.DateTime, loc)
		if err != nil {
			return nil, errors.New("invalid " + name)
		}
		return &v, nil
	}

	var err error
	if patch.Start, err = parse(req.Start, "start"); err != nil {
		return patch, err
	}
	if patch.End, err = parse(req.End, "end"); err != nil {
		return patch, err
	}
	if patch.Start != nil && patch.End != nil && !patch.End.After(*patch.Start) {
		return patch, errors.New("end must be after start")
	}
	if req.SendUpdates != "" && !validSendUpdates(req.SendUpdates) {
		return patch, errors.New("sendUpdates must be all, externalOnly or none")
	}
	return patch, nil
}

func (h *EventsHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	q := r.URL.Query()
	calendarID := firstNonEmpty(q.Get("calendarId"), h.settings.CalendarID)
	sendUpdates := firstNonEmpty(q.Get("sendUpdates"), h.settings.DefaultSendUpdates)
	if !validSendUpdates(sendUpdates) {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "sendUpdates must be all, externalOnly or none")
		return
	}

	err := h.provider.DeleteEvent(r.Context(), calendarID, id, calendar.WriteOptions{
		SendUpdates: sendUpdates,
		ETag:        strings.TrimSpace(q.Get("etag")),
	})
	if err != nil {
		writeProviderError(w, r, h.logger, "events.delete", err)
		return
	}

	h.publisher.Publish(r.Context(), notify.Event{
		Type:          notify.EventDeleted,
		CalendarID:    calendarID,
		EventID:       id,
		CorrelationID: correlationID(r),
	})
	writeData(w, r, http.StatusOK, deleteResponse{Deleted: id})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
