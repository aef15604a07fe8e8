package handlers

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/model"
)

// CalendarsHandler lists the calendars the configured identity can see.
type CalendarsHandler struct {
	base
}

func NewCalendarsHandler(provider Provider, logger *slog.Logger) *CalendarsHandler {
	return &CalendarsHandler{base: newBase(provider, nil, logger, Settings{})}
}

func (h *CalendarsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	items, err := h.provider.ListCalendars(r.Context())
	if err != nil {
		writeProviderError(w, r, h.logger, "calendars.list", err)
		return
	}
	if items == nil {
		items = []model.CalendarSummary{}
	}
	writeData(w, r, http.StatusOK, map[string]any{"calendars": items})
}
