package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

type HealthHandler struct {
	base
	tokens oauth2.TokenSource
}

func NewHealthHandler(provider Provider, tokens oauth2.TokenSource, logger *slog.Logger, settings Settings) *HealthHandler {
	return &HealthHandler{base: newBase(provider, nil, logger, settings), tokens: tokens}
}

type tokenInfo struct {
	HasAccessToken bool   `json:"has_access_token"`
	Expiry         string `json:"expiry,omitempty"`
}

type healthResponse struct {
	OK              bool       `json:"ok"`
	CalendarID      string     `json:"calendarId"`
	CalendarSummary string     `json:"calendarSummary"`
	TimeZone        string     `json:"timeZone"`
	Token           *tokenInfo `json:"token"`
}

// ServeHTTP reports whether the club calendar is reachable with the current
// credentials. Unlike /readyz it returns calendar metadata.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cal, err := h.provider.GetCalendar(r.Context(), h.settings.CalendarID)
	if err != nil {
		writeProviderError(w, r, h.logger, "health.calendar", err)
		return
	}

	resp := healthResponse{
		OK:              true,
		CalendarID:      h.settings.CalendarID,
		CalendarSummary: cal.Summary,
		TimeZone:        cal.TimeZone,
	}
	if h.tokens != nil {
		info := &tokenInfo{}
		if tok, err := h.tokens.Token(); err == nil && tok.AccessToken != "" {
			info.HasAccessToken = true
			if !tok.Expiry.IsZero() {
				info.Expiry = tok.Expiry.UTC().Format(time.RFC3339)
			}
		}
		resp.Token = info
	}
	writeJSON(w, http.StatusOK, resp)
}
