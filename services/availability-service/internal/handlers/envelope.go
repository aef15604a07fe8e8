package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clubcal/libs/httpx"
	otelx "github.com/md-rashed-zaman/clubcal/libs/otel"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/calendar"
)

const (
	CodeValidation         = "VALIDATION"
	CodeOutOfBusinessHours = "OUT_OF_BUSINESS_HOURS"
	CodeInternal           = "INTERNAL"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type meta struct {
	CorrelationID string `json:"correlationId"`
	TS            string `json:"ts"`
}

type envelope struct {
	OK    bool      `json:"ok"`
	Data  any       `json:"data"`
	Error *apiError `json:"error"`
	Meta  meta      `json:"meta"`
}

func correlationID(r *http.Request) string {
	if id := httpx.CorrelationIDFromContext(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get(httpx.CorrelationIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, envelope{
		OK:   true,
		Data: data,
		Meta: meta{CorrelationID: correlationID(r), TS: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, envelope{
		OK:    false,
		Error: &apiError{Code: code, Message: message},
		Meta:  meta{CorrelationID: correlationID(r), TS: time.Now().UTC().Format(time.RFC3339)},
	})
}

// writeProviderError logs the raw cause and answers with the mapped code only.
func writeProviderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, where string, err error) {
	var pe *calendar.ProviderError
	if !errors.As(err, &pe) {
		pe = calendar.MapError(err)
	}
	logger.Error("calendar call failed",
		"where", where,
		"correlation_id", correlationID(r),
		"traceparent", otelx.TraceParent(r.Context()),
		"code", pe.Code,
		"status", pe.Status,
		"err", err,
	)
	writeError(w, r, pe.Status, pe.Code, pe.Message)
}
