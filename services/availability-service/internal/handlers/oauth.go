package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/calendar"
	"golang.org/x/oauth2"
)

// Consent is the authorization code flow used to mint a refresh token.
type Consent interface {
	URL() string
	Exchange(ctx context.Context, state, code string) (*oauth2.Token, error)
}

type OAuthHandler struct {
	consent Consent
	logger  *slog.Logger
}

func NewOAuthHandler(consent Consent, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{consent: consent, logger: logger}
}

func (h *OAuthHandler) AuthURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u := html.EscapeString(h.consent.URL())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, `<a href="%s">Authorize with Google</a><br/><small>%s</small>`, u, u)
}

func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	tok, err := h.consent.Exchange(r.Context(), q.Get("state"), code)
	if err != nil {
		if errors.Is(err, calendar.ErrStateMismatch) {
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}
		h.logger.Error("oauth exchange failed", "err", err)
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if tok.RefreshToken == "" {
		_, _ = fmt.Fprintln(w, "Google did not return a refresh token. Revoke the app's access and authorize again.")
		return
	}
	_, _ = fmt.Fprintf(w, "Copy this into your .env file:\n\nREFRESH_TOKEN=%s\n", tok.RefreshToken)
	if !tok.Expiry.IsZero() {
		_, _ = fmt.Fprintf(w, "\n# access token expires %s\n", tok.Expiry.UTC().Format(time.RFC3339))
	}
}
