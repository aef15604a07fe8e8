package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	gcal "google.golang.org/api/calendar/v3"
)

type AuthMode string

const (
	AuthOAuthUser      AuthMode = "OAUTH_USER"
	AuthServiceAccount AuthMode = "SERVICE_ACCOUNT"
)

// Credentials selects how the service authenticates against Google Calendar.
type Credentials struct {
	Mode AuthMode

	// OAUTH_USER
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RefreshToken string

	// SERVICE_ACCOUNT
	ServiceAccountEmail string
	PrivateKey          string // literal "\n" sequences are accepted
	Subject             string // user to impersonate, optional
}

var ErrUnknownAuthMode = errors.New("unknown auth mode")

// Validate reports every missing variable for the selected mode at once.
func (c Credentials) Validate() error {
	var missing []string
	switch c.Mode {
	case AuthOAuthUser:
		if c.ClientID == "" {
			missing = append(missing, "CLIENT_ID")
		}
		if c.ClientSecret == "" {
			missing = append(missing, "CLIENT_SECRET")
		}
		if c.RefreshToken == "" {
			missing = append(missing, "REFRESH_TOKEN")
		}
	case AuthServiceAccount:
		if c.ServiceAccountEmail == "" {
			missing = append(missing, "GOOGLE_CLIENT_EMAIL")
		}
		if c.PrivateKey == "" {
			missing = append(missing, "GOOGLE_PRIVATE_KEY")
		}
	default:
		return fmt.Errorf("%w %q (expected %s or %s)", ErrUnknownAuthMode, c.Mode, AuthOAuthUser, AuthServiceAccount)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s for AUTH_MODE=%s", strings.Join(missing, ", "), c.Mode)
	}
	return nil
}

// OAuthConfig is the web-client configuration used by the user flow and the
// consent helper.
func (c Credentials) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarScope},
	}
}

// TokenSource builds a refreshing token source. Token requests go through
// base, so they are traced like every other outbound call.
func (c Credentials) TokenSource(ctx context.Context, base http.RoundTripper) (oauth2.TokenSource, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base})
	}

	switch c.Mode {
	case AuthServiceAccount:
		cfg := &jwt.Config{
			Email:      c.ServiceAccountEmail,
			PrivateKey: []byte(strings.ReplaceAll(c.PrivateKey, `\n`, "\n")),
			Scopes:     []string{gcal.CalendarScope},
			TokenURL:   google.JWTTokenURL,
			Subject:    c.Subject,
		}
		return cfg.TokenSource(ctx), nil
	default:
		return c.OAuthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: c.RefreshToken}), nil
	}
}

// HTTPClient returns a client that authorizes every request with ts and sends
// it through base.
func HTTPClient(ts oauth2.TokenSource, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: &oauth2.Transport{Source: ts, Base: base}}
}

// Consent drives the one-off authorization code flow that yields a refresh token.
type Consent struct {
	cfg   *oauth2.Config
	state string
}

func NewConsent(c Credentials, state string) *Consent {
	return &Consent{cfg: c.OAuthConfig(), state: state}
}

func (c *Consent) URL() string {
	return c.cfg.AuthCodeURL(c.state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

var ErrStateMismatch = errors.New("oauth state mismatch")

func (c *Consent) Exchange(ctx context.Context, state, code string) (*oauth2.Token, error) {
	if state != c.state {
		return nil, ErrStateMismatch
	}
	tok, err := c.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}
