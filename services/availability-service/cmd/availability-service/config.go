package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/clubcal/libs/config"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/coach"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/handlers"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/policy"
)

type serviceConfig struct {
	TimeZone           string `env:"TIMEZONE" envDefault:"America/Mexico_City"`
	CalendarID         string `env:"GOOGLE_CALENDAR_ID,required"`
	CoachMap           string `env:"CAL_BY_COACH"`
	WeekdayHours       string `env:"BUSINESS_HOURS_WEEKDAY"`
	WeekendHours       string `env:"BUSINESS_HOURS_WEEKEND"`
	LookaheadHours     int    `env:"DEFAULT_LOOKAHEAD_HOURS" envDefault:"72"`
	DefaultSendUpdates string `env:"DEFAULT_SEND_UPDATES" envDefault:"all"`
	DefaultSummary     string `env:"DEFAULT_SUMMARY" envDefault:"Clase Tropical Padel"`

	AuthMode     string `env:"AUTH_MODE" envDefault:"OAUTH_USER"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURI  string `env:"REDIRECT_URI" envDefault:"http://localhost:3000/oauth2callback"`
	RefreshToken string `env:"REFRESH_TOKEN"`
	ClientEmail  string `env:"GOOGLE_CLIENT_EMAIL"`
	PrivateKey   string `env:"GOOGLE_PRIVATE_KEY"`
	Subject      string `env:"GOOGLE_IMPERSONATE_SUBJECT"`

	KafkaBrokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	RedisAddr         string        `env:"REDIS_ADDR"`
	RateLimitRPM      int           `env:"RATE_LIMIT_RPM" envDefault:"120"`
	RateLimitFailOpen bool          `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"true"`
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
	CORSOrigins       []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RequestTimeout    time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	BodyLimitBytes    int64         `env:"HTTP_BODY_LIMIT_BYTES" envDefault:"1048576"`
}

func loadConfig(files ...string) (serviceConfig, error) {
	var cfg serviceConfig
	if err := config.Load(&cfg, files...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c serviceConfig) credentials() calendar.Credentials {
	return calendar.Credentials{
		Mode:                calendar.AuthMode(c.AuthMode),
		ClientID:            c.ClientID,
		ClientSecret:        c.ClientSecret,
		RedirectURL:         c.RedirectURI,
		RefreshToken:        c.RefreshToken,
		ServiceAccountEmail: c.ClientEmail,
		PrivateKey:          c.PrivateKey,
		Subject:             c.Subject,
	}
}

// settings resolves the club timezone, hours and coach table once at startup.
func (c serviceConfig) settings() (handlers.Settings, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return handlers.Settings{}, fmt.Errorf("TIMEZONE: %w", err)
	}
	hours, err := policy.FromStrings(c.WeekdayHours, c.WeekendHours)
	if err != nil {
		return handlers.Settings{}, err
	}
	coaches, err := coach.ParseDirectory(c.CoachMap)
	if err != nil {
		return handlers.Settings{}, fmt.Errorf("CAL_BY_COACH: %w", err)
	}
	if c.LookaheadHours <= 0 {
		return handlers.Settings{}, errors.New("DEFAULT_LOOKAHEAD_HOURS must be positive")
	}
	return handlers.Settings{
		CalendarID:         c.CalendarID,
		Location:           loc,
		Hours:              hours,
		Coaches:            coaches,
		Lookahead:          time.Duration(c.LookaheadHours) * time.Hour,
		DefaultSendUpdates: c.DefaultSendUpdates,
		DefaultSummary:     c.DefaultSummary,
		Now:                time.Now,
	}, nil
}
