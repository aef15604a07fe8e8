package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clubcal/libs/config"
	"github.com/md-rashed-zaman/clubcal/libs/httpx"
	"github.com/md-rashed-zaman/clubcal/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clubcal/libs/otel"
	"github.com/md-rashed-zaman/clubcal/libs/runtime"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/handlers"
	"github.com/md-rashed-zaman/clubcal/services/availability-service/internal/notify"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "availability-service")
	logger := runtime.NewLogger(service)

	port, err := config.Port("PORT", "3000")
	if err != nil {
		logger.Error("invalid port", "err", err)
		os.Exit(1)
	}
	cfg, err := loadConfig()
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	settings, err := cfg.settings()
	if err != nil {
		logger.Error("config invalid", "err", err)
		os.Exit(1)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	transport := otelhttp.NewTransport(http.DefaultTransport)
	creds := cfg.credentials()
	// Token refreshes must outlive the signal context until shutdown completes.
	tokens, err := creds.TokenSource(context.WithoutCancel(ctx), transport)
	if err != nil {
		logger.Error("google credentials invalid", "err", err)
		os.Exit(1)
	}
	provider, err := calendar.NewGoogleProvider(ctx, calendar.HTTPClient(tokens, transport), settings.Location)
	if err != nil {
		logger.Error("calendar client init failed", "err", err)
		os.Exit(1)
	}

	publisher := notify.NewPublisher(logger, cfg.KafkaBrokers, 256)
	// The publisher outlives the signal so requests drained by Shutdown can still publish.
	publisherCtx, stopPublisher := context.WithCancel(context.WithoutCancel(ctx))
	defer stopPublisher()
	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		publisher.Run(publisherCtx)
	}()

	checks := []runtime.ReadyCheck{{
		Name: "google-calendar",
		Check: func(ctx context.Context) error {
			_, err := provider.GetCalendar(ctx, settings.CalendarID)
			return err
		},
	}}
	if publisher.Enabled() {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	limiter, rdb := newLimiter(cfg, logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/availability", handlers.NewAvailabilityHandler(provider, logger, settings))
	mux.Handle("/book", handlers.NewBookHandler(provider, publisher, logger, settings))
	mux.Handle("/events/{id}", handlers.NewEventsHandler(provider, publisher, logger, settings))
	mux.Handle("/calendars", handlers.NewCalendarsHandler(provider, logger))
	mux.Handle("/health", handlers.NewHealthHandler(provider, tokens, logger, settings))
	if creds.Mode == calendar.AuthOAuthUser {
		oauth := handlers.NewOAuthHandler(calendar.NewConsent(creds, uuid.NewString()), logger)
		mux.HandleFunc("/auth/url", oauth.AuthURL)
		mux.HandleFunc("/oauth2callback", oauth.Callback)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCorrelationID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Accept", "X-Pretty", httpx.CorrelationIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.RateLimit(limiter, httpx.ClientIP(cfg.TrustProxyHeaders), logger, cfg.RateLimitFailOpen),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "calendar_id", settings.CalendarID, "time_zone", settings.Location.String(), "coaches", settings.Coaches.Aliases())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	gracefulStop(logger, srv, stopPublisher, publisherDone)
	logger.Info("http server stopped")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

const (
	serverDrainTimeout    = 10 * time.Second
	publisherDrainTimeout = 6 * time.Second
)

// gracefulStop drains HTTP requests first, then stops the publisher and waits
// for its final flush.
func gracefulStop(logger *slog.Logger, srv shutdowner, stopPublisher context.CancelFunc, publisherDone <-chan struct{}) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverDrainTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}

	stopPublisher()
	select {
	case <-publisherDone:
	case <-time.After(publisherDrainTimeout):
		logger.Warn("booking event publisher did not stop in time")
	}
}

// newLimiter shares the window through Redis when REDIS_ADDR is set and
// falls back to a per-process window otherwise.
func newLimiter(cfg serviceConfig, logger *slog.Logger) (httpx.Limiter, *redis.Client) {
	if cfg.RedisAddr == "" {
		return httpx.NewMemoryLimiter(cfg.RateLimitRPM, time.Minute), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logger.Info("rate limiting via redis", "addr", cfg.RedisAddr, "rpm", cfg.RateLimitRPM)
	return httpx.NewRedisLimiter(rdb, cfg.RateLimitRPM, time.Minute, "clubcal:rl"), rdb
}
