package httpx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// KeyFunc names the caller a request is counted against.
type KeyFunc func(*http.Request) string

// RateLimit rejects requests over the limit with 429. When the limiter itself
// fails, failOpen decides between letting the request through and answering 503.
// A nil key counts requests per remote address.
func RateLimit(l Limiter, key KeyFunc, logger *slog.Logger, failOpen bool) Middleware {
	if key == nil {
		key = ClientIP(false)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context(), key(r))
			if err != nil {
				if logger != nil {
					logger.Warn("rate limiter error", "err", err)
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}
			if !ok {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryLimiter is a fixed-window limiter local to one process.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*fixedWindow
	nextSweep time.Time
}

type fixedWindow struct {
	count   int
	resetAt time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: map[string]*fixedWindow{},
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	fw := l.windows[key]
	if fw == nil || !now.Before(fw.resetAt) {
		if fw == nil {
			l.sweep(now)
		}
		l.windows[key] = &fixedWindow{count: 1, resetAt: now.Add(l.window)}
		return true, nil
	}
	if fw.count >= l.limit {
		return false, nil
	}
	fw.count++
	return true, nil
}

// sweep drops expired windows at most once per window length, so the map
// holds only keys seen during the last window or so. Callers hold l.mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for k, fw := range l.windows {
		if !now.Before(fw.resetAt) {
			delete(l.windows, k)
		}
	}
	l.nextSweep = now.Add(l.window)
}

// ClientIP keys requests by remote address. X-Forwarded-For is honoured only
// when trustForwarded is set, i.e. behind a proxy that overwrites it.
func ClientIP(trustForwarded bool) KeyFunc {
	return func(r *http.Request) string {
		if trustForwarded {
			if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
				first, _, _ := strings.Cut(fwd, ",")
				if first = strings.TrimSpace(first); first != "" {
					return first
				}
			}
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			return host
		}
		return r.RemoteAddr
	}
}
