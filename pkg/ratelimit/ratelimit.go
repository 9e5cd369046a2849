// Package ratelimit limits requests per client over a sliding window.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter keeps a log of request timestamps per client key. A request is
// allowed while fewer than Max requests were allowed in the past Window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string][]time.Time
	max     int
	window  time.Duration
	now     func() time.Time
}

type Config struct {
	Max    int
	Window time.Duration
}

// Decision describes the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAfter time.Duration
}

func New(cfg Config) *Limiter {
	if cfg.Max <= 0 {
		cfg.Max = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &Limiter{
		clients: make(map[string][]time.Time),
		max:     cfg.Max,
		window:  cfg.Window,
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records an attempt for key if it is within the limit. Denied
// attempts are not recorded, so a client regains capacity exactly one
// window after its oldest allowed request.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	log := prune(l.clients[key], now.Add(-l.window))

	d := Decision{Limit: l.max}
	if len(log) >= l.max {
		l.clients[key] = log
		d.RetryAfter = log[0].Add(l.window).Sub(now)
		d.ResetAfter = d.RetryAfter
		return d
	}

	log = append(log, now)
	l.clients[key] = log

	d.Allowed = true
	d.Remaining = l.max - len(log)
	d.ResetAfter = log[0].Add(l.window).Sub(now)
	return d
}

// prune drops timestamps at or before cutoff. The log is in ascending order.
func prune(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	return log[i:]
}

// Sweep forgets clients with no attempts inside the window.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for key, log := range l.clients {
		if len(prune(log, cutoff)) == 0 {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-ctx.Done():
			return nil
		}
	}
}

// ClientIP keys clients by the host part of RemoteAddr. Run chi's RealIP
// middleware first when behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces the limit before next runs. onLimit renders the
// rejection; Retry-After and RateLimit-* headers are already set when it
// is called.
func (l *Limiter) Middleware(keyFunc func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(keyFunc(r))

			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(d.ResetAfter)))

			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(ceilSeconds(d.RetryAfter)))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
