package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// staleClientAfter is how long an idle client's counters are kept.
const staleClientAfter = 24 * time.Hour

// RateLimiter throttles detection requests per client address.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxBytesPerDay    int64

	clients   map[string]*ClientUsage
	lastPrune time.Time
	now       func() time.Time
}

// ClientUsage tracks one client's fixed-window counters.
type ClientUsage struct {
	MinuteCount int
	HourCount   int
	BytesToday  int64

	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time
	lastSeen    time.Time
}

// NewRateLimiter creates a limiter. A zero limit disables that check.
func NewRateLimiter(requestsPerMinute, requestsPerHour int, maxBytesPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxBytesPerDay:    maxBytesPerDay,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// Enabled reports whether any limit is configured.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && (rl.requestsPerMinute > 0 || rl.requestsPerHour > 0 || rl.maxBytesPerDay > 0)
}

// Allow records one request of size bytes from client, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	usage, ok := rl.clients[client]
	if !ok {
		usage = &ClientUsage{minuteStart: now, hourStart: now, dayStart: now}
		rl.clients[client] = usage
	}
	usage.roll(now)
	usage.lastSeen = now

	if rl.requestsPerMinute > 0 && usage.MinuteCount >= rl.requestsPerMinute {
		return &RateLimitError{Window: "minute", Limit: rl.requestsPerMinute,
			RetryAfter: usage.minuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.requestsPerHour > 0 && usage.HourCount >= rl.requestsPerHour {
		return &RateLimitError{Window: "hour", Limit: rl.requestsPerHour,
			RetryAfter: usage.hourStart.Add(time.Hour).Sub(now)}
	}
	if rl.maxBytesPerDay > 0 && usage.BytesToday+size > rl.maxBytesPerDay {
		return &QuotaExceededError{Limit: rl.maxBytesPerDay, Used: usage.BytesToday,
			Resets: nextMidnight(now)}
	}

	usage.MinuteCount++
	usage.HourCount++
	usage.BytesToday += size
	return nil
}

// Usage returns a copy of the counters for client.
func (rl *RateLimiter) Usage(client string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[client]; ok {
		return *u
	}
	return ClientUsage{}
}

func (u *ClientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.MinuteCount = 0
		u.minuteStart = now
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.HourCount = 0
		u.hourStart = now
	}
	if !sameDay(now, u.dayStart) {
		u.BytesToday = 0
		u.dayStart = now
	}
}

func (rl *RateLimiter) prune(now time.Time) {
	if now.Sub(rl.lastPrune) < time.Minute {
		return
	}
	rl.lastPrune = now
	for k, u := range rl.clients {
		if now.Sub(u.lastSeen) > staleClientAfter {
			delete(rl.clients, k)
		}
	}
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// clientKey identifies the caller by remote IP, without the port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfterSeconds rounds d up to whole seconds for the Retry-After header.
func retryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// RateLimitError is returned when a client exceeds a request window.
type RateLimitError struct {
	Window     string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)",
		e.Window, e.Limit, e.RetryAfter.Round(time.Second))
}

// QuotaExceededError is returned when a client's daily upload volume is used up.
type QuotaExceededError struct {
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily upload quota exceeded (used: %d, limit: %d bytes, resets: %s)",
		e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
