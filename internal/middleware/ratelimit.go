package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/handler"
)

// LimiterStore tracks request counts per key within a fixed window.
// Implementations must be safe for concurrent use.
type LimiterStore interface {
	// Hit records one request for key and returns the number of requests
	// seen in the current window, starting a new window if the previous
	// one ended before now.
	Hit(key string, now time.Time, window time.Duration) int

	// Remaining reports how long until the key's window resets.
	Remaining(key string, now time.Time, window time.Duration) time.Duration
}

// RateLimiter limits requests per key using an injected store and clock.
type RateLimiter struct {
	store  LimiterStore
	max    int
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRateLimiter creates a rate limiter allowing max requests per window.
// Pass nil for now to use time.Now.
func NewRateLimiter(store LimiterStore, max int, window time.Duration, now func() time.Time, logger *slog.Logger) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		store:  store,
		max:    max,
		window: window,
		now:    now,
		logger: logger,
	}
}

// Allow records a request for key and reports whether it is under the limit.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.store.Hit(key, rl.now(), rl.window) <= rl.max
}

// Limit returns middleware that rejects requests over the limit with 429.
// Authenticated requests are keyed by user ID, anonymous ones by client IP.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := UserID(r.Context())
		if key == "" {
			key = clientIP(r)
		}

		if !rl.Allow(key) {
			rl.logger.Warn("rate limit exceeded",
				"key", key,
				"path", r.URL.Path,
				"method", r.Method,
			)

			retryAfter := int(rl.store.Remaining(key, rl.now(), rl.window).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			handler.Error(w, r, rl.logger, domain.RateLimit("middleware.Limit"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MemoryStore is an in-memory LimiterStore with a bounded entry count.
// When the map grows past maxEntries, expired windows are evicted on the
// next write.
type MemoryStore struct {
	maxEntries int

	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	count int
	start time.Time
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries keys.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		entries:    make(map[string]*windowEntry),
	}
}

func (s *MemoryStore) Hit(key string, now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.Sub(entry.start) > window {
		if !ok && len(s.entries) >= s.maxEntries {
			s.evict(now, window)
		}
		s.entries[key] = &windowEntry{count: 1, start: now}
		return 1
	}

	entry.count++
	return entry.count
}

func (s *MemoryStore) Remaining(key string, now time.Time, window time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return 0
	}
	elapsed := now.Sub(entry.start)
	if elapsed >= window {
		return 0
	}
	return window - elapsed
}

// evict removes expired windows. Caller must hold the lock.
func (s *MemoryStore) evict(now time.Time, window time.Duration) {
	for key, entry := range s.entries {
		if now.Sub(entry.start) > window {
			delete(s.entries, key)
		}
	}
}

// clientIP extracts the client IP, honoring common proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
