package httpx

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig controls a token-bucket limiter keyed per client.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained refill rate.
	RequestsPerSecond rate.Limit
	// Burst is the bucket capacity.
	Burst int
	// TTL is how long an idle client's bucket is retained.
	TTL time.Duration
}

// Profiles tuned for the different endpoint classes. Credential-bearing
// endpoints get the strict profile.
var (
	RateLimitStrict   = RateLimitConfig{RequestsPerSecond: 1, Burst: 5, TTL: 15 * time.Minute}
	RateLimitModerate = RateLimitConfig{RequestsPerSecond: 5, Burst: 10, TTL: 10 * time.Minute}
	RateLimitLenient  = RateLimitConfig{RequestsPerSecond: 20, Burst: 40, TTL: 5 * time.Minute}
)

// KeyExtractor derives the limiter key for a request. Returning "" means
// the request is not limited.
type KeyExtractor func(r *http.Request) string

// KeyByIP keys on the client IP, honouring X-Forwarded-For from a fronting
// proxy.
func KeyByIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return "ip:" + fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// KeyByUser keys on the authenticated user, falling back to IP for
// anonymous requests.
func KeyByUser(r *http.Request) string {
	if id, ok := UserIDFromContext(r.Context()); ok {
		return "user:" + id
	}
	return KeyByIP(r)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks per-key token buckets with idle eviction.
type RateLimiter struct {
	cfg RateLimitConfig
	key KeyExtractor

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

// NewRateLimiter builds a limiter with the given profile and key function.
func NewRateLimiter(cfg RateLimitConfig, key KeyExtractor) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		key:     key,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow reports whether the request fits in its bucket.
func (l *RateLimiter) Allow(r *http.Request) bool {
	k := l.key(r)
	if k == "" {
		return true
	}

	now := time.Now()

	l.mu.Lock()
	entry, ok := l.entries[k]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.cfg.RequestsPerSecond, l.cfg.Burst)}
		l.entries[k] = entry
	}
	entry.lastSeen = now
	l.evictLocked(now)
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// evictLocked drops buckets idle longer than the TTL. Called with mu held;
// cheap enough to run inline on every request.
func (l *RateLimiter) evictLocked(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) > l.cfg.TTL {
			delete(l.entries, k)
		}
	}
}

// Middleware rejects over-limit requests with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimitByIP is shorthand for an IP-keyed limiter middleware.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return NewRateLimiter(cfg, KeyByIP).Middleware
}

// RateLimitByUser is shorthand for a user-keyed limiter middleware.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return NewRateLimiter(cfg, KeyByUser).Middleware
}
