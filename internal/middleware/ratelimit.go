package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go-fintrack/internal/model"
	"go-fintrack/pkg/apierror"
)

const (
	defaultAuthRPM = 10
	pruneThreshold = 1000
	clientIdleTTL  = 10 * time.Minute
)

type clientBuckets struct {
	general  *rate.Limiter
	auth     *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware keeps two token buckets per client IP: a tight one for
// paths under authPrefix and a general one for everything else. A
// non-positive general limit disables the general bucket.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	authPrefix string

	mu      sync.Mutex
	clients map[string]*clientBuckets
}

func NewRateLimitMiddleware(generalRPM int, authRPM int, authPrefix string) *RateLimitMiddleware {
	if authRPM <= 0 {
		authRPM = defaultAuthRPM
	}
	if authPrefix == "" {
		authPrefix = "/api/auth"
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		authPrefix: strings.ToLower(authPrefix),
		clients:    map[string]*clientBuckets{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buckets := m.buckets(extractClientIP(r), time.Now())

		limiter := buckets.general
		if strings.HasPrefix(strings.ToLower(r.URL.Path), m.authPrefix) {
			limiter = buckets.auth
		}

		if limiter != nil && !limiter.Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limiter)))
			writeErrorBody(w, http.StatusTooManyRequests, model.ErrorBody{
				Error: "Too many requests",
				Code:  apierror.CodeRateLimited,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) buckets(clientIP string, now time.Time) *clientBuckets {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.clients[clientIP]
	if !ok {
		if len(m.clients) >= pruneThreshold {
			m.pruneLocked(now)
		}
		b = &clientBuckets{auth: perMinute(m.authRPM)}
		if m.generalRPM > 0 {
			b.general = perMinute(m.generalRPM)
		}
		m.clients[clientIP] = b
	}
	b.lastSeen = now
	return b
}

func (m *RateLimitMiddleware) pruneLocked(now time.Time) {
	cutoff := now.Add(-clientIdleTTL)
	for ip, b := range m.clients {
		if b.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

// perMinute allows rpm requests per minute with the whole minute available as
// burst.
func perMinute(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

// retryAfterSeconds reports how long until limiter grants the next token.
func retryAfterSeconds(limiter *rate.Limiter) int {
	reservation := limiter.Reserve()
	defer reservation.Cancel()

	secs := int(math.Ceil(reservation.Delay().Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// extractClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's address.
func extractClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
