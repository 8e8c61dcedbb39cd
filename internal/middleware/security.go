package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/learn-earn/backend/pkg/clientip"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerXXSSProtection          = "X-XSS-Protection"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerXContentTypeOptions, "nosniff")
		w.Header().Set(headerXFrameOptions, "DENY")
		w.Header().Set(headerXXSSProtection, "1; mode=block")
		w.Header().Set(headerContentSecurityPolicy, "default-src 'self'")
		w.Header().Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// HostCheck returns 403 when r.Host does not match allowedHost.
// allowedHost should be the bare hostname without scheme or port.
func HostCheck(allowedHost string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowedHost == "" {
				next.ServeHTTP(w, r)
				return
			}
			reqHost := r.Host
			if host, _, err := net.SplitHostPort(reqHost); err == nil {
				reqHost = host
			}
			if !strings.EqualFold(strings.TrimSpace(reqHost), strings.TrimSpace(allowedHost)) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte("Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Sensitive route rate limiting (in-process, per-IP) ---

var (
	sensitiveEntries    = make(map[string]*limiterEntry)
	sensitiveEntriesMu  sync.Mutex
	sensitiveCleanupRun bool
)

const (
	sensitiveRateLimitEvery  = 5 * time.Second
	sensitiveRateLimitBurst  = 2
	sensitiveCleanupInterval = 5 * time.Minute
	sensitiveLimiterTTL      = 30 * time.Minute
)

// Money-moving and credential routes get a much tighter limit than the
// general Redis limiter.
var sensitivePaths = map[string]bool{
	"/api/admin/login":    true,
	"/api/payouts/request": true,
}

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

func getSensitiveLimiter(ip string) *rate.Limiter {
	sensitiveEntriesMu.Lock()
	defer sensitiveEntriesMu.Unlock()
	startSensitiveCleanupOnce()
	e, ok := sensitiveEntries[ip]
	if !ok {
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(sensitiveRateLimitEvery), sensitiveRateLimitBurst),
			lastUse: time.Now(),
		}
		sensitiveEntries[ip] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func startSensitiveCleanupOnce() {
	if sensitiveCleanupRun {
		return
	}
	sensitiveCleanupRun = true
	go func() {
		ticker := time.NewTicker(sensitiveCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			sensitiveEntriesMu.Lock()
			now := time.Now()
			for ip, e := range sensitiveEntries {
				if now.Sub(e.lastUse) > sensitiveLimiterTTL {
					delete(sensitiveEntries, ip)
				}
			}
			sensitiveEntriesMu.Unlock()
		}
	}()
}

// SensitiveRateLimit applies a stricter limit to admin login and payout
// request routes only. Use after RateLimitMiddleware.
func SensitiveRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sensitivePaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientip.RealClientIP(r)
		if !getSensitiveLimiter(ip).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Too many attempts. Please try again later."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ProductionSecurity returns middlewares for production: SecurityHeaders → HostCheck → SensitiveRateLimit.
func ProductionSecurity(allowedHost string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders,
		HostCheck(allowedHost),
		SensitiveRateLimit,
	}
}
