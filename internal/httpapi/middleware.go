package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loranexus/loranexus/internal/authz"
	"go.uber.org/zap"
)

// statusRecorder wraps ResponseWriter to capture status and size for access
// logging, grounded on backend/middleware/logging.go's statusRecorder.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.size += n
	return n, err
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("httpapi: underlying ResponseWriter does not support hijacking")
}

var reqIDCounter uint64

// Logging is access-log middleware with panic recovery, grounded directly
// on backend/middleware/logging.go's Logging.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rid := fmt.Sprintf("%d-%x", atomic.AddUint64(&reqIDCounter, 1), start.UnixNano())
			w.Header().Set("X-Request-ID", rid)
			sr := &statusRecorder{ResponseWriter: w}
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic",
						zap.String("request_id", rid), zap.String("method", r.Method),
						zap.String("path", r.URL.Path), zap.Any("error", rec),
						zap.ByteString("stack", debug.Stack()),
					)
					http.Error(sr, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
				logger.Info("request",
					zap.String("request_id", rid), zap.String("method", r.Method),
					zap.String("path", r.URL.Path), zap.Int("status", sr.status),
					zap.Int("bytes", sr.size), zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				)
			}()
			next.ServeHTTP(sr, r)
		})
	}
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
}

// RateLimiter is a fixed-window per-IP token bucket, grounded on
// development/allstar-nexus/backend/middleware/middleware.go's RateLimiter
// — reserved for the send-text endpoint, the one write-ish route a hostile
// client could spam (SPEC_FULL.md §12).
func RateLimiter(maxPerMinute int) func(http.Handler) http.Handler {
	if maxPerMinute <= 0 {
		maxPerMinute = 60
	}
	var mu sync.Mutex
	buckets := make(map[string]*tokenBucket)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			now := time.Now()
			mu.Lock()
			b, ok := buckets[ip]
			if !ok {
				b = &tokenBucket{tokens: maxPerMinute, lastRefill: now}
				buckets[ip] = b
			}
			if now.Sub(b.lastRefill) >= time.Minute {
				b.tokens = maxPerMinute
				b.lastRefill = now
			}
			if b.tokens <= 0 {
				mu.Unlock()
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			b.tokens--
			mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequireOperator gates a route behind a valid bearer token, per
// SPEC_FULL.md §13's "ignore toggle requires an authenticated operator."
// Grounded on development/allstar-nexus/backend/middleware/middleware.go's
// Auth, simplified: this system has one operator role, not a role set.
func RequireOperator(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			tok := strings.TrimPrefix(authHeader, "Bearer ")
			if _, err := authz.ParseToken(tok, secret); err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
