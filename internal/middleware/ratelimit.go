package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// limiter tracks request timestamps per client IP inside a sliding window.
type limiter struct {
	mu      sync.Mutex
	clients map[string][]time.Time
	limit   int
	window  time.Duration
}

func newLimiter(limit int, window time.Duration) *limiter {
	l := &limiter{
		clients: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
	}
	go l.sweepLoop()
	return l
}

func (l *limiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	recent := l.clients[ip][:0]
	for _, t := range l.clients[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.clients[ip] = recent
		return false
	}

	l.clients[ip] = append(recent, now)
	return true
}

// sweepLoop drops IPs whose entries have all aged out of the window.
func (l *limiter) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-l.window)
		for ip, times := range l.clients {
			stale := true
			for _, t := range times {
				if t.After(cutoff) {
					stale = false
					break
				}
			}
			if stale {
				delete(l.clients, ip)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimitAuth limits login and signup attempts to 5 per 15 minutes per IP.
func RateLimitAuth() func(http.HandlerFunc) http.HandlerFunc {
	return rateLimit(newLimiter(5, 15*time.Minute))
}

// RateLimitUpload limits file uploads to 30 per minute per IP.
func RateLimitUpload() func(http.HandlerFunc) http.HandlerFunc {
	return rateLimit(newLimiter(30, time.Minute))
}

func rateLimit(l *limiter) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next(w, r)
		}
	}
}

// clientIP prefers proxy headers, falling back to the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
