package server

import (
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/desertthunder/eventory/internal/shared"
)

// Chain wraps h with middleware, the first listed being the outermost.
func Chain(h http.Handler, middleware ...Middleware) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// anonymizeIP zeroes the host part of an address: the last octet for IPv4, the latter half for IPv6.
func anonymizeIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		addr = host
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return "unknown_ip"
	}
	if ip.IsLoopback() {
		return "127.0.0.1"
	}
	if v4 := ip.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String()
	}
	return ip.Mask(net.CIDRMask(64, 128)).String()
}

// RequestLogger logs one line per request with the status, size, and latency.
//
// 5xx responses are logged as errors and 4xx as warnings.
func RequestLogger(logger *log.Logger) Middleware {
	base := logger.WithPrefix("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			kv := []any{
				"request_id", middleware.GetReqID(r.Context()),
				"remote_ip", anonymizeIP(r.RemoteAddr),
				"method", r.Method,
				"uri", r.RequestURI,
				"status", status,
				"bytes", ww.BytesWritten(),
				"latency", time.Since(start),
			}

			switch {
			case status >= 500:
				base.Error("request completed", kv...)
			case status >= 400:
				base.Warn("request completed", kv...)
			default:
				base.Info("request completed", kv...)
			}
		})
	}
}

// CORS allows cross-origin API calls from origins, or from anywhere outside production when none are set.
//
// Credentials are only allowed for an explicit origin list; a wildcard never carries cookies.
func CORS(origins []string, production bool) Middleware {
	allowed := origins
	if len(allowed) == 0 && !production {
		allowed = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(allowed, "*"),
		MaxAge:           300,
	})

	return func(next http.Handler) http.Handler {
		corsNext := c.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				corsNext.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter
	r      rate.Limit
	b      int
}

// NewIPRateLimiter allows r requests per second per IP with bursts of b.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{limits: make(map[string]*rate.Limiter), r: r, b: b}
}

// Limiter returns the bucket for ip, creating it on first use.
func (i *IPRateLimiter) Limiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	l, ok := i.limits[ip]
	if !ok {
		l = rate.NewLimiter(i.r, i.b)
		i.limits[ip] = l
	}
	return l
}

// Prune forgets buckets that are full again and returns how many remain.
func (i *IPRateLimiter) Prune(now time.Time) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	for ip, l := range i.limits {
		if l.TokensAt(now) >= float64(l.Burst()) {
			delete(i.limits, ip)
		}
	}
	return len(i.limits)
}

// Middleware answers 429 once the client IP has used up its bucket.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !i.Limiter(ip).Allow() {
			w.Header().Set("Retry-After", "1")
			respondError(w, shared.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
