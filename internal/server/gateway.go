package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"github.com/desertthunder/eventory/internal/repositories"
	"github.com/desertthunder/eventory/internal/shared"
)

const (
	shutdownTimeout = 5 * time.Second
	pruneInterval   = 3 * time.Minute
)

// Gateway is the eventory HTTP server.
type Gateway struct {
	config  shared.ServerConfig
	handler http.Handler
	limiter *IPRateLimiter
	logger  *log.Logger
}

// NewGateway wires the API, the page proxy, and the middleware stack over db.
func NewGateway(config shared.ServerConfig, db *sqlx.DB, verifier Verifier, logger *log.Logger) (*Gateway, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	sessions := NewSessionTokens(config.SessionSecret, config.MaxAge())
	api := NewAPI(
		repositories.NewUserRepository(db),
		repositories.NewChannelRepository(db),
		verifier,
		sessions,
		config.Production(),
		logger,
	)

	pages, err := NewPages(config.UpstreamURL, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	router := NewBasicRouter()
	api.Register(router)
	router.HandleFunc(http.MethodGet, "/health", Health(db.Ping))

	// Middleware wraps handlers registered after it, so only pages are gated.
	router.Use(AuthGate)
	router.Handler(pages)

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	burst := config.RateBurst
	if burst <= 0 {
		burst = 1
	}
	limiter := NewIPRateLimiter(limit, burst)

	// Forwarding headers are client-controlled unless a proxy in front rewrites them.
	mws := []Middleware{middleware.RequestID}
	if config.TrustProxy {
		mws = append(mws, middleware.RealIP)
	}
	mws = append(mws,
		RequestLogger(logger),
		middleware.Recoverer,
		limiter.Middleware,
		CORS(config.AllowedOrigins, config.Production()),
		sessions.Sessions,
	)
	handler := Chain(router, mws...)

	return &Gateway{config: config, handler: handler, limiter: limiter, logger: logger}, nil
}

// ServeHTTP implements [http.Handler].
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is done.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.config.Addr(), err)
	}
	return g.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           g.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		g.logger.Infof("eventory gateway listening on http://%s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-serverErrors:
			if ok {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case now := <-ticker.C:
			remaining := g.limiter.Prune(now)
			g.logger.Debug("pruned rate limiters", "active", remaining)
		case <-ctx.Done():
			g.logger.Info("shutting down gateway")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shut down gateway: %w", err)
			}
			return nil
		}
	}
}
