// Package http exposes the query engine as a small JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ledgerq/internal/core"
	"ledgerq/internal/engine"
	"ledgerq/internal/log"
	"ledgerq/internal/middleware/ratelimit"
	"ledgerq/internal/middleware/security"
)

// Querier is the part of the engine the API drives.
type Querier interface {
	SubmitQuery(ctx context.Context, text string, rc core.RequestContext) engine.Response
	MonthOverview(ctx context.Context, month core.MonthKey, rc core.RequestContext) (core.MonthOverview, error)
}

// ServerConfig holds listener and throttling settings.
type ServerConfig struct {
	Addr               string
	RateLimitPerMinute int
	// MonthTimeout bounds one overview read.
	MonthTimeout time.Duration
}

// appMetrics counts API traffic for /readyz.
type appMetrics struct {
	uptime   time.Time
	queries  int64
	failures int64
}

type Server struct {
	http.Server
	engine   Querier
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *log.Logger
	metrics  *appMetrics
	config   ServerConfig

	// now supplies the reference date when a request omits one.
	now func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg ServerConfig, q Querier, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.MonthTimeout <= 0 {
		cfg.MonthTimeout = 7 * time.Second
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		engine:   q,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector: security.NewDetector(),
		logger:   logger,
		metrics:  &appMetrics{uptime: time.Now()},
		config:   cfg,
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("POST /api/query", s.limited(http.HandlerFunc(s.handleQuery)))
	mux.HandleFunc("GET /api/months/{month}", s.handleMonth)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var h http.Handler = mux
	h = s.recoverer(h)
	h = s.inspect(h)
	h = headers.Middleware(h)
	h = log.Middleware(logger, s.detector.ExtractClientIP)(h)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// limited applies the per-IP rate limit.
func (s *Server) limited(next http.Handler) http.Handler {
	return s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "Too many requests, try again in a minute.").Write(w)
	})(next)
}

// inspect logs suspicious requests; it never blocks them.
func (s *Server) inspect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a handler panic into a 500 with the usual error body.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				atomic.AddInt64(&s.metrics.failures, 1)
				s.logger.ErrorContext(r.Context(), "Handler panic", "panic", p, log.FieldPath, r.URL.Path)
				InternalServerError("Something went wrong.").Write(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
