// Package server exposes the scoring engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/impression-cli/internal/dataset"
	"github.com/sells-group/impression-cli/internal/impression"
	"github.com/sells-group/impression-cli/internal/monitoring"
	"github.com/sells-group/impression-cli/internal/normalize"
)

// Defaults for zero-valued Options.
const (
	DefaultRateLimit = 50.0
	DefaultBurst     = 100
	DefaultMaxBatch  = 10000
)

// LoadFunc loads a fresh dataset for /v1/reload.
type LoadFunc func(ctx context.Context) (*dataset.Dataset, error)

// Options configures a Server.
type Options struct {
	RateLimit   float64
	Burst       int
	MaxBatch    int
	CORSOrigins []string
	Normalize   normalize.Params
	Metrics     *monitoring.Metrics
	Gatherer    prometheus.Gatherer
	Load        LoadFunc
	Report      dataset.LoadReport
}

// Server routes API requests to an Engine.
type Server struct {
	engine  *impression.Engine
	opts    Options
	limiter *rate.Limiter
	router  chi.Router

	mu     sync.RWMutex
	report dataset.LoadReport
}

// New builds the router over engine.
func New(engine *impression.Engine, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.Burst < 1 {
		opts.Burst = DefaultBurst
	}
	if opts.MaxBatch < 1 {
		opts.MaxBatch = DefaultMaxBatch
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.Normalize.Max <= opts.Normalize.Min {
		opts.Normalize = normalize.DefaultParams()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		engine:  engine,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		report:  opts.Report,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/score", s.handleScore)
		r.Get("/nearby", s.handleNearby)
		r.Post("/batch", s.handleBatch)
		r.Post("/normalize", s.handleNormalize)
		r.Get("/cache", s.handleCache)
		r.Get("/dataset", s.handleDataset)
		r.Post("/reload", s.handleReload)
	})
	return r
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	zap.L().Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

// instrument counts requests by route pattern and status code.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.opts.Metrics.Request(route, strconv.Itoa(status))
		zap.L().Debug("server: request",
			zap.String("component", "server"),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// rateLimit rejects requests once the token bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
