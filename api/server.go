// Package api exposes estimation, recommendation and price lookup over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"migration-cost/decision/estimation"
	"migration-cost/decision/inventory"
	"migration-cost/decision/pricing"
	"migration-cost/decision/recommend"
	resolver "migration-cost/internal/pricing"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/focus"
	"migration-cost/pkg/metrics"
	"migration-cost/pkg/platform"
)

var (
	version   = "0.1.0"
	startTime = time.Now()
)

// Estimator is the estimation engine surface used by the server.
type Estimator interface {
	EstimateBatch(ctx context.Context, vms []inventory.VM, cfg estimation.PricingConfig, opts estimation.BatchOptions) (*estimation.BatchResult, error)
	Recommender() *recommend.Recommender
}

// Resolver is the price resolver surface used by the server.
type Resolver interface {
	ResolveBatch(ctx context.Context, dims []pricing.PriceDimension) []resolver.BatchResult
	Diagnostics() resolver.Diagnostics
	ClearCache()
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	Addr           string
	APIKey         string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
	MaxBatchSize   int
	Pricing        estimation.PricingConfig
	Batch          estimation.BatchOptions
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   5 * time.Minute,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
		MaxBatchSize:   10000,
		Pricing:        estimation.DefaultPricingConfig(),
		Batch:          estimation.DefaultBatchOptions(),
	}
}

// Server is the HTTP API server.
type Server struct {
	estimator  Estimator
	resolver   Resolver
	store      Pinger
	config     Config
	logger     zerolog.Logger
	httpServer *http.Server
}

// NewServer wires the handlers. store may be nil when running without one.
func NewServer(est Estimator, res Resolver, store Pinger, cfg Config, logger zerolog.Logger) *Server {
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = DefaultConfig().MaxRequestSize
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultConfig().MaxBatchSize
	}
	return &Server{
		estimator: est,
		resolver:  res,
		store:     store,
		config:    cfg,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(platform.APIKeyMiddleware(s.config.APIKey))

		r.Post("/estimate", s.handleEstimate)
		r.Post("/recommend", s.handleRecommend)
		r.Post("/price", s.handlePrice)
		r.Get("/pricing/diagnostics", s.handleDiagnostics)
		r.Delete("/pricing/cache", s.handleClearCache)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Str("version", version).Msg("starting vmcost API server")
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.RequestDuration.WithLabelValues(r.Method, route, fmt.Sprint(ww.Status())).Observe(elapsed.Seconds())

		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			s.jsonError(w, http.StatusServiceUnavailable, "pricing store not ready")
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// =============================================================================
// ESTIMATION ENDPOINTS
// =============================================================================

type EstimateRequest struct {
	VMs     []inventory.VM            `json:"vms"`
	Pricing *estimation.PricingConfig `json:"pricing,omitempty"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.checkBatch(w, len(req.VMs)) {
		return
	}

	cfg := s.config.Pricing
	if req.Pricing != nil {
		cfg = *req.Pricing
	}

	result, err := s.estimator.EstimateBatch(r.Context(), req.VMs, cfg, s.config.Batch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "focus" {
		s.jsonResponse(w, http.StatusOK, focus.FromBatch(result))
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

type RecommendRequest struct {
	VMs []inventory.VM `json:"vms"`
}

type RecommendResult struct {
	VMID           string                    `json:"vm_id"`
	Footprint      *inventory.Footprint      `json:"footprint,omitempty"`
	Recommendation *recommend.Recommendation `json:"recommendation,omitempty"`
	Error          string                    `json:"error,omitempty"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.checkBatch(w, len(req.VMs)) {
		return
	}

	rec := s.estimator.Recommender()
	out := make([]RecommendResult, len(req.VMs))
	for i, vm := range req.VMs {
		out[i].VMID = vm.Key()
		fp, err := vm.Footprint()
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		res := rec.Recommend(fp)
		out[i].Footprint = &fp
		out[i].Recommendation = &res
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"results": out})
}

// =============================================================================
// PRICING ENDPOINTS
// =============================================================================

type PriceRequest struct {
	Dimensions []pricing.PriceDimension `json:"dimensions"`
}

type PriceResult struct {
	Dimension pricing.PriceDimension `json:"dimension"`
	Record    *pricing.PriceRecord   `json:"record,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.checkBatch(w, len(req.Dimensions)) {
		return
	}

	results := s.resolver.ResolveBatch(r.Context(), req.Dimensions)
	out := make([]PriceResult, len(results))
	for i, res := range results {
		out[i] = PriceResult{Dimension: res.Dimension, Record: res.Record}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
			out[i].ErrorKind = perrors.KindOf(res.Err).String()
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.resolver.Diagnostics())
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.resolver.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

func (s *Server) checkBatch(w http.ResponseWriter, n int) bool {
	switch {
	case n == 0:
		s.jsonError(w, http.StatusBadRequest, "request contains no items")
		return false
	case n > s.config.MaxBatchSize:
		s.jsonError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("batch of %d exceeds limit %d", n, s.config.MaxBatchSize))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch perrors.KindOf(err) {
	case perrors.KindConfiguration, perrors.KindParse:
		status = http.StatusBadRequest
	case perrors.KindNotFound:
		status = http.StatusNotFound
	case perrors.KindFetch:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	s.jsonError(w, status, err.Error())
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
