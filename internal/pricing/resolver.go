// Package pricing resolves unit prices through an ordered chain of tiers:
// in-process cache, persistent store, live pricing API and a static heuristic.
package pricing

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"migration-cost/db/store"
	domain "migration-cost/decision/pricing"
	"migration-cost/internal/cache"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/metrics"
)

// LiveSource queries an online pricing API for one dimension.
type LiveSource interface {
	Lookup(ctx context.Context, dim domain.PriceDimension) (*domain.PriceRecord, error)
}

// ErrNoLivePrice is returned by a LiveSource that answered without a price.
var ErrNoLivePrice = errors.New("live pricing source has no price for dimension")

// Tier names a resolution step.
type Tier string

const (
	TierCache     Tier = "cache"
	TierStore     Tier = "store"
	TierLive      Tier = "live_api"
	TierHeuristic Tier = "heuristic"
)

// Config tunes the resolver.
type Config struct {
	CacheSize       int
	CacheTTL        time.Duration
	LiveTimeout     time.Duration
	ResolveTimeout  time.Duration // bounds one uncached lookup across tiers 2 to 4
	LiveRateLimit   float64 // requests per second, 0 disables limiting
	LiveBurst       int
	WriteBack       bool
	Strict          bool // never fall back to heuristic prices
	MaxConcurrency  int
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CacheSize:       10000,
		CacheTTL:        time.Hour,
		LiveTimeout:     20 * time.Second,
		ResolveTimeout:  45 * time.Second,
		LiveRateLimit:   5,
		LiveBurst:       1,
		WriteBack:       true,
		MaxConcurrency:  4,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// Resolver implements tiered price resolution. It is safe for concurrent use.
type Resolver struct {
	store     store.PricingStore
	live      LiveSource
	heuristic *Heuristic
	cache     *cache.TTL[domain.PriceDimension, domain.PriceRecord]
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	stats     *tierStats
	cfg       Config
	logger    zerolog.Logger
}

// NewResolver wires the tiers. st and live may be nil to skip that tier.
func NewResolver(st store.PricingStore, live LiveSource, cfg Config, logger zerolog.Logger) *Resolver {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.LiveTimeout <= 0 {
		cfg.LiveTimeout = def.LiveTimeout
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = max(def.ResolveTimeout, 2*cfg.LiveTimeout)
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}

	r := &Resolver{
		store:     st,
		live:      live,
		heuristic: NewHeuristic(),
		cache:     cache.New[domain.PriceDimension, domain.PriceRecord](cfg.CacheSize, cfg.CacheTTL, domain.PriceDimension.Key),
		stats:     newTierStats(),
		cfg:       cfg,
		logger:    logger.With().Str("component", "price_resolver").Logger(),
	}

	if cfg.LiveRateLimit > 0 {
		burst := max(cfg.LiveBurst, 1)
		r.limiter = rate.NewLimiter(rate.Limit(cfg.LiveRateLimit), burst)
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "aws-pricing-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoLivePrice)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.LiveBreakerState.Set(float64(to))
			r.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("live pricing breaker state changed")
		},
	})

	return r
}

// Resolve returns the price for dim from the first tier that has one.
// Invalid dimensions fail with a configuration error before any lookup.
// Concurrent callers for the same dimension share one lookup; cancelling ctx
// abandons only this caller's wait.
func (r *Resolver) Resolve(ctx context.Context, dim domain.PriceDimension) (*domain.PriceRecord, error) {
	if err := dim.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	rec, hit, err := r.cache.GetOrCompute(ctx, dim, func(shared context.Context) (domain.PriceRecord, bool, error) {
		shared, cancel := context.WithTimeout(shared, r.cfg.ResolveTimeout)
		defer cancel()
		return r.resolveUncached(shared, dim)
	})
	if hit {
		r.stats.observe(TierCache, outcomeHit, time.Since(start))
		return &rec, nil
	}
	r.stats.observe(TierCache, outcomeMiss, 0)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// resolveUncached walks tiers 2 to 4. Only store and live results may be cached.
// ctx carries the resolver's own deadline; once it passes the walk drops to
// the heuristic tier.
func (r *Resolver) resolveUncached(ctx context.Context, dim domain.PriceDimension) (domain.PriceRecord, bool, error) {
	if rec, ok := r.lookupStore(ctx, dim); ok {
		return rec, true, nil
	}

	if rec, ok := r.lookupLive(ctx, dim); ok {
		r.writeBack(ctx, rec)
		return rec, true, nil
	}

	if r.cfg.Strict {
		return domain.PriceRecord{}, false, perrors.NewPriceNotFoundError(dim.Key())
	}

	start := time.Now()
	rec, ok := r.heuristic.Estimate(dim)
	if !ok {
		r.stats.observe(TierHeuristic, outcomeMiss, time.Since(start))
		return domain.PriceRecord{}, false, perrors.NewPriceNotFoundError(dim.Key())
	}
	r.stats.observe(TierHeuristic, outcomeHit, time.Since(start))
	r.logger.Debug().Str("dimension", dim.Key()).Str("price", rec.UnitPrice.String()).Msg("using heuristic price")
	return rec, false, nil
}

func (r *Resolver) lookupStore(ctx context.Context, dim domain.PriceDimension) (domain.PriceRecord, bool) {
	if r.store == nil {
		return domain.PriceRecord{}, false
	}

	start := time.Now()
	rec, err := r.store.Lookup(ctx, dim)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		r.stats.observe(TierStore, outcomeHit, elapsed)
		return *rec, true
	case errors.Is(err, store.ErrNotFound):
		r.stats.observe(TierStore, outcomeMiss, elapsed)
	default:
		r.stats.observe(TierStore, outcomeError, elapsed)
		r.logger.Warn().Err(err).Str("dimension", dim.Key()).Msg("pricing store lookup failed")
	}
	return domain.PriceRecord{}, false
}

func (r *Resolver) lookupLive(ctx context.Context, dim domain.PriceDimension) (domain.PriceRecord, bool) {
	if r.live == nil {
		return domain.PriceRecord{}, false
	}

	start := time.Now()
	if ctx.Err() != nil {
		r.stats.observe(TierLive, outcomeError, 0)
		return domain.PriceRecord{}, false
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			r.stats.observe(TierLive, outcomeError, time.Since(start))
			return domain.PriceRecord{}, false
		}
	}

	lctx, cancel := context.WithTimeout(ctx, r.cfg.LiveTimeout)
	defer cancel()

	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.live.Lookup(lctx, dim)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		rec := *out.(*domain.PriceRecord)
		rec.Dimension = dim
		rec.Source = domain.SourceLiveAPI
		rec.Confidence = domain.SourceConfidence(rec.Source)
		r.stats.observe(TierLive, outcomeHit, elapsed)
		return rec, true
	case errors.Is(err, ErrNoLivePrice):
		r.stats.observe(TierLive, outcomeMiss, elapsed)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		r.stats.observe(TierLive, outcomeError, elapsed)
		r.logger.Debug().Str("dimension", dim.Key()).Msg("live pricing skipped, breaker open")
	default:
		r.stats.observe(TierLive, outcomeError, elapsed)
		r.logger.Warn().Err(err).Str("dimension", dim.Key()).Dur("elapsed", elapsed).Msg("live pricing lookup failed")
	}
	return domain.PriceRecord{}, false
}

// writeBack persists a live price so later processes hit the store tier.
func (r *Resolver) writeBack(ctx context.Context, rec domain.PriceRecord) {
	if !r.cfg.WriteBack || r.store == nil {
		return
	}
	if _, err := r.store.BulkUpsert(ctx, slices.Values([]domain.PriceRecord{rec})); err != nil {
		r.logger.Warn().Err(err).Str("dimension", rec.Dimension.Key()).Msg("failed to write back live price")
	}
}

// BatchResult pairs a dimension with its resolution outcome.
type BatchResult struct {
	Dimension domain.PriceDimension `json:"dimension"`
	Record    *domain.PriceRecord   `json:"record,omitempty"`
	Err       error                 `json:"-"`
}

// ResolveBatch resolves dims concurrently, bounded by MaxConcurrency.
// Results keep input order and each failure stays with its own dimension.
func (r *Resolver) ResolveBatch(ctx context.Context, dims []domain.PriceDimension) []BatchResult {
	results := make([]BatchResult, len(dims))

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrency)

	for i, dim := range dims {
		results[i].Dimension = dim
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			rec, err := r.Resolve(ctx, dim)
			results[i].Record = rec
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ClearCache drops every cached price.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
	r.logger.Info().Msg("price cache cleared")
}

// Diagnostics reports per-tier counters and current resolver state.
func (r *Resolver) Diagnostics() Diagnostics {
	return Diagnostics{
		Tiers:        r.stats.snapshot(),
		CacheEntries: r.cache.Len(),
		CacheTTL:     r.cache.TTL().String(),
		StoreEnabled: r.store != nil,
		LiveEnabled:  r.live != nil,
		BreakerState: r.breaker.State().String(),
		Strict:       r.cfg.Strict,
	}
}
