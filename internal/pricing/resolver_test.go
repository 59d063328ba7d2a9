package pricing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migration-cost/db/store"
	domain "migration-cost/decision/pricing"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/units"
)

type countingStore struct {
	*store.MemoryStore
	lookups atomic.Int32
	failAll error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: store.NewMemoryStore()}
}

func (s *countingStore) Lookup(ctx context.Context, dim domain.PriceDimension) (*domain.PriceRecord, error) {
	s.lookups.Add(1)
	if s.failAll != nil {
		return nil, s.failAll
	}
	return s.MemoryStore.Lookup(ctx, dim)
}

type fakeLive struct {
	calls atomic.Int32
	price string
	err   error
}

func (f *fakeLive) Lookup(_ context.Context, dim domain.PriceDimension) (*domain.PriceRecord, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PriceRecord{
		Dimension:     dim,
		UnitPrice:     decimal.RequireFromString(f.price),
		Currency:      domain.CurrencyUSD,
		Unit:          domain.ExpectedUnit(dim.ResourceType),
		EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

// gatedLive answers once release is closed, or gives up when ctx ends.
type gatedLive struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	price   string
}

func newGatedLive(price string) *gatedLive {
	return &gatedLive{started: make(chan struct{}, 1), release: make(chan struct{}), price: price}
}

func (g *gatedLive) Lookup(ctx context.Context, dim domain.PriceDimension) (*domain.PriceRecord, error) {
	g.calls.Add(1)
	select {
	case g.started <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
		return (&fakeLive{price: g.price}).Lookup(ctx, dim)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// slowStore delays every lookup and records how many overlapped.
type slowStore struct {
	*store.MemoryStore
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func (s *slowStore) Lookup(ctx context.Context, dim domain.PriceDimension) (*domain.PriceRecord, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	return s.MemoryStore.Lookup(ctx, dim)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LiveRateLimit = 0
	cfg.CacheSize = 100
	return cfg
}

func bulkRecord(dim domain.PriceDimension, price string) domain.PriceRecord {
	return domain.PriceRecord{
		Dimension:     dim,
		UnitPrice:     decimal.RequireFromString(price),
		Currency:      domain.CurrencyUSD,
		Unit:          domain.ExpectedUnit(dim.ResourceType),
		EffectiveDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Source:        domain.SourceBulk,
		Confidence:    domain.ConfidenceBulk,
	}
}

func seed(t *testing.T, st store.PricingStore, recs ...domain.PriceRecord) {
	t.Helper()
	_, err := st.BulkUpsert(context.Background(), func(yield func(domain.PriceRecord) bool) {
		for _, r := range recs {
			if !yield(r) {
				return
			}
		}
	})
	require.NoError(t, err)
}

func TestResolveFromStoreThenCache(t *testing.T) {
	st := newCountingStore()
	dim := domain.OnDemandCompute("m5.large", "us-east-1")
	seed(t, st, bulkRecord(dim, "0.096"))

	r := NewResolver(st, nil, testConfig(), zerolog.Nop())

	rec, err := r.Resolve(context.Background(), dim)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceBulk, rec.Source)
	assert.Equal(t, "0.096", rec.UnitPrice.String())

	rec, err = r.Resolve(context.Background(), dim)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceBulk, rec.Source)
	assert.Equal(t, int32(1), st.lookups.Load())

	diag := r.Diagnostics()
	assert.Equal(t, int64(1), diag.Tiers[TierCache].Hits)
	assert.Equal(t, int64(1), diag.Tiers[TierStore].Hits)
	assert.Equal(t, 1, diag.CacheEntries)
}

func TestResolveLiveWritesBack(t *testing.T) {
	st := newCountingStore()
	live := &fakeLive{price: "0.1"}
	dim := domain.OnDemandCompute("m5.xlarge", "us-west-2")

	r := NewResolver(st, live, testConfig(), zerolog.Nop())

	rec, err := r.Resolve(context.Background(), dim)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLiveAPI, rec.Source)
	assert.Equal(t, domain.ConfidenceLiveAPI, rec.Confidence)

	stored, err := st.MemoryStore.Lookup(context.Background(), dim)
	require.NoError(t, err)
	assert.Equal(t, "0.1", stored.UnitPrice.String())

	r.ClearCache()
	rec, err = r.Resolve(context.Background(), dim)
	require.NoError(t, err)
	assert.Equal(t, int32(1), live.calls.Load(), "second lookup should be served by the store")
	assert.Equal(t, "0.1", rec.UnitPrice.String())
}

func TestResolveWithoutWriteBack(t *testing.T) {
	st := newCountingStore()
	cfg := testConfig()
	cfg.WriteBack = false

	r := NewResolver(st, &fakeLive{price: "0.2"}, cfg, zerolog.Nop())
	_, err := r.Resolve(context.Background(), domain.OnDemandCompute("c5.xlarge", "us-east-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())
}

func TestResolveFallsBackToHeuristic(t *testing.T) {
	st := newCountingStore()
	live := &fakeLive{err: ErrNoLivePrice}
	dim := domain.OnDemandCompute("m5.large", "us-east-1")

	r := NewResolver(st, live, testConfig(), zerolog.Nop())

	for range 2 {
		rec, err := r.Resolve(context.Background(), dim)
		require.NoError(t, err)
		assert.Equal(t, domain.SourceHeuristic, rec.Source)
		assert.Equal(t, "0.096", rec.UnitPrice.String())
	}

	// heuristic prices are never cached
	assert.Equal(t, int32(2), st.lookups.Load())
	assert.Equal(t, 0, r.Diagnostics().CacheEntries)
	assert.Equal(t, int64(2), r.Diagnostics().Tiers[TierHeuristic].Hits)
}

func TestResolveStoreErrorContinues(t *testing.T) {
	st := newCountingStore()
	st.failAll = errors.New("connection refused")

	r := NewResolver(st, nil, testConfig(), zerolog.Nop())
	rec, err := r.Resolve(context.Background(), domain.OnDemandCompute("r5.large", "us-east-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceHeuristic, rec.Source)
	assert.Equal(t, int64(1), r.Diagnostics().Tiers[TierStore].Errors)
}

func TestResolveStrict(t *testing.T) {
	cfg := testConfig()
	cfg.Strict = true
	r := NewResolver(newCountingStore(), nil, cfg, zerolog.Nop())

	_, err := r.Resolve(context.Background(), domain.OnDemandCompute("m5.large", "us-east-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestResolveUnknownSKU(t *testing.T) {
	r := NewResolver(newCountingStore(), nil, testConfig(), zerolog.Nop())

	_, err := r.Resolve(context.Background(), domain.OnDemandCompute("zz9.mega", "us-east-1"))
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestResolveInvalidDimension(t *testing.T) {
	st := newCountingStore()
	r := NewResolver(st, nil, testConfig(), zerolog.Nop())

	dim := domain.OnDemandCompute("m5.large", "us-east-1")
	dim.Term = domain.TermOneYr

	_, err := r.Resolve(context.Background(), dim)
	assert.ErrorIs(t, err, perrors.ErrConfiguration)
	assert.Equal(t, int32(0), st.lookups.Load())
}

func TestResolveCancelled(t *testing.T) {
	r := NewResolver(newCountingStore(), nil, testConfig(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, domain.OnDemandCompute("m5.large", "us-east-1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBreakerStopsCallingLiveSource(t *testing.T) {
	live := &fakeLive{err: perrors.NewFetchError("pricing api", errors.New("throttled"))}
	cfg := testConfig()
	cfg.BreakerFailures = 2
	cfg.BreakerCooldown = time.Hour

	r := NewResolver(nil, live, cfg, zerolog.Nop())
	dim := domain.OnDemandCompute("m5.large", "us-east-1")

	for range 5 {
		rec, err := r.Resolve(context.Background(), dim)
		require.NoError(t, err)
		assert.Equal(t, domain.SourceHeuristic, rec.Source)
	}

	assert.Equal(t, int32(2), live.calls.Load())
	assert.Equal(t, "open", r.Diagnostics().BreakerState)
}

func TestNoLivePriceDoesNotTripBreaker(t *testing.T) {
	live := &fakeLive{err: ErrNoLivePrice}
	cfg := testConfig()
	cfg.BreakerFailures = 1

	r := NewResolver(nil, live, cfg, zerolog.Nop())
	for range 3 {
		_, err := r.Resolve(context.Background(), domain.OnDemandCompute("m5.large", "us-east-1"))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), live.calls.Load())
	assert.Equal(t, "closed", r.Diagnostics().BreakerState)
}

func TestResolveBatch(t *testing.T) {
	st := newCountingStore()
	od := domain.OnDemandCompute("m5.large", "us-east-1")
	gp3 := domain.StorageDimension("gp3", "us-east-1")
	seed(t, st, bulkRecord(od, "0.096"), bulkRecord(gp3, "0.08"))

	bad := domain.OnDemandCompute("zz9.mega", "us-east-1")
	invalid := domain.StorageDimension("", "us-east-1")

	r := NewResolver(st, nil, testConfig(), zerolog.Nop())
	results := r.ResolveBatch(context.Background(), []domain.PriceDimension{od, bad, gp3, invalid})

	require.Len(t, results, 4)
	assert.Equal(t, od, results[0].Dimension)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "0.096", results[0].Record.UnitPrice.String())

	assert.ErrorIs(t, results[1].Err, perrors.ErrNotFound)
	assert.Nil(t, results[1].Record)

	require.NoError(t, results[2].Err)
	assert.Equal(t, units.UnitGBMonth, results[2].Record.Unit)

	assert.ErrorIs(t, results[3].Err, perrors.ErrConfiguration)
}

func TestResolveCallerCancelDoesNotFailSiblings(t *testing.T) {
	live := newGatedLive("0.1")
	r := NewResolver(nil, live, testConfig(), zerolog.Nop())
	dim := domain.OnDemandCompute("m5.large", "us-east-1")

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(first, dim)
		firstErr <- err
	}()
	<-live.started

	type outcome struct {
		rec *domain.PriceRecord
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		rec, err := r.Resolve(context.Background(), dim)
		second <- outcome{rec, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(live.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, domain.SourceLiveAPI, got.rec.Source)
	assert.Equal(t, "0.1", got.rec.UnitPrice.String())
	assert.Equal(t, int32(1), live.calls.Load())
}

func TestResolveLiveTimeoutFallsThrough(t *testing.T) {
	live := newGatedLive("0.1")
	cfg := testConfig()
	cfg.LiveTimeout = 50 * time.Millisecond

	r := NewResolver(newCountingStore(), live, cfg, zerolog.Nop())

	start := time.Now()
	rec, err := r.Resolve(context.Background(), domain.OnDemandCompute("m5.large", "us-east-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceHeuristic, rec.Source)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int64(1), r.Diagnostics().Tiers[TierLive].Errors)
}

func TestResolveBudgetFallsThrough(t *testing.T) {
	live := newGatedLive("0.1")
	cfg := testConfig()
	cfg.LiveTimeout = time.Hour
	cfg.ResolveTimeout = 50 * time.Millisecond

	r := NewResolver(nil, live, cfg, zerolog.Nop())

	rec, err := r.Resolve(context.Background(), domain.OnDemandCompute("m5.large", "us-east-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceHeuristic, rec.Source)
}

func TestResolveBatchOverlapsLookups(t *testing.T) {
	st := &slowStore{MemoryStore: store.NewMemoryStore(), delay: 30 * time.Millisecond}
	skus := []string{"m5.large", "m5.xlarge", "c5.large", "c5.xlarge", "r5.large", "r5.xlarge", "t3.large", "t3.medium"}

	dims := make([]domain.PriceDimension, 0, len(skus))
	recs := make([]domain.PriceRecord, 0, len(skus))
	for _, sku := range skus {
		dim := domain.OnDemandCompute(sku, "us-east-1")
		dims = append(dims, dim)
		recs = append(recs, bulkRecord(dim, "0.1"))
	}
	seed(t, st, recs...)

	cfg := testConfig()
	cfg.MaxConcurrency = 4
	r := NewResolver(st, nil, cfg, zerolog.Nop())

	results := r.ResolveBatch(context.Background(), dims)
	require.Len(t, results, len(dims))
	for i, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, dims[i], res.Dimension)
		assert.Equal(t, domain.SourceBulk, res.Record.Source)
	}
	assert.Greater(t, st.peak.Load(), int32(1))
	assert.LessOrEqual(t, st.peak.Load(), int32(4))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Greater(t, cfg.ResolveTimeout, cfg.LiveTimeout)
}
