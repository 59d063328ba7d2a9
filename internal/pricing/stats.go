package pricing

import (
	"sync"
	"time"

	"migration-cost/pkg/metrics"
)

type outcome string

const (
	outcomeHit   outcome = "hit"
	outcomeMiss  outcome = "miss"
	outcomeError outcome = "error"
)

// TierStats counts lookups seen by one tier since startup.
type TierStats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Errors     int64   `json:"errors"`
	AvgLatency float64 `json:"avg_latency_ms"`
}

// Diagnostics is a point-in-time view of the resolver.
type Diagnostics struct {
	Tiers        map[Tier]TierStats `json:"tiers"`
	CacheEntries int                `json:"cache_entries"`
	CacheTTL     string             `json:"cache_ttl"`
	StoreEnabled bool               `json:"store_enabled"`
	LiveEnabled  bool               `json:"live_enabled"`
	BreakerState string             `json:"breaker_state"`
	Strict       bool               `json:"strict"`
}

type tierCounter struct {
	hits, misses, errors int64
	total                time.Duration
}

type tierStats struct {
	mu    sync.Mutex
	tiers map[Tier]*tierCounter
}

func newTierStats() *tierStats {
	s := &tierStats{tiers: make(map[Tier]*tierCounter, 4)}
	for _, t := range []Tier{TierCache, TierStore, TierLive, TierHeuristic} {
		s.tiers[t] = &tierCounter{}
	}
	return s
}

func (s *tierStats) observe(tier Tier, o outcome, elapsed time.Duration) {
	metrics.ResolverLookups.WithLabelValues(string(tier), string(o)).Inc()
	if elapsed > 0 {
		metrics.ResolverDuration.WithLabelValues(string(tier)).Observe(elapsed.Seconds())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.tiers[tier]
	switch o {
	case outcomeHit:
		c.hits++
	case outcomeMiss:
		c.misses++
	case outcomeError:
		c.errors++
	}
	c.total += elapsed
}

func (s *tierStats) snapshot() map[Tier]TierStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Tier]TierStats, len(s.tiers))
	for tier, c := range s.tiers {
		st := TierStats{Hits: c.hits, Misses: c.misses, Errors: c.errors}
		if n := c.hits + c.misses + c.errors; n > 0 {
			st.AvgLatency = float64(c.total.Microseconds()) / float64(n) / 1000
		}
		out[tier] = st
	}
	return out
}
