// Package recommend maps VM footprints onto EC2 instance types.
package recommend

import (
	"cmp"
	"slices"

	"migration-cost/decision/inventory"
	"migration-cost/pkg/confidence"
)

const (
	// A candidate may exceed the footprint by at most this factor in either dimension.
	maxOversize = 4

	memoryRatio  = 0.25 // vCPU per GB below which memory optimized is targeted
	computeRatio = 0.75 // vCPU per GB above which compute optimized is targeted

	burstableMaxVCPU = 4
	burstableMaxMem  = 16

	performanceWeight = 0.6
	efficiencyWeight  = 0.4

	maxAlternatives = 3

	// fallbackPenalty scales the confidence of a size-band default.
	fallbackPenalty = 0.5
)

// Recommendation is the chosen instance type for one footprint.
type Recommendation struct {
	SKU                   string   `json:"sku"`
	Family                Category `json:"family"`
	TargetFamily          Category `json:"target_family"`
	VCPU                  int      `json:"vcpu"`
	MemoryGB              float64  `json:"memory_gb"`
	ConfidenceScore       float64  `json:"confidence_score"`
	CostEfficiencyScore   float64  `json:"cost_efficiency_score"`
	PerformanceMatchScore float64  `json:"performance_match_score"`
	Alternatives          []string `json:"alternatives"`
	Fallback              bool     `json:"fallback,omitempty"`
}

// Recommender scores a static catalog. It holds no mutable state.
type Recommender struct {
	catalog []Candidate
	bySKU   map[string]Candidate
}

// New builds a recommender over catalog, or the default catalog when empty.
func New(catalog []Candidate) *Recommender {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	r := &Recommender{
		catalog: slices.Clone(catalog),
		bySKU:   make(map[string]Candidate, len(catalog)),
	}
	for _, c := range r.catalog {
		r.bySKU[c.SKU] = c
	}
	return r
}

// Candidate looks up a catalog entry by SKU.
func (r *Recommender) Candidate(sku string) (Candidate, bool) {
	c, ok := r.bySKU[sku]
	return c, ok
}

// Classify picks the target category from the vCPU to memory ratio.
func Classify(fp inventory.Footprint) Category {
	ratio := float64(fp.VCPU) / fp.MemoryGB
	switch {
	case ratio < memoryRatio:
		return MemoryOptimized
	case ratio > computeRatio:
		return ComputeOptimized
	case fp.VCPU <= burstableMaxVCPU && fp.MemoryGB <= burstableMaxMem &&
		(fp.WorkloadClass == inventory.Development || fp.WorkloadClass == inventory.Testing):
		return Burstable
	default:
		return GeneralPurpose
	}
}

type scored struct {
	Candidate
	performance float64
	efficiency  float64
	confidence  float64
}

func score(fp inventory.Footprint, c Candidate) scored {
	vcpu := float64(fp.VCPU)
	perf := (min(1, float64(c.VCPU)/vcpu) + min(1, c.MemoryGB/fp.MemoryGB)) / 2
	eff := (min(1, vcpu/float64(c.VCPU)) + min(1, fp.MemoryGB/c.MemoryGB)) / 2
	conf := confidence.WeightedAverage([]float64{perf, eff}, []float64{performanceWeight, efficiencyWeight})
	return scored{
		Candidate:   c,
		performance: confidence.Round4(perf),
		efficiency:  confidence.Round4(eff),
		confidence:  confidence.Round4(conf),
	}
}

// Recommend always returns a result. fp is expected to be validated.
func (r *Recommender) Recommend(fp inventory.Footprint) Recommendation {
	target := Classify(fp)

	var sized, matched []Candidate
	for _, c := range r.catalog {
		if !fits(fp, c) {
			continue
		}
		sized = append(sized, c)
		if c.Category == target {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		matched = sized
	}
	if len(matched) == 0 {
		return r.sizeBand(fp, target)
	}

	ranked := make([]scored, 0, len(matched))
	for _, c := range matched {
		ranked = append(ranked, score(fp, c))
	}
	slices.SortFunc(ranked, func(a, b scored) int {
		return cmp.Or(
			cmp.Compare(b.confidence, a.confidence),
			cmp.Compare(a.VCPU, b.VCPU),
			cmp.Compare(a.SKU, b.SKU),
		)
	})

	best := ranked[0]
	alts := make([]string, 0, maxAlternatives)
	for _, s := range ranked[1:min(len(ranked), maxAlternatives+1)] {
		alts = append(alts, s.SKU)
	}

	return Recommendation{
		SKU:                   best.SKU,
		Family:                best.Category,
		TargetFamily:          target,
		VCPU:                  best.VCPU,
		MemoryGB:              best.MemoryGB,
		ConfidenceScore:       best.confidence,
		CostEfficiencyScore:   best.efficiency,
		PerformanceMatchScore: best.performance,
		Alternatives:          alts,
	}
}

func fits(fp inventory.Footprint, c Candidate) bool {
	return c.VCPU >= fp.VCPU && c.VCPU <= maxOversize*fp.VCPU &&
		c.MemoryGB >= fp.MemoryGB && c.MemoryGB <= maxOversize*fp.MemoryGB
}

// sizeBand picks the smallest entry covering both minimums, or the largest
// general purpose size when nothing does.
func (r *Recommender) sizeBand(fp inventory.Footprint, target Category) Recommendation {
	var covering []Candidate
	for _, c := range r.catalog {
		if c.VCPU >= fp.VCPU && c.MemoryGB >= fp.MemoryGB {
			covering = append(covering, c)
		}
	}

	var pick Candidate
	if len(covering) > 0 {
		pick = slices.MinFunc(covering, func(a, b Candidate) int {
			return cmp.Or(
				cmp.Compare(a.VCPU, b.VCPU),
				cmp.Compare(a.MemoryGB, b.MemoryGB),
				cmp.Compare(a.SKU, b.SKU),
			)
		})
	} else if c, ok := r.Candidate(largestDefault); ok {
		pick = c
	} else {
		pick = slices.MaxFunc(r.catalog, func(a, b Candidate) int {
			return cmp.Or(cmp.Compare(a.VCPU, b.VCPU), cmp.Compare(b.SKU, a.SKU))
		})
	}

	s := score(fp, pick)
	return Recommendation{
		SKU:                   pick.SKU,
		Family:                pick.Category,
		TargetFamily:          target,
		VCPU:                  pick.VCPU,
		MemoryGB:              pick.MemoryGB,
		ConfidenceScore:       confidence.Round4(confidence.Degrade(s.confidence, fallbackPenalty)),
		CostEfficiencyScore:   s.efficiency,
		PerformanceMatchScore: s.performance,
		Alternatives:          []string{},
		Fallback:              true,
	}
}
