package estimation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"migration-cost/decision/inventory"
	"migration-cost/decision/recommend"
	"migration-cost/pkg/confidence"
	"migration-cost/pkg/metrics"
	"migration-cost/pkg/units"
)

// VMStatus is the outcome of one VM within a batch.
type VMStatus string

const (
	VMPriced      VMStatus = "priced"
	VMUnavailable VMStatus = "pricing_unavailable"
	VMInvalid     VMStatus = "invalid"
	VMFailed      VMStatus = "failed"
	VMCancelled   VMStatus = "cancelled"
)

// BatchOptions bounds a batch run.
type BatchOptions struct {
	Concurrency  int
	PerVMTimeout time.Duration
}

// DefaultBatchOptions returns four workers and a one minute per-VM timeout.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Concurrency: 4, PerVMTimeout: time.Minute}
}

// VMResult is the estimate for one inventory record.
type VMResult struct {
	VMID           string                    `json:"vm_id"`
	Name           string                    `json:"name,omitempty"`
	Status         VMStatus                  `json:"status"`
	Footprint      *inventory.Footprint      `json:"footprint,omitempty"`
	Recommendation *recommend.Recommendation `json:"recommendation,omitempty"`
	Estimate       *CostEstimate             `json:"estimate,omitempty"`
	Error          string                    `json:"error,omitempty"`
}

// Summary aggregates priced VMs. Unpriced VMs are counted but add nothing.
type Summary struct {
	VMCount         int                                         `json:"vm_count"`
	Priced          int                                         `json:"priced"`
	Unavailable     int                                         `json:"pricing_unavailable"`
	Invalid         int                                         `json:"invalid"`
	Failed          int                                         `json:"failed"`
	Cancelled       int                                         `json:"cancelled"`
	ComputeMonthly  decimal.Decimal                             `json:"compute_monthly"`
	StorageMonthly  decimal.Decimal                             `json:"storage_monthly"`
	TotalMonthly    decimal.Decimal                             `json:"total_monthly"`
	Annual          decimal.Decimal                             `json:"annual"`
	ByCategory      map[string]decimal.Decimal                  `json:"by_category"`
	ByWorkloadClass map[inventory.WorkloadClass]decimal.Decimal `json:"by_workload_class"`
	ByFamily        map[recommend.Category]decimal.Decimal      `json:"by_family"`
	Confidence      float64                                     `json:"confidence"`
	MinConfidence   float64                                     `json:"min_confidence"`
	IsIncomplete    bool                                        `json:"is_incomplete"`
}

// BatchResult holds per-VM results in input order plus the summary.
type BatchResult struct {
	BatchID   uuid.UUID     `json:"batch_id"`
	Region    string        `json:"region"`
	Results   []VMResult    `json:"results"`
	Summary   Summary       `json:"summary"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// EstimateVM validates, recommends and prices a single VM.
func (e *Engine) EstimateVM(ctx context.Context, vm inventory.VM, cfg PricingConfig) VMResult {
	res := VMResult{VMID: vm.Key(), Name: vm.Name}

	fp, err := vm.Footprint()
	if err != nil {
		res.Status = VMInvalid
		res.Error = err.Error()
		return res
	}
	res.Footprint = &fp

	rec := e.recommender.Recommend(fp)
	res.Recommendation = &rec

	est, err := e.Estimate(ctx, fp, rec, cfg)
	switch {
	case errors.Is(err, context.Canceled):
		res.Status = VMCancelled
		res.Error = err.Error()
	case err != nil:
		res.Status = VMFailed
		res.Error = err.Error()
	case est.Status == StatusUnavailable:
		res.Status = VMUnavailable
		res.Estimate = est
	default:
		res.Status = VMPriced
		res.Estimate = est
	}
	return res
}

// EstimateBatch prices vms with bounded concurrency. One VM failing or timing
// out does not affect the others; VMs not started before ctx ends are marked
// cancelled. cfg is validated once up front.
func (e *Engine) EstimateBatch(ctx context.Context, vms []inventory.VM, cfg PricingConfig, opts BatchOptions) (*BatchResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	def := DefaultBatchOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.PerVMTimeout <= 0 {
		opts.PerVMTimeout = def.PerVMTimeout
	}

	start := time.Now()
	results := make([]VMResult, len(vms))

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)

	for i, vm := range vms {
		if ctx.Err() != nil {
			results[i] = VMResult{VMID: vm.Key(), Name: vm.Name, Status: VMCancelled, Error: ctx.Err().Error()}
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = VMResult{VMID: vm.Key(), Name: vm.Name, Status: VMCancelled, Error: err.Error()}
				return nil
			}
			vctx, cancel := context.WithTimeout(ctx, opts.PerVMTimeout)
			defer cancel()

			results[i] = e.EstimateVM(vctx, vm, cfg)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		metrics.Estimates.WithLabelValues(string(r.Status)).Inc()
	}

	batch := &BatchResult{
		BatchID:   uuid.New(),
		Region:    cfg.Region,
		Results:   results,
		Summary:   Summarize(results),
		StartedAt: start.UTC(),
		Duration:  time.Since(start),
	}

	e.logger.Info().
		Str("batch_id", batch.BatchID.String()).
		Int("vms", batch.Summary.VMCount).
		Int("priced", batch.Summary.Priced).
		Int("unavailable", batch.Summary.Unavailable).
		Int("invalid", batch.Summary.Invalid).
		Int("failed", batch.Summary.Failed).
		Int("cancelled", batch.Summary.Cancelled).
		Str("total_monthly", batch.Summary.TotalMonthly.StringFixed(2)).
		Dur("duration", batch.Duration).
		Msg("batch estimate complete")

	return batch, nil
}

// Summarize totals priced results by category, workload class and family.
func Summarize(results []VMResult) Summary {
	s := Summary{
		VMCount:         len(results),
		ComputeMonthly:  decimal.Zero,
		StorageMonthly:  decimal.Zero,
		TotalMonthly:    decimal.Zero,
		Annual:          decimal.Zero,
		ByCategory:      map[string]decimal.Decimal{},
		ByWorkloadClass: map[inventory.WorkloadClass]decimal.Decimal{},
		ByFamily:        map[recommend.Category]decimal.Decimal{},
	}

	var scores []float64
	for _, r := range results {
		switch r.Status {
		case VMPriced:
			s.Priced++
		case VMUnavailable:
			s.Unavailable++
			continue
		case VMInvalid:
			s.Invalid++
			continue
		case VMFailed:
			s.Failed++
			continue
		case VMCancelled:
			s.Cancelled++
			continue
		}

		est := r.Estimate
		s.ComputeMonthly = s.ComputeMonthly.Add(est.ComputeMonthly)
		s.StorageMonthly = s.StorageMonthly.Add(est.StorageMonthly)
		s.TotalMonthly = s.TotalMonthly.Add(est.TotalMonthly)
		s.ByCategory[CategoryCompute] = s.ByCategory[CategoryCompute].Add(est.ComputeMonthly)
		s.ByCategory[CategoryStorage] = s.ByCategory[CategoryStorage].Add(est.StorageMonthly)

		class := r.Footprint.WorkloadClass
		s.ByWorkloadClass[class] = s.ByWorkloadClass[class].Add(est.TotalMonthly)
		family := r.Recommendation.Family
		s.ByFamily[family] = s.ByFamily[family].Add(est.TotalMonthly)

		scores = append(scores, est.Confidence)
	}

	s.Annual = units.MonthlyToAnnual(s.TotalMonthly)
	s.Confidence = confidence.Round4(confidence.Aggregate(scores...))
	s.MinConfidence = confidence.Min(scores...)
	s.IsIncomplete = s.Priced < s.VMCount
	return s
}
