// Package estimation turns recommendations and resolved prices into monthly
// and annual cost estimates for migrated VMs.
package estimation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"migration-cost/decision/inventory"
	"migration-cost/decision/pricing"
	"migration-cost/decision/recommend"
	"migration-cost/pkg/confidence"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/units"
)

// PriceResolver resolves one price dimension.
type PriceResolver interface {
	Resolve(ctx context.Context, dim pricing.PriceDimension) (*pricing.PriceRecord, error)
}

// Status of a single estimate.
type Status string

const (
	StatusPriced      Status = "priced"
	StatusUnavailable Status = "pricing_unavailable"
)

// Cost categories used in drivers and summaries.
const (
	CategoryCompute = "compute"
	CategoryStorage = "storage"
)

var (
	hundred = decimal.NewFromInt(100)

	// spotFactor prices spot capacity as a fraction of on-demand.
	spotFactor = decimal.RequireFromString("0.30")
)

// spotConfidence scales resolver confidence for the spot approximation.
const spotConfidence = 0.8

// CostDriver explains one line of an estimate.
type CostDriver struct {
	Category    string          `json:"category"`
	SKU         string          `json:"sku"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Unit        units.Unit      `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	Monthly     decimal.Decimal `json:"monthly"`
	Formula     string          `json:"formula"`
	Source      pricing.Source  `json:"source"`
	Confidence  float64         `json:"confidence"`
}

// CostEstimate is the priced result for one VM. When Status is
// pricing_unavailable every total is zero and Reason says why. A priced
// estimate may also total zero, for example at 0% utilization with no storage.
type CostEstimate struct {
	ComputeMonthly   decimal.Decimal `json:"compute_monthly"`
	StorageMonthly   decimal.Decimal `json:"storage_monthly"`
	TotalMonthly     decimal.Decimal `json:"total_monthly"`
	Annual           decimal.Decimal `json:"annual"`
	Plan             Plan            `json:"plan"`
	PricingPlanLabel string          `json:"pricing_plan_label"`
	Region           string          `json:"region"`
	Confidence       float64         `json:"confidence"`
	Status           Status          `json:"status"`
	Reason           string          `json:"reason,omitempty"`
	Drivers          []CostDriver    `json:"drivers,omitempty"`
}

// Engine estimates VM costs.
type Engine struct {
	resolver    PriceResolver
	recommender *recommend.Recommender
	logger      zerolog.Logger
}

// NewEngine creates an engine. A nil recommender uses the default catalog.
func NewEngine(resolver PriceResolver, recommender *recommend.Recommender, logger zerolog.Logger) *Engine {
	if recommender == nil {
		recommender = recommend.New(nil)
	}
	return &Engine{
		resolver:    resolver,
		recommender: recommender,
		logger:      logger.With().Str("component", "cost_estimator").Logger(),
	}
}

// Recommender exposes the engine's recommender.
func (e *Engine) Recommender() *recommend.Recommender { return e.recommender }

// Estimate prices fp on rec.SKU under cfg. cfg must already be validated.
// Missing prices yield a pricing_unavailable estimate, not an error; errors
// are returned only for cancellation.
func (e *Engine) Estimate(ctx context.Context, fp inventory.Footprint, rec recommend.Recommendation, cfg PricingConfig) (*CostEstimate, error) {
	plan, ok := cfg.Plans[fp.WorkloadClass]
	if !ok {
		return nil, perrors.NewConfigurationError(fmt.Sprintf("no plan configured for workload class %s", fp.WorkloadClass))
	}

	est := &CostEstimate{
		ComputeMonthly:   decimal.Zero,
		StorageMonthly:   decimal.Zero,
		TotalMonthly:     decimal.Zero,
		Annual:           decimal.Zero,
		Plan:             plan.Plan,
		PricingPlanLabel: plan.Label(),
		Region:           cfg.Region,
	}

	compute, err := e.computeDriver(ctx, fp, rec.SKU, cfg.Region, plan)
	if err != nil {
		return e.unavailable(est, err)
	}

	drivers := []CostDriver{compute}
	scores := []float64{compute.Confidence}

	storage := decimal.Zero
	if fp.StorageGB > 0 {
		sd, err := e.storageDriver(ctx, fp, cfg)
		if err != nil {
			return e.unavailable(est, err)
		}
		drivers = append(drivers, sd)
		scores = append(scores, sd.Confidence)
		storage = sd.Monthly
	}
	if rec.ConfidenceScore > 0 {
		scores = append(scores, rec.ConfidenceScore)
	}

	est.ComputeMonthly = compute.Monthly
	est.StorageMonthly = storage
	est.TotalMonthly = compute.Monthly.Add(storage)
	est.Annual = units.MonthlyToAnnual(est.TotalMonthly)
	est.Confidence = confidence.Round4(confidence.Aggregate(scores...))
	est.Status = StatusPriced
	est.Drivers = drivers
	return est, nil
}

// unavailable converts a lookup failure into an explicit unpriced estimate.
func (e *Engine) unavailable(est *CostEstimate, err error) (*CostEstimate, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	est.Status = StatusUnavailable
	est.Reason = err.Error()
	est.Confidence = 0
	return est, nil
}

// computeDriver resolves the Linux base rate and applies utilization and the
// guest OS uplift: hourly x 730.56 x util/100 x OS multiplier.
func (e *Engine) computeDriver(ctx context.Context, fp inventory.Footprint, sku, region string, plan PlanConfig) (CostDriver, error) {
	dim := computeDimension(sku, region, plan)
	price, err := e.resolver.Resolve(ctx, dim)
	if err != nil {
		return CostDriver{}, fmt.Errorf("compute price for %s: %w", sku, err)
	}

	hourly := price.UnitPrice
	conf := price.Confidence
	if plan.Plan == PlanSpot {
		hourly = hourly.Mul(spotFactor)
		conf = confidence.Degrade(conf, spotConfidence)
	}

	guest := fp.OperatingSystem
	if guest == "" {
		guest = pricing.OSLinux
	}
	util := decimal.NewFromFloat(plan.Utilization).Div(hundred)
	hours := units.HourlyToMonthly(decimal.NewFromInt(1)).Mul(util)
	multiplier := pricing.OSMultiplier(guest)
	monthly := hourly.Mul(hours).Mul(multiplier).Round(4)

	e.logger.Debug().
		Str("sku", sku).
		Str("source", string(price.Source)).
		Str("monthly", monthly.String()).
		Msg("compute priced")

	return CostDriver{
		Category:    CategoryCompute,
		SKU:         sku,
		Description: fmt.Sprintf("%s %s %s", sku, guest, plan.Label()),
		UnitPrice:   hourly,
		Unit:        units.UnitHours,
		Quantity:    hours,
		Monthly:     monthly,
		Formula: fmt.Sprintf("$%s/hr × %s hrs × %s%% util × %s (%s) = $%s",
			hourly.String(), units.HoursPerMonth, decimal.NewFromFloat(plan.Utilization).String(),
			multiplier.String(), guest, monthly.StringFixed(2)),
		Source:     price.Source,
		Confidence: conf,
	}, nil
}

// storageDriver prices the configured volume type, falling back once to the
// secondary type when the first has no price at any tier.
func (e *Engine) storageDriver(ctx context.Context, fp inventory.Footprint, cfg PricingConfig) (CostDriver, error) {
	volume := cfg.VolumeType
	price, err := e.resolver.Resolve(ctx, pricing.StorageDimension(volume, cfg.Region))
	if errors.Is(err, perrors.ErrNotFound) && cfg.FallbackVolumeType != "" && cfg.FallbackVolumeType != volume {
		e.logger.Debug().Str("volume_type", volume).Str("fallback", cfg.FallbackVolumeType).Msg("storage price missing, trying fallback volume type")
		volume = cfg.FallbackVolumeType
		price, err = e.resolver.Resolve(ctx, pricing.StorageDimension(volume, cfg.Region))
	}
	if err != nil {
		return CostDriver{}, fmt.Errorf("storage price for %s: %w", volume, err)
	}

	gb := decimal.NewFromFloat(fp.StorageGB)
	monthly := gb.Mul(price.UnitPrice).Round(4)

	return CostDriver{
		Category:    CategoryStorage,
		SKU:         volume,
		Description: fmt.Sprintf("%s GB %s block storage", gb.String(), volume),
		UnitPrice:   price.UnitPrice,
		Unit:        units.UnitGBMonth,
		Quantity:    gb,
		Monthly:     monthly,
		Formula:     fmt.Sprintf("%s GB × $%s/GB-Mo = $%s", gb.String(), price.UnitPrice.String(), monthly.StringFixed(2)),
		Source:      price.Source,
		Confidence:  price.Confidence,
	}, nil
}
