package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	domain "migration-cost/decision/pricing"
)

// familyUnitRates is the us-east-1 Linux on-demand hourly price of one
// normalization unit (a "small") for each instance family. AWS prices sizes
// within a family linearly in these units, so large = 4 units.
var familyUnitRates = map[string]string{
	"t2":  "0.0232",
	"t3":  "0.0208",
	"t3a": "0.0188",
	"t4g": "0.0168",
	"m5":  "0.024",
	"m5a": "0.0215",
	"m6a": "0.0216",
	"m6g": "0.01925",
	"m6i": "0.024",
	"m7g": "0.0204",
	"m7i": "0.0252",
	"c5":  "0.02125",
	"c5a": "0.01925",
	"c6g": "0.017",
	"c6i": "0.02125",
	"c7g": "0.0181",
	"c7i": "0.0223125",
	"r5":  "0.0315",
	"r5a": "0.0282",
	"r6g": "0.0252",
	"r6i": "0.0315",
	"r7g": "0.02678",
	"r7i": "0.033075",
	"i3":  "0.039",
}

// sizeUnits is the normalization factor of each instance size.
var sizeUnits = map[string]string{
	"nano":     "0.25",
	"micro":    "0.5",
	"small":    "1",
	"medium":   "2",
	"large":    "4",
	"xlarge":   "8",
	"2xlarge":  "16",
	"3xlarge":  "24",
	"4xlarge":  "32",
	"6xlarge":  "48",
	"8xlarge":  "64",
	"9xlarge":  "72",
	"12xlarge": "96",
	"16xlarge": "128",
	"18xlarge": "144",
	"24xlarge": "192",
	"32xlarge": "256",
	"48xlarge": "384",
}

// storageRates is the us-east-1 GB-month price per volume type.
var storageRates = map[string]string{
	"gp3":      "0.08",
	"gp2":      "0.10",
	"io1":      "0.125",
	"io2":      "0.125",
	"st1":      "0.045",
	"sc1":      "0.015",
	"standard": "0.05",
}

// regionMultipliers scale us-east-1 rates to other regions. Regions not
// listed are priced at 1.0.
var regionMultipliers = map[string]string{
	"us-east-1":      "1.00",
	"us-east-2":      "1.00",
	"us-west-2":      "1.00",
	"us-west-1":      "1.12",
	"ca-central-1":   "1.06",
	"eu-west-1":      "1.07",
	"eu-west-2":      "1.12",
	"eu-west-3":      "1.13",
	"eu-central-1":   "1.15",
	"eu-north-1":     "1.03",
	"eu-south-1":     "1.12",
	"ap-south-1":     "1.05",
	"ap-southeast-1": "1.20",
	"ap-southeast-2": "1.22",
	"ap-northeast-1": "1.25",
	"ap-northeast-2": "1.20",
	"ap-northeast-3": "1.25",
	"sa-east-1":      "1.55",
	"me-south-1":     "1.18",
	"af-south-1":     "1.22",
}

// Commitment discounts applied on top of the on-demand estimate.
var (
	discountOnDemand   = decimal.NewFromInt(1)
	discountReserved1  = decimal.RequireFromString("0.70")
	discountReserved3  = decimal.RequireFromString("0.60")
	discountSavings1yr = decimal.RequireFromString("0.72")
	discountSavings3yr = decimal.RequireFromString("0.66")
)

// Heuristic derives approximate prices from static tables.
type Heuristic struct {
	families map[string]decimal.Decimal
	sizes    map[string]decimal.Decimal
	storage  map[string]decimal.Decimal
	regions  map[string]decimal.Decimal
	now      func() time.Time
}

func NewHeuristic() *Heuristic {
	return &Heuristic{
		families: parseTable(familyUnitRates),
		sizes:    parseTable(sizeUnits),
		storage:  parseTable(storageRates),
		regions:  parseTable(regionMultipliers),
		now:      time.Now,
	}
}

func parseTable(in map[string]string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = decimal.RequireFromString(v)
	}
	return out
}

// BaseRate is the us-east-1 on-demand rate for a compute or storage SKU.
func (h *Heuristic) BaseRate(rt domain.ResourceType, sku string) (decimal.Decimal, bool) {
	if rt == domain.ResourceStorage {
		rate, ok := h.storage[sku]
		return rate, ok
	}

	family, size, ok := domain.SplitInstanceType(sku)
	if !ok {
		return decimal.Zero, false
	}
	perUnit, ok := h.families[family]
	if !ok {
		return decimal.Zero, false
	}
	factor, ok := h.sizes[size]
	if !ok {
		return decimal.Zero, false
	}
	return perUnit.Mul(factor), true
}

// RegionMultiplier returns the scaling factor for region.
func (h *Heuristic) RegionMultiplier(region string) decimal.Decimal {
	if m, ok := h.regions[region]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

// Discount returns the commitment discount factor for a dimension.
func Discount(dim domain.PriceDimension) decimal.Decimal {
	switch dim.PricingModel {
	case domain.ModelReserved:
		if dim.Term == domain.TermThree {
			return discountReserved3
		}
		return discountReserved1
	case domain.ModelSavingsPlan:
		if dim.Term == domain.TermThree {
			return discountSavings3yr
		}
		return discountSavings1yr
	default:
		return discountOnDemand
	}
}

// Estimate prices dim as base rate x region multiplier x OS uplift x
// discount. It reports false when the SKU is not in the static catalog.
func (h *Heuristic) Estimate(dim domain.PriceDimension) (domain.PriceRecord, bool) {
	base, ok := h.BaseRate(dim.ResourceType, dim.SKU)
	if !ok {
		return domain.PriceRecord{}, false
	}

	price := base.Mul(h.RegionMultiplier(dim.Region)).
		Mul(domain.OSMultiplier(dim.OperatingSystem)).
		Mul(Discount(dim)).
		Round(6)

	return domain.PriceRecord{
		Dimension:     dim,
		UnitPrice:     price,
		Currency:      domain.CurrencyUSD,
		Unit:          domain.ExpectedUnit(dim.ResourceType),
		EffectiveDate: h.now().UTC().Truncate(24 * time.Hour),
		Source:        domain.SourceHeuristic,
		Confidence:    domain.SourceConfidence(domain.SourceHeuristic),
	}, true
}
