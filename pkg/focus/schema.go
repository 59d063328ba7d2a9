// Package focus converts estimates into FinOps FOCUS cost rows so projected
// AWS spend can be loaded next to billing exports.
package focus

import (
	"time"

	"github.com/shopspring/decimal"

	"migration-cost/decision/estimation"
)

const (
	ProviderName = "AWS"
	ServiceName  = "Amazon Elastic Compute Cloud"

	ChargeCategoryUsage = "Usage"

	PricingCategoryStandard  = "Standard"
	PricingCategoryCommitted = "Committed"
	PricingCategoryDynamic   = "Dynamic"
)

// Row is one projected charge. Columns follow FOCUS 1.0 names; x_ columns are
// estimator extensions.
type Row struct {
	BilledCost        decimal.Decimal   `json:"BilledCost"`
	EffectiveCost     decimal.Decimal   `json:"EffectiveCost"`
	BillingCurrency   string            `json:"BillingCurrency"`
	ChargeCategory    string            `json:"ChargeCategory"`
	ChargeDescription string            `json:"ChargeDescription"`
	ChargePeriodStart time.Time         `json:"ChargePeriodStart"`
	ChargePeriodEnd   time.Time         `json:"ChargePeriodEnd"`
	PricingCategory   string            `json:"PricingCategory"`
	PricingQuantity   decimal.Decimal   `json:"PricingQuantity"`
	PricingUnit       string            `json:"PricingUnit"`
	ListUnitPrice     decimal.Decimal   `json:"ListUnitPrice"`
	ProviderName      string            `json:"ProviderName"`
	RegionId          string            `json:"RegionId"`
	ResourceId        string            `json:"ResourceId"`
	ResourceName      string            `json:"ResourceName,omitempty"`
	ServiceCategory   string            `json:"ServiceCategory"`
	ServiceName       string            `json:"ServiceName"`
	SkuId             string            `json:"SkuId"`
	Tags              map[string]string `json:"Tags,omitempty"`

	XPriceSource     string  `json:"x_PriceSource"`
	XConfidenceScore float64 `json:"x_ConfidenceScore"`
	XFormula         string  `json:"x_Formula,omitempty"`
}

// PricingCategory maps a purchase plan to its FOCUS pricing category.
func PricingCategory(p estimation.Plan) string {
	switch p {
	case estimation.PlanReserved, estimation.PlanSavingsPlan:
		return PricingCategoryCommitted
	case estimation.PlanSpot:
		return PricingCategoryDynamic
	default:
		return PricingCategoryStandard
	}
}

// FromBatch emits one row per cost driver of every priced VM, charged over
// the calendar month in which the batch started. Unpriced VMs produce no rows.
func FromBatch(result *estimation.BatchResult) []Row {
	start := time.Date(result.StartedAt.Year(), result.StartedAt.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var rows []Row
	for _, r := range result.Results {
		if r.Status != estimation.VMPriced || r.Estimate == nil {
			continue
		}
		est := r.Estimate

		tags := map[string]string{}
		if r.Footprint != nil {
			tags["workload_class"] = string(r.Footprint.WorkloadClass)
			tags["operating_system"] = string(r.Footprint.OperatingSystem)
		}
		if r.Recommendation != nil {
			tags["instance_family"] = string(r.Recommendation.Family)
		}

		for _, d := range est.Drivers {
			category := PricingCategoryStandard
			serviceCategory := "Storage"
			if d.Category == estimation.CategoryCompute {
				category = PricingCategory(est.Plan)
				serviceCategory = "Compute"
			}

			rows = append(rows, Row{
				BilledCost:        d.Monthly,
				EffectiveCost:     d.Monthly,
				BillingCurrency:   "USD",
				ChargeCategory:    ChargeCategoryUsage,
				ChargeDescription: d.Description,
				ChargePeriodStart: start,
				ChargePeriodEnd:   end,
				PricingCategory:   category,
				PricingQuantity:   d.Quantity,
				PricingUnit:       string(d.Unit),
				ListUnitPrice:     d.UnitPrice,
				ProviderName:      ProviderName,
				RegionId:          est.Region,
				ResourceId:        r.VMID,
				ResourceName:      r.Name,
				ServiceCategory:   serviceCategory,
				ServiceName:       ServiceName,
				SkuId:             d.SKU,
				Tags:              tags,
				XPriceSource:      string(d.Source),
				XConfidenceScore:  d.Confidence,
				XFormula:          d.Formula,
			})
		}
	}
	return rows
}
