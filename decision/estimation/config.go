package estimation

import (
	"fmt"
	"strings"

	"migration-cost/decision/inventory"
	"migration-cost/decision/pricing"
	perrors "migration-cost/pkg/errors"
)

// Plan is the purchase option applied to a workload class.
type Plan string

const (
	PlanOnDemand    Plan = "on_demand"
	PlanReserved    Plan = "reserved"
	PlanSavingsPlan Plan = "savings_plan"
	PlanSpot        Plan = "spot"
)

// PlanConfig prices one workload class.
type PlanConfig struct {
	Plan          Plan                  `json:"plan" yaml:"plan"`
	Term          pricing.Term          `json:"term,omitempty" yaml:"term,omitempty"`
	PaymentOption pricing.PaymentOption `json:"payment_option,omitempty" yaml:"payment_option,omitempty"`
	Utilization   float64               `json:"utilization" yaml:"utilization"` // percent, 0-100
}

// Label renders the plan for reports, e.g. "Reserved 1yr No Upfront".
func (p PlanConfig) Label() string {
	switch p.Plan {
	case PlanOnDemand:
		return "On-Demand"
	case PlanReserved:
		return fmt.Sprintf("Reserved %s %s", p.Term, pricing.PurchaseOptionLabel(p.PaymentOption))
	case PlanSavingsPlan:
		return fmt.Sprintf("Compute Savings Plan %s %s", p.Term, pricing.PurchaseOptionLabel(p.PaymentOption))
	case PlanSpot:
		return "Spot (estimated)"
	default:
		return string(p.Plan)
	}
}

func (p PlanConfig) validate(class inventory.WorkloadClass) error {
	if p.Utilization < 0 || p.Utilization > 100 {
		return perrors.NewConfigurationError(fmt.Sprintf("%s: utilization %g outside 0-100", class, p.Utilization))
	}

	switch p.Plan {
	case PlanOnDemand, PlanSpot:
		if (p.Term != "" && p.Term != pricing.TermNone) || (p.PaymentOption != "" && p.PaymentOption != pricing.PaymentNone) {
			return perrors.NewConfigurationError(fmt.Sprintf("%s: %s plan takes no term or payment option", class, p.Plan))
		}
	case PlanReserved, PlanSavingsPlan:
		if p.Term != pricing.TermOneYr && p.Term != pricing.TermThree {
			return perrors.NewConfigurationError(fmt.Sprintf("%s: %s plan requires term 1yr or 3yr, got %q", class, p.Plan, p.Term))
		}
		switch p.PaymentOption {
		case pricing.PaymentNoUpfront, pricing.PaymentPartialUpfront, pricing.PaymentAllUpfront:
		default:
			return perrors.NewConfigurationError(fmt.Sprintf("%s: %s plan requires a payment option, got %q", class, p.Plan, p.PaymentOption))
		}
	default:
		return perrors.NewConfigurationError(fmt.Sprintf("%s: unknown plan %q", class, p.Plan))
	}
	return nil
}

// PricingConfig selects region, storage and a plan per workload class.
type PricingConfig struct {
	Region             string                                 `json:"region" yaml:"region"`
	VolumeType         string                                 `json:"volume_type,omitempty" yaml:"volume_type,omitempty"`
	FallbackVolumeType string                                 `json:"fallback_volume_type,omitempty" yaml:"fallback_volume_type,omitempty"`
	Plans              map[inventory.WorkloadClass]PlanConfig `json:"plans" yaml:"plans"`
}

const (
	DefaultRegion             = "us-east-1"
	DefaultVolumeType         = "gp3"
	DefaultFallbackVolumeType = "gp2"
)

// DefaultPricingConfig commits production to a 1yr reserved instance and
// runs non-production classes on demand at reduced utilization.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Region:             DefaultRegion,
		VolumeType:         DefaultVolumeType,
		FallbackVolumeType: DefaultFallbackVolumeType,
		Plans: map[inventory.WorkloadClass]PlanConfig{
			inventory.Production:  {Plan: PlanReserved, Term: pricing.TermOneYr, PaymentOption: pricing.PaymentNoUpfront, Utilization: 100},
			inventory.Staging:     {Plan: PlanOnDemand, Utilization: 75},
			inventory.Testing:     {Plan: PlanOnDemand, Utilization: 50},
			inventory.Development: {Plan: PlanOnDemand, Utilization: 50},
		},
	}
}

// Validate fills storage defaults and rejects unusable configurations.
func (c *PricingConfig) Validate() error {
	c.Region = strings.TrimSpace(c.Region)
	if c.Region == "" {
		return perrors.NewConfigurationError("region is required")
	}
	if !pricing.KnownRegion(c.Region) {
		return perrors.NewConfigurationError(fmt.Sprintf("unknown region %q", c.Region))
	}
	if c.VolumeType == "" {
		c.VolumeType = DefaultVolumeType
	}
	if c.FallbackVolumeType == "" {
		c.FallbackVolumeType = DefaultFallbackVolumeType
	}

	for _, class := range inventory.WorkloadClasses {
		p, ok := c.Plans[class]
		if !ok {
			return perrors.NewConfigurationError(fmt.Sprintf("no plan configured for workload class %s", class))
		}
		if err := p.validate(class); err != nil {
			return err
		}
	}
	for class := range c.Plans {
		if _, ok := inventory.ParseWorkloadClass(string(class)); !ok {
			return perrors.NewConfigurationError(fmt.Sprintf("unknown workload class %q in plans", class))
		}
	}
	return nil
}

// computeDimension is the Linux shared-tenancy dimension priced for plan.
// Spot is derived from the on-demand rate.
func computeDimension(sku, region string, p PlanConfig) pricing.PriceDimension {
	switch p.Plan {
	case PlanReserved:
		return pricing.ComputeDimension(sku, region, pricing.OSLinux, pricing.ModelReserved, p.Term, p.PaymentOption)
	case PlanSavingsPlan:
		return pricing.ComputeDimension(sku, region, pricing.OSLinux, pricing.ModelSavingsPlan, p.Term, p.PaymentOption)
	default:
		return pricing.OnDemandCompute(sku, region)
	}
}
