// Package pricing defines the canonical price dimension and price record
// shared by ingestion, storage, resolution and estimation.
package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/units"
)

// ResourceType is the kind of billable resource a price applies to.
type ResourceType string

const (
	ResourceCompute     ResourceType = "compute"
	ResourceStorage     ResourceType = "storage"
	ResourceSavingsPlan ResourceType = "savings_plan"
)

// PricingModel is the purchase model of a price.
type PricingModel string

const (
	ModelOnDemand    PricingModel = "on_demand"
	ModelReserved    PricingModel = "reserved"
	ModelSavingsPlan PricingModel = "savings_plan"
)

// Term is the commitment length.
type Term string

const (
	TermNone  Term = "none"
	TermOneYr Term = "1yr"
	TermThree Term = "3yr"
)

// Years returns the commitment length in years, zero for TermNone.
func (t Term) Years() int {
	switch t {
	case TermOneYr:
		return 1
	case TermThree:
		return 3
	default:
		return 0
	}
}

// PaymentOption is the upfront payment choice for a commitment.
type PaymentOption string

const (
	PaymentNone           PaymentOption = "none"
	PaymentNoUpfront      PaymentOption = "no_upfront"
	PaymentPartialUpfront PaymentOption = "partial_upfront"
	PaymentAllUpfront     PaymentOption = "all_upfront"
)

// OperatingSystem is the normalized OS a compute price is quoted for.
type OperatingSystem string

const (
	OSLinux   OperatingSystem = "Linux"
	OSWindows OperatingSystem = "Windows"
	OSRHEL    OperatingSystem = "RHEL"
	OSSUSE    OperatingSystem = "SUSE"
)

// Tenancy of a compute price.
type Tenancy string

const (
	TenancyShared    Tenancy = "Shared"
	TenancyDedicated Tenancy = "Dedicated"
	TenancyHost      Tenancy = "Host"
)

// Source identifies which tier produced a price.
type Source string

const (
	SourceBulk      Source = "bulk"
	SourceLiveAPI   Source = "live_api"
	SourceHeuristic Source = "heuristic"
)

// Confidence reported for each source.
const (
	ConfidenceBulk      = 0.95
	ConfidenceLiveAPI   = 0.90
	ConfidenceHeuristic = 0.60
)

// SourceConfidence returns the fixed confidence for prices from src.
func SourceConfidence(src Source) float64 {
	switch src {
	case SourceBulk:
		return ConfidenceBulk
	case SourceLiveAPI:
		return ConfidenceLiveAPI
	case SourceHeuristic:
		return ConfidenceHeuristic
	default:
		return 0
	}
}

// CurrencyUSD is the only currency AWS price lists quote consistently.
const CurrencyUSD = "USD"

// PriceDimension is the lookup key for a single price. It is comparable and
// safe to use as a map key. Storage dimensions leave OS and tenancy empty.
type PriceDimension struct {
	ResourceType    ResourceType    `json:"resource_type"`
	SKU             string          `json:"sku"`
	Region          string          `json:"region"`
	OperatingSystem OperatingSystem `json:"operating_system,omitempty"`
	Tenancy         Tenancy         `json:"tenancy,omitempty"`
	PricingModel    PricingModel    `json:"pricing_model"`
	Term            Term            `json:"term"`
	PaymentOption   PaymentOption   `json:"payment_option"`
}

// ComputeDimension builds a shared-tenancy compute dimension.
func ComputeDimension(sku, region string, os OperatingSystem, model PricingModel, term Term, payment PaymentOption) PriceDimension {
	rt := ResourceCompute
	if model == ModelSavingsPlan {
		rt = ResourceSavingsPlan
	}
	return PriceDimension{
		ResourceType:    rt,
		SKU:             sku,
		Region:          region,
		OperatingSystem: os,
		Tenancy:         TenancyShared,
		PricingModel:    model,
		Term:            term,
		PaymentOption:   payment,
	}
}

// OnDemandCompute is the shared Linux on-demand rate for sku.
func OnDemandCompute(sku, region string) PriceDimension {
	return ComputeDimension(sku, region, OSLinux, ModelOnDemand, TermNone, PaymentNone)
}

// StorageDimension builds the dimension for a block storage volume type.
func StorageDimension(volumeType, region string) PriceDimension {
	return PriceDimension{
		ResourceType:  ResourceStorage,
		SKU:           volumeType,
		Region:        region,
		PricingModel:  ModelOnDemand,
		Term:          TermNone,
		PaymentOption: PaymentNone,
	}
}

// Key renders the dimension as a stable string.
func (d PriceDimension) Key() string {
	return strings.Join([]string{
		string(d.ResourceType), d.SKU, d.Region, string(d.OperatingSystem),
		string(d.Tenancy), string(d.PricingModel), string(d.Term), string(d.PaymentOption),
	}, "|")
}

func (d PriceDimension) String() string { return d.Key() }

// Validate rejects dimensions that cannot exist, such as on-demand with a term.
func (d PriceDimension) Validate() error {
	fail := func(format string, args ...any) error {
		return perrors.NewInvalidDimensionError(d.Key(), fmt.Sprintf(format, args...))
	}

	if d.SKU == "" {
		return fail("sku is required")
	}
	if d.Region == "" {
		return fail("region is required")
	}

	switch d.PricingModel {
	case ModelOnDemand:
		if d.Term != TermNone || d.PaymentOption != PaymentNone {
			return fail("on_demand prices carry no term or payment option")
		}
	case ModelReserved, ModelSavingsPlan:
		if d.Term != TermOneYr && d.Term != TermThree {
			return fail("%s requires a 1yr or 3yr term, got %q", d.PricingModel, d.Term)
		}
		switch d.PaymentOption {
		case PaymentNoUpfront, PaymentPartialUpfront, PaymentAllUpfront:
		default:
			return fail("%s requires a payment option, got %q", d.PricingModel, d.PaymentOption)
		}
	default:
		return fail("unknown pricing model %q", d.PricingModel)
	}

	switch d.ResourceType {
	case ResourceStorage:
		if d.PricingModel != ModelOnDemand {
			return fail("storage is only priced on_demand")
		}
		if d.OperatingSystem != "" || d.Tenancy != "" {
			return fail("storage prices carry no operating system or tenancy")
		}
	case ResourceCompute:
		if d.PricingModel == ModelSavingsPlan {
			return fail("savings plan rates use resource type savings_plan")
		}
		if err := d.validateInstance(); err != nil {
			return fail("%v", err)
		}
	case ResourceSavingsPlan:
		if d.PricingModel != ModelSavingsPlan {
			return fail("savings_plan resources require the savings_plan model")
		}
		if err := d.validateInstance(); err != nil {
			return fail("%v", err)
		}
	default:
		return fail("unknown resource type %q", d.ResourceType)
	}
	return nil
}

func (d PriceDimension) validateInstance() error {
	switch d.OperatingSystem {
	case OSLinux, OSWindows, OSRHEL, OSSUSE:
	default:
		return fmt.Errorf("unsupported operating system %q", d.OperatingSystem)
	}
	switch d.Tenancy {
	case TenancyShared, TenancyDedicated, TenancyHost:
	default:
		return fmt.Errorf("unsupported tenancy %q", d.Tenancy)
	}
	return nil
}

// PriceRecord is a resolved unit price for one dimension.
type PriceRecord struct {
	Dimension     PriceDimension  `json:"dimension"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Currency      string          `json:"currency"`
	Unit          units.Unit      `json:"unit"`
	EffectiveDate time.Time       `json:"effective_date"`
	Source        Source          `json:"source"`
	Confidence    float64         `json:"confidence"`
}

// ExpectedUnit is the billing unit a record for rt must carry.
func ExpectedUnit(rt ResourceType) units.Unit {
	if rt == ResourceStorage {
		return units.UnitGBMonth
	}
	return units.UnitHours
}
