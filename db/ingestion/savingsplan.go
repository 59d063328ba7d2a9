package ingestion

import (
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"migration-cost/decision/pricing"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/units"
)

// planCommitment is the term and payment of one savings plan product.
type planCommitment struct {
	term    pricing.Term
	payment pricing.PaymentOption
}

// parseSavingsPlanOffer handles compute savings plan offers, whose products
// are an array and whose rates are keyed by the EC2 usage they discount.
func (p *Parser) parseSavingsPlanOffer(hdr *offerHeader, region string) (*Sequence, error) {
	var products []savingsPlanProduct
	if err := json.Unmarshal(hdr.Products, &products); err != nil {
		return nil, perrors.NewParseError("products is not an array", err)
	}
	if len(products) == 0 {
		return nil, perrors.NewMissingAttributeError("products")
	}

	var terms savingsPlanTerms
	if err := json.Unmarshal(hdr.Terms, &terms); err != nil {
		return nil, perrors.NewParseError("terms is not an object", err)
	}

	plans := make(map[string]planCommitment, len(products))
	var filtered int
	for _, prod := range products {
		if prod.ProductFamily != familyComputeSP {
			filtered++
			continue
		}
		term, okTerm := pricing.ParseTerm(prod.Attributes["purchaseTerm"])
		payment, okPay := pricing.ParsePaymentOption(prod.Attributes["purchaseOption"])
		if !okTerm || !okPay {
			filtered++
			continue
		}
		plans[prod.SKU] = planCommitment{term: term, payment: payment}
	}

	planTerms := terms.SavingsPlan
	sort.SliceStable(planTerms, func(i, j int) bool { return planTerms[i].SKU < planTerms[j].SKU })
	for i := range planTerms {
		rates := planTerms[i].Rates
		sort.SliceStable(rates, func(a, b int) bool { return rateKey(rates[a]) < rateKey(rates[b]) })
	}

	walk := func(yield func(pricing.PriceRecord) bool, st *ParseStats) {
		st.Products = len(products)
		st.Filtered += filtered

		seen := make(map[pricing.PriceDimension]map[int64]struct{})

		for _, t := range planTerms {
			plan, ok := plans[t.SKU]
			if !ok {
				st.Filtered += len(t.Rates)
				continue
			}
			eff, err := time.Parse(time.RFC3339, t.EffectiveDate)
			if err != nil {
				st.Skipped += len(t.Rates)
				continue
			}

			for _, r := range t.Rates {
				dim, outcome := savingsPlanDimension(r, plan, region)
				switch outcome {
				case rowSkipped:
					st.Skipped++
					continue
				case rowFiltered:
					st.Filtered++
					continue
				}

				if units.NormalizeUnit(r.Unit) != units.UnitHours || r.DiscountedRate.Currency != pricing.CurrencyUSD {
					st.Skipped++
					continue
				}
				price, err := decimal.NewFromString(r.DiscountedRate.Price)
				if err != nil || price.IsNegative() {
					st.Skipped++
					continue
				}

				if _, dup := seen[dim][eff.Unix()]; dup {
					st.Filtered++
					continue
				}
				if seen[dim] == nil {
					seen[dim] = make(map[int64]struct{})
				}
				seen[dim][eff.Unix()] = struct{}{}

				st.Records++
				if !yield(bulkRecord(dim, price, units.UnitHours, eff)) {
					return
				}
			}
		}
	}

	return &Sequence{walk: walk}, nil
}

func savingsPlanDimension(r savingsPlanRate, plan planCommitment, regionFilter string) (pricing.PriceDimension, rowOutcome) {
	if r.DiscountedServiceCode != "AmazonEC2" {
		return pricing.PriceDimension{}, rowFiltered
	}
	if r.DiscountedInstanceType == "" || r.DiscountedRegionCode == "" {
		return pricing.PriceDimension{}, rowSkipped
	}
	if regionFilter != "" && r.DiscountedRegionCode != regionFilter {
		return pricing.PriceDimension{}, rowFiltered
	}
	os, ok := operationOS(r.DiscountedOperation)
	if !ok {
		return pricing.PriceDimension{}, rowFiltered
	}
	tenancy, ok := usageTenancy(r.DiscountedUsageType)
	if !ok {
		return pricing.PriceDimension{}, rowFiltered
	}

	dim := pricing.ComputeDimension(r.DiscountedInstanceType, r.DiscountedRegionCode, os,
		pricing.ModelSavingsPlan, plan.term, plan.payment)
	dim.Tenancy = tenancy
	return dim, rowOK
}

// operationOS maps EC2 RunInstances operation codes to an OS family.
func operationOS(op string) (pricing.OperatingSystem, bool) {
	switch op {
	case "RunInstances":
		return pricing.OSLinux, true
	case "RunInstances:0002":
		return pricing.OSWindows, true
	case "RunInstances:0010":
		return pricing.OSRHEL, true
	case "RunInstances:000g":
		return pricing.OSSUSE, true
	default:
		return "", false
	}
}

func usageTenancy(usageType string) (pricing.Tenancy, bool) {
	switch {
	case strings.Contains(usageType, "BoxUsage"):
		return pricing.TenancyShared, true
	case strings.Contains(usageType, "DedicatedUsage"):
		return pricing.TenancyDedicated, true
	default:
		return "", false
	}
}

func rateKey(r savingsPlanRate) string {
	return strings.Join([]string{r.DiscountedInstanceType, r.DiscountedRegionCode, r.DiscountedOperation, r.DiscountedUsageType}, "|")
}
