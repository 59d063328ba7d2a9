package ingestion

import (
	"bytes"
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"migration-cost/decision/pricing"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/units"
)

// DefaultMinRecords rejects documents that are plainly truncated.
const DefaultMinRecords = 10

// ParseOptions tune document validation.
type ParseOptions struct {
	// MinRecords is the fewest usable records a document may yield.
	MinRecords int
}

// ParseStats counts how the rows of a document were handled.
type ParseStats struct {
	Products int `json:"products"`
	Records  int `json:"records"`
	Skipped  int `json:"skipped"`
	Filtered int `json:"filtered"`
}

// Sequence is a parsed, validated document. All may be called repeatedly
// and yields the same records in the same order each time.
type Sequence struct {
	OfferCode       string
	Version         string
	PublicationDate string

	stats ParseStats
	walk  func(yield func(pricing.PriceRecord) bool, st *ParseStats)
}

// Stats reports counts from the validation pass.
func (s *Sequence) Stats() ParseStats { return s.stats }

// All yields every normalized record of the document.
func (s *Sequence) All() iter.Seq[pricing.PriceRecord] {
	return func(yield func(pricing.PriceRecord) bool) {
		s.walk(yield, &ParseStats{})
	}
}

// Parser turns raw offer documents into normalized price records.
type Parser struct {
	opts   ParseOptions
	logger zerolog.Logger
}

func NewParser(opts ParseOptions, logger zerolog.Logger) *Parser {
	if opts.MinRecords <= 0 {
		opts.MinRecords = DefaultMinRecords
	}
	return &Parser{opts: opts, logger: logger}
}

// Parse validates doc and returns a restartable record sequence. Structural
// problems and implausibly small documents fail with a parse error; single
// malformed rows are skipped and counted.
func (p *Parser) Parse(doc *RawDocument) (*Sequence, error) {
	var hdr offerHeader
	if err := json.Unmarshal(doc.Body, &hdr); err != nil {
		return nil, perrors.NewParseError("offer document is not valid JSON", err)
	}

	products := bytes.TrimSpace(hdr.Products)
	if len(products) == 0 || bytes.Equal(products, []byte("null")) {
		return nil, perrors.NewMissingAttributeError("products")
	}
	if t := bytes.TrimSpace(hdr.Terms); len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil, perrors.NewMissingAttributeError("terms")
	}

	var (
		seq *Sequence
		err error
	)
	if products[0] == '[' {
		seq, err = p.parseSavingsPlanOffer(&hdr, doc.Region)
	} else {
		seq, err = p.parseServiceOffer(&hdr, doc.Region)
	}
	if err != nil {
		return nil, err
	}

	seq.OfferCode = hdr.OfferCode
	seq.Version = hdr.Version
	seq.PublicationDate = hdr.PublicationDate

	seq.walk(func(pricing.PriceRecord) bool { return true }, &seq.stats)
	if seq.stats.Records < p.opts.MinRecords {
		return nil, perrors.NewTooFewRecordsError(seq.stats.Records, p.opts.MinRecords)
	}

	p.logger.Info().
		Str("offer", hdr.OfferCode).
		Str("version", hdr.Version).
		Str("region", doc.Region).
		Int("products", seq.stats.Products).
		Int("records", seq.stats.Records).
		Int("skipped", seq.stats.Skipped).
		Int("filtered", seq.stats.Filtered).
		Msg("parsed offer document")

	return seq, nil
}

// =============================================================================
// SERVICE OFFERS (products map + OnDemand/Reserved terms)
// =============================================================================

type rowOutcome int

const (
	rowOK rowOutcome = iota
	rowSkipped
	rowFiltered
)

// variant is the product chosen to represent one dimension group.
type variant struct {
	sku  string
	dim  pricing.PriceDimension
	rank [4]int
}

func (p *Parser) parseServiceOffer(hdr *offerHeader, region string) (*Sequence, error) {
	if hdr.OfferCode == "" {
		return nil, perrors.NewMissingAttributeError("offerCode")
	}

	var products map[string]offerProduct
	if err := json.Unmarshal(hdr.Products, &products); err != nil {
		return nil, perrors.NewParseError("products is not an object", err)
	}
	if len(products) == 0 {
		return nil, perrors.NewMissingAttributeError("products")
	}

	var terms offerTerms
	if err := json.Unmarshal(hdr.Terms, &terms); err != nil {
		return nil, perrors.NewParseError("terms is not an object", err)
	}

	groups := make(map[string]*variant)
	var skipped, filtered int

	for _, sku := range sortedKeys(products) {
		prod := products[sku]
		if prod.SKU == "" {
			prod.SKU = sku
		}

		var (
			v       variant
			key     string
			outcome rowOutcome
		)
		switch {
		case strings.HasPrefix(prod.ProductFamily, familyComputeInstance):
			v, key, outcome = computeVariant(prod, region)
		case prod.ProductFamily == familyStorage:
			v, key, outcome = storageVariant(prod, region)
		default:
			outcome = rowFiltered
		}

		switch outcome {
		case rowSkipped:
			skipped++
			continue
		case rowFiltered:
			filtered++
			continue
		}

		current, ok := groups[key]
		if !ok {
			groups[key] = &v
			continue
		}
		// Products arrive in SKU order, so on equal rank the earlier SKU stays.
		filtered++
		if lessRank(v.rank, current.rank) {
			groups[key] = &v
		}
	}

	selected := make([]*variant, 0, len(groups))
	for _, v := range groups {
		selected = append(selected, v)
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].dim.Key() < selected[j].dim.Key()
	})

	onDemand := terms[termOnDemand]
	reserved := terms[termReserved]

	walk := func(yield func(pricing.PriceRecord) bool, st *ParseStats) {
		st.Products = len(products)
		st.Skipped += skipped
		st.Filtered += filtered

		for _, v := range selected {
			if !emitOnDemand(v, onDemand[v.sku], yield, st) {
				return
			}
			if v.dim.ResourceType != pricing.ResourceCompute {
				continue
			}
			if !emitReserved(v, reserved[v.sku], yield, st) {
				return
			}
		}
	}

	return &Sequence{walk: walk}, nil
}

func computeVariant(prod offerProduct, regionFilter string) (variant, string, rowOutcome) {
	attrs := prod.Attributes
	instanceType := attrs["instanceType"]
	if instanceType == "" {
		return variant{}, "", rowSkipped
	}

	region, ok := productRegion(attrs)
	if !ok || (regionFilter != "" && region != regionFilter) {
		return variant{}, "", rowFiltered
	}
	os, ok := pricing.ParseOperatingSystem(attrs["operatingSystem"])
	if !ok {
		return variant{}, "", rowFiltered
	}
	tenancy, ok := pricing.ParseTenancy(attrs["tenancy"])
	if !ok {
		return variant{}, "", rowFiltered
	}

	dim := pricing.OnDemandCompute(instanceType, region)
	dim.OperatingSystem = os
	dim.Tenancy = tenancy

	key := strings.Join([]string{instanceType, region, string(os)}, "|")
	return variant{sku: prod.SKU, dim: dim, rank: variantRank(attrs, tenancy)}, key, rowOK
}

func storageVariant(prod offerProduct, regionFilter string) (variant, string, rowOutcome) {
	volume := prod.Attributes["volumeApiName"]
	if volume == "" {
		return variant{}, "", rowSkipped
	}
	region, ok := productRegion(prod.Attributes)
	if !ok || (regionFilter != "" && region != regionFilter) {
		return variant{}, "", rowFiltered
	}
	dim := pricing.StorageDimension(volume, region)
	return variant{sku: prod.SKU, dim: dim}, "storage|" + volume + "|" + region, rowOK
}

func productRegion(attrs map[string]string) (string, bool) {
	if code := attrs["regionCode"]; code != "" {
		return code, true
	}
	return pricing.RegionForLocation(attrs["location"])
}

// variantRank orders competing products for one instance type and region:
// shared tenancy first, then no pre-installed software, then plain "Used"
// capacity, then license-included over bring-your-own.
func variantRank(attrs map[string]string, tenancy pricing.Tenancy) [4]int {
	var r [4]int

	switch tenancy {
	case pricing.TenancyShared:
		r[0] = 0
	case pricing.TenancyDedicated:
		r[0] = 1
	default:
		r[0] = 2
	}

	if sw := attrs["preInstalledSw"]; sw != "" && sw != "NA" {
		r[1] = 1
	}

	switch attrs["capacitystatus"] {
	case "Used":
		r[2] = 0
	case "":
		r[2] = 1
	default:
		r[2] = 2
	}

	if strings.EqualFold(attrs["licenseModel"], "Bring your own license") {
		r[3] = 1
	}
	return r
}

func lessRank(a, b [4]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func emitOnDemand(v *variant, termsByCode map[string]offerTerm, yield func(pricing.PriceRecord) bool, st *ParseStats) bool {
	want := pricing.ExpectedUnit(v.dim.ResourceType)

	for _, code := range sortedKeys(termsByCode) {
		t := termsByCode[code]

		eff, err := time.Parse(time.RFC3339, t.EffectiveDate)
		if err != nil {
			st.Skipped++
			continue
		}

		price, ok := unitPrice(t.PriceDimensions, want)
		if !ok {
			st.Skipped++
			continue
		}

		st.Records++
		if !yield(bulkRecord(v.dim, price, want, eff)) {
			return false
		}
	}
	return true
}

func emitReserved(v *variant, termsByCode map[string]offerTerm, yield func(pricing.PriceRecord) bool, st *ParseStats) bool {
	for _, code := range sortedKeys(termsByCode) {
		t := termsByCode[code]
		attrs := t.TermAttributes

		if !strings.EqualFold(attrs["OfferingClass"], offeringClassStandard) {
			st.Filtered++
			continue
		}
		term, okTerm := pricing.ParseTerm(attrs["LeaseContractLength"])
		payment, okPay := pricing.ParsePaymentOption(attrs["PurchaseOption"])
		if !okTerm || !okPay {
			st.Filtered++
			continue
		}

		eff, err := time.Parse(time.RFC3339, t.EffectiveDate)
		if err != nil {
			st.Skipped++
			continue
		}

		hourly, upfront, ok := reservedRates(t.PriceDimensions)
		if !ok {
			st.Skipped++
			continue
		}

		dim := v.dim
		dim.PricingModel = pricing.ModelReserved
		dim.Term = term
		dim.PaymentOption = payment

		rate := hourly.Add(units.AmortizeUpfront(upfront, term.Years()))

		st.Records++
		if !yield(bulkRecord(dim, rate, units.UnitHours, eff)) {
			return false
		}
	}
	return true
}

// unitPrice returns the USD price of the first dimension billed in want.
func unitPrice(dims map[string]offerPriceDimension, want units.Unit) (decimal.Decimal, bool) {
	for _, code := range sortedKeys(dims) {
		d := dims[code]
		if units.NormalizeUnit(d.Unit) != want {
			continue
		}
		price, err := parseUSD(d.PricePerUnit)
		if err != nil {
			return decimal.Zero, false
		}
		return price, true
	}
	return decimal.Zero, false
}

// reservedRates splits a reserved term into its hourly and upfront parts.
func reservedRates(dims map[string]offerPriceDimension) (hourly, upfront decimal.Decimal, ok bool) {
	for _, code := range sortedKeys(dims) {
		d := dims[code]
		price, err := parseUSD(d.PricePerUnit)
		if err != nil {
			return decimal.Zero, decimal.Zero, false
		}
		switch {
		case units.NormalizeUnit(d.Unit) == units.UnitHours:
			hourly = price
			ok = true
		case strings.EqualFold(d.Unit, "Quantity"):
			upfront = price
			ok = true
		}
	}
	return hourly, upfront, ok
}

func parseUSD(prices map[string]string) (decimal.Decimal, error) {
	raw, ok := prices[pricing.CurrencyUSD]
	if !ok {
		return decimal.Zero, fmt.Errorf("no USD price")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %s", raw)
	}
	return price, nil
}

func bulkRecord(dim pricing.PriceDimension, price decimal.Decimal, unit units.Unit, eff time.Time) pricing.PriceRecord {
	return pricing.PriceRecord{
		Dimension:     dim,
		UnitPrice:     price,
		Currency:      pricing.CurrencyUSD,
		Unit:          unit,
		EffectiveDate: eff.UTC(),
		Source:        pricing.SourceBulk,
		Confidence:    pricing.SourceConfidence(pricing.SourceBulk),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
