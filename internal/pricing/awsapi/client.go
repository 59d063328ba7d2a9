// Package awsapi looks up single prices through the AWS Price List Query API.
package awsapi

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awspricing "github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	domain "migration-cost/decision/pricing"
	resolver "migration-cost/internal/pricing"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/units"
)

// The Price List Query API is only served from a few regions.
const DefaultEndpointRegion = "us-east-1"

const serviceEC2 = "AmazonEC2"

// API is the subset of the pricing client used here.
type API interface {
	GetProducts(ctx context.Context, params *awspricing.GetProductsInput, optFns ...func(*awspricing.Options)) (*awspricing.GetProductsOutput, error)
}

// Client implements resolver.LiveSource.
type Client struct {
	api    API
	now    func() time.Time
	logger zerolog.Logger
}

// New loads the default AWS credential chain and builds a client for endpointRegion.
func New(ctx context.Context, endpointRegion string, logger zerolog.Logger) (*Client, error) {
	if endpointRegion == "" {
		endpointRegion = DefaultEndpointRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(endpointRegion))
	if err != nil {
		return nil, perrors.NewFetchError("aws config", err)
	}
	return NewWithAPI(awspricing.NewFromConfig(cfg), logger), nil
}

func NewWithAPI(api API, logger zerolog.Logger) *Client {
	return &Client{
		api:    api,
		now:    time.Now,
		logger: logger.With().Str("component", "aws_pricing_api").Logger(),
	}
}

// Lookup returns the price for dim. Dimensions the query API cannot answer,
// and queries that match nothing, return resolver.ErrNoLivePrice.
func (c *Client) Lookup(ctx context.Context, dim domain.PriceDimension) (*domain.PriceRecord, error) {
	if dim.ResourceType == domain.ResourceSavingsPlan {
		return nil, resolver.ErrNoLivePrice
	}
	location, ok := domain.LocationForRegion(dim.Region)
	if !ok {
		return nil, resolver.ErrNoLivePrice
	}

	input := &awspricing.GetProductsInput{
		ServiceCode: aws.String(serviceEC2),
		Filters:     filtersFor(dim, location),
		MaxResults:  aws.Int32(10),
	}

	out, err := c.api.GetProducts(ctx, input)
	if err != nil {
		return nil, perrors.NewFetchError("pricing:GetProducts "+dim.Key(), err)
	}

	for _, raw := range out.PriceList {
		rec, ok, err := c.decode(raw, dim)
		if err != nil {
			c.logger.Debug().Err(err).Str("dimension", dim.Key()).Msg("skipping undecodable price list entry")
			continue
		}
		if ok {
			return rec, nil
		}
	}
	return nil, resolver.ErrNoLivePrice
}

func termMatch(field, value string) types.Filter {
	return types.Filter{
		Type:  types.FilterTypeTermMatch,
		Field: aws.String(field),
		Value: aws.String(value),
	}
}

func filtersFor(dim domain.PriceDimension, location string) []types.Filter {
	if dim.ResourceType == domain.ResourceStorage {
		return []types.Filter{
			termMatch("productFamily", "Storage"),
			termMatch("volumeApiName", dim.SKU),
			termMatch("location", location),
		}
	}
	return []types.Filter{
		termMatch("instanceType", dim.SKU),
		termMatch("location", location),
		termMatch("operatingSystem", string(dim.OperatingSystem)),
		termMatch("tenancy", string(dim.Tenancy)),
		termMatch("preInstalledSw", "NA"),
		termMatch("capacitystatus", "Used"),
	}
}

// priceListEntry is one JSON document of GetProductsOutput.PriceList.
type priceListEntry struct {
	Product struct {
		SKU           string            `json:"sku"`
		ProductFamily string            `json:"productFamily"`
		Attributes    map[string]string `json:"attributes"`
	} `json:"product"`
	Terms map[string]map[string]struct {
		EffectiveDate   string                    `json:"effectiveDate"`
		TermAttributes  map[string]string         `json:"termAttributes"`
		PriceDimensions map[string]priceDimension `json:"priceDimensions"`
	} `json:"terms"`
}

type priceDimension struct {
	Unit         string            `json:"unit"`
	PricePerUnit map[string]string `json:"pricePerUnit"`
}

func (c *Client) decode(raw string, dim domain.PriceDimension) (*domain.PriceRecord, bool, error) {
	var entry priceListEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false, perrors.NewParseError("invalid price list entry", err)
	}
	if strings.EqualFold(entry.Product.Attributes["licenseModel"], "Bring your own license") {
		return nil, false, nil
	}

	want := domain.ExpectedUnit(dim.ResourceType)

	switch dim.PricingModel {
	case domain.ModelOnDemand:
		for _, code := range sortedKeys(entry.Terms["OnDemand"]) {
			t := entry.Terms["OnDemand"][code]
			hourly, upfront, ok := rates(t.PriceDimensions, want)
			if !ok || !upfront.IsZero() {
				continue
			}
			return c.record(dim, hourly, want, t.EffectiveDate), true, nil
		}
	case domain.ModelReserved:
		for _, code := range sortedKeys(entry.Terms["Reserved"]) {
			t := entry.Terms["Reserved"][code]
			attrs := t.TermAttributes
			if !strings.EqualFold(attrs["OfferingClass"], "standard") {
				continue
			}
			term, okTerm := domain.ParseTerm(attrs["LeaseContractLength"])
			payment, okPay := domain.ParsePaymentOption(attrs["PurchaseOption"])
			if !okTerm || !okPay || term != dim.Term || payment != dim.PaymentOption {
				continue
			}
			hourly, upfront, ok := rates(t.PriceDimensions, want)
			if !ok {
				continue
			}
			rate := hourly.Add(units.AmortizeUpfront(upfront, term.Years()))
			return c.record(dim, rate, want, t.EffectiveDate), true, nil
		}
	}
	return nil, false, nil
}

// rates returns the recurring price billed in want and any one-off fee.
func rates(dims map[string]priceDimension, want units.Unit) (recurring, upfront decimal.Decimal, ok bool) {
	for _, code := range sortedKeys(dims) {
		d := dims[code]
		raw, has := d.PricePerUnit[domain.CurrencyUSD]
		if !has {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil || price.IsNegative() {
			continue
		}
		switch {
		case units.NormalizeUnit(d.Unit) == want:
			recurring = price
			ok = true
		case strings.EqualFold(d.Unit, "Quantity"):
			upfront = price
		}
	}
	return recurring, upfront, ok
}

func (c *Client) record(dim domain.PriceDimension, price decimal.Decimal, unit units.Unit, effective string) *domain.PriceRecord {
	eff, err := time.Parse(time.RFC3339, effective)
	if err != nil {
		eff = c.now().Truncate(24 * time.Hour)
	}
	return &domain.PriceRecord{
		Dimension:     dim,
		UnitPrice:     price,
		Currency:      domain.CurrencyUSD,
		Unit:          unit,
		EffectiveDate: eff.UTC(),
		Source:        domain.SourceLiveAPI,
		Confidence:    domain.SourceConfidence(domain.SourceLiveAPI),
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

