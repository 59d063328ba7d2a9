package awsapi

import (
	"context"
	"errors"
	"testing"

	awspricing "github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "migration-cost/decision/pricing"
	resolver "migration-cost/internal/pricing"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/units"
)

type fakeAPI struct {
	priceList []string
	err       error
	lastInput *awspricing.GetProductsInput
	calls     int
}

func (f *fakeAPI) GetProducts(_ context.Context, in *awspricing.GetProductsInput, _ ...func(*awspricing.Options)) (*awspricing.GetProductsOutput, error) {
	f.calls++
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &awspricing.GetProductsOutput{PriceList: f.priceList}, nil
}

const m5LargeEntry = `{
  "product": {"sku": "ABC123", "productFamily": "Compute Instance",
    "attributes": {"instanceType": "m5.large", "operatingSystem": "Linux", "licenseModel": "No License required"}},
  "terms": {
    "OnDemand": {"ABC123.JRTCKXETXF": {"effectiveDate": "2024-02-01T00:00:00Z",
      "priceDimensions": {"ABC123.JRTCKXETXF.6YS6EN2CT7": {"unit": "Hrs", "pricePerUnit": {"USD": "0.0960000000"}}}}},
    "Reserved": {
      "ABC123.4NA7Y494T4": {"effectiveDate": "2024-02-01T00:00:00Z",
        "termAttributes": {"LeaseContractLength": "1yr", "OfferingClass": "standard", "PurchaseOption": "No Upfront"},
        "priceDimensions": {"ABC123.4NA7Y494T4.6YS6EN2CT7": {"unit": "Hrs", "pricePerUnit": {"USD": "0.0600000000"}}}},
      "ABC123.6QCMYABX3D": {"effectiveDate": "2024-02-01T00:00:00Z",
        "termAttributes": {"LeaseContractLength": "1yr", "OfferingClass": "standard", "PurchaseOption": "All Upfront"},
        "priceDimensions": {
          "ABC123.6QCMYABX3D.2TG2D8R56U": {"unit": "Quantity", "pricePerUnit": {"USD": "525.6"}},
          "ABC123.6QCMYABX3D.6YS6EN2CT7": {"unit": "Hrs", "pricePerUnit": {"USD": "0.0000000000"}}}}
    }
  }
}`

const gp3Entry = `{
  "product": {"sku": "GP3SKU", "productFamily": "Storage", "attributes": {"volumeApiName": "gp3"}},
  "terms": {"OnDemand": {"GP3SKU.JRTCKXETXF": {"effectiveDate": "2024-02-01T00:00:00Z",
    "priceDimensions": {"GP3SKU.JRTCKXETXF.6YS6EN2CT7": {"unit": "GB-Mo", "pricePerUnit": {"USD": "0.08"}}}}}}
}`

func TestLookupOnDemand(t *testing.T) {
	api := &fakeAPI{priceList: []string{m5LargeEntry}}
	c := NewWithAPI(api, zerolog.Nop())

	rec, err := c.Lookup(context.Background(), domain.OnDemandCompute("m5.large", "us-east-1"))
	require.NoError(t, err)
	assert.Equal(t, "0.096", rec.UnitPrice.String())
	assert.Equal(t, units.UnitHours, rec.Unit)
	assert.Equal(t, domain.SourceLiveAPI, rec.Source)
	assert.Equal(t, 2024, rec.EffectiveDate.Year())

	fields := map[string]string{}
	for _, f := range api.lastInput.Filters {
		fields[*f.Field] = *f.Value
	}
	assert.Equal(t, "US East (N. Virginia)", fields["location"])
	assert.Equal(t, "m5.large", fields["instanceType"])
	assert.Equal(t, "Shared", fields["tenancy"])
	assert.Equal(t, "Linux", fields["operatingSystem"])
}

func TestLookupReserved(t *testing.T) {
	c := NewWithAPI(&fakeAPI{priceList: []string{m5LargeEntry}}, zerolog.Nop())

	noUpfront := domain.ComputeDimension("m5.large", "us-east-1", domain.OSLinux, domain.ModelReserved, domain.TermOneYr, domain.PaymentNoUpfront)
	rec, err := c.Lookup(context.Background(), noUpfront)
	require.NoError(t, err)
	assert.Equal(t, "0.06", rec.UnitPrice.String())

	// 525.6 / 8760 hours
	allUpfront := noUpfront
	allUpfront.PaymentOption = domain.PaymentAllUpfront
	rec, err = c.Lookup(context.Background(), allUpfront)
	require.NoError(t, err)
	assert.Equal(t, "0.06", rec.UnitPrice.String())

	threeYear := noUpfront
	threeYear.Term = domain.TermThree
	_, err = c.Lookup(context.Background(), threeYear)
	assert.ErrorIs(t, err, resolver.ErrNoLivePrice)
}

func TestLookupStorage(t *testing.T) {
	api := &fakeAPI{priceList: []string{gp3Entry}}
	c := NewWithAPI(api, zerolog.Nop())

	rec, err := c.Lookup(context.Background(), domain.StorageDimension("gp3", "eu-west-1"))
	require.NoError(t, err)
	assert.Equal(t, "0.08", rec.UnitPrice.String())
	assert.Equal(t, units.UnitGBMonth, rec.Unit)

	fields := map[string]string{}
	for _, f := range api.lastInput.Filters {
		fields[*f.Field] = *f.Value
	}
	assert.Equal(t, "gp3", fields["volumeApiName"])
	assert.Equal(t, "EU (Ireland)", fields["location"])
}

func TestLookupNoPrice(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeAPI
		dim  domain.PriceDimension
		call bool
	}{
		{"empty result", &fakeAPI{}, domain.OnDemandCompute("m5.large", "us-east-1"), true},
		{"garbage entry", &fakeAPI{priceList: []string{"{not json"}}, domain.OnDemandCompute("m5.large", "us-east-1"), true},
		{"savings plan", &fakeAPI{}, domain.ComputeDimension("m5.large", "us-east-1", domain.OSLinux, domain.ModelSavingsPlan, domain.TermOneYr, domain.PaymentNoUpfront), false},
		{"unknown region", &fakeAPI{}, domain.OnDemandCompute("m5.large", "xx-nowhere-1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewWithAPI(tt.api, zerolog.Nop())
			_, err := c.Lookup(context.Background(), tt.dim)
			assert.ErrorIs(t, err, resolver.ErrNoLivePrice)
			assert.Equal(t, tt.call, tt.api.calls > 0)
		})
	}
}

func TestLookupAPIError(t *testing.T) {
	c := NewWithAPI(&fakeAPI{err: errors.New("ThrottlingException")}, zerolog.Nop())

	_, err := c.Lookup(context.Background(), domain.OnDemandCompute("m5.large", "us-east-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrFetch)
	assert.True(t, perrors.IsRetryable(err))
}
