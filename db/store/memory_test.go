package store

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migration-cost/decision/pricing"
	"migration-cost/pkg/units"
)

func record(dim pricing.PriceDimension, price string, effective time.Time) pricing.PriceRecord {
	return pricing.PriceRecord{
		Dimension:     dim,
		UnitPrice:     decimal.RequireFromString(price),
		Currency:      pricing.CurrencyUSD,
		Unit:          units.UnitHours,
		EffectiveDate: effective,
		Source:        pricing.SourceBulk,
		Confidence:    pricing.ConfidenceBulk,
	}
}

func TestMemoryStoreLookupReturnsLatestVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	dim := pricing.OnDemandCompute("m5.large", "us-east-1")

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	n, err := s.BulkUpsert(ctx, slices.Values([]pricing.PriceRecord{
		record(dim, "0.100", mar),
		record(dim, "0.096", jan),
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Lookup(ctx, dim)
	require.NoError(t, err)
	assert.Equal(t, "0.1", got.UnitPrice.String())
	assert.True(t, got.EffectiveDate.Equal(mar))
}

func TestMemoryStoreUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	eff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	batch := []pricing.PriceRecord{
		record(pricing.OnDemandCompute("m5.large", "us-east-1"), "0.096", eff),
		record(pricing.OnDemandCompute("t3.large", "us-east-1"), "0.0832", eff),
	}

	_, err := s.BulkUpsert(ctx, slices.Values(batch))
	require.NoError(t, err)
	_, err = s.BulkUpsert(ctx, slices.Values(batch))
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())

	batch[0].UnitPrice = decimal.RequireFromString("0.090")
	_, err = s.BulkUpsert(ctx, slices.Values(batch[:1]))
	require.NoError(t, err)

	got, err := s.Lookup(ctx, batch[0].Dimension)
	require.NoError(t, err)
	assert.Equal(t, "0.09", got.UnitPrice.String())
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStoreNotFound(t *testing.T) {
	_, err := NewMemoryStore().Lookup(context.Background(), pricing.StorageDimension("gp3", "us-east-1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCancelledLoadLeavesContents(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := s.BulkUpsert(ctx, slices.Values([]pricing.PriceRecord{
		record(pricing.OnDemandCompute("m5.large", "us-east-1"), "0.096", time.Now()),
	}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Zero(t, s.Len())
}

func TestMemoryStoreAudits(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.RecordLoad(context.Background(), LoadAudit{ServiceCode: "AmazonEC2", Status: LoadSucceeded, RecordCount: 3}))

	audits := s.Audits()
	require.Len(t, audits, 1)
	assert.Equal(t, "AmazonEC2", audits[0].ServiceCode)
	assert.False(t, audits[0].StartedAt.IsZero())
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}
