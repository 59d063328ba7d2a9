package postgres

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migration-cost/db/store"
	"migration-cost/decision/pricing"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/units"
)

func TestClassifyMissingTable(t *testing.T) {
	err := classify(&pq.Error{Code: "42P01", Message: `relation "compute_pricing" does not exist`}, "lookup")
	assert.ErrorIs(t, err, perrors.ErrConfiguration)

	other := errors.New("connection refused")
	err = classify(other, "lookup")
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, perrors.ErrConfiguration)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("VMCOST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VMCOST_TEST_POSTGRES_DSN not set")
	}

	cfg := DefaultConfig()
	cfg.DSN = dsn
	s, err := NewStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	region := "test-" + uuid.NewString()[:8]
	eff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	compute := pricing.OnDemandCompute("m5.large", region)
	storage := pricing.StorageDimension("gp3", region)

	recs := []pricing.PriceRecord{
		{Dimension: compute, UnitPrice: decimal.RequireFromString("0.096"), Currency: "USD", Unit: units.UnitHours, EffectiveDate: eff, Source: pricing.SourceBulk, Confidence: 0.95},
		{Dimension: storage, UnitPrice: decimal.RequireFromString("0.08"), Currency: "USD", Unit: units.UnitGBMonth, EffectiveDate: eff, Source: pricing.SourceBulk, Confidence: 0.95},
	}

	for range 2 {
		n, err := s.BulkUpsert(ctx, slices.Values(recs))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	got, err := s.Lookup(ctx, compute)
	require.NoError(t, err)
	assert.True(t, got.UnitPrice.Equal(decimal.RequireFromString("0.096")))
	assert.Equal(t, pricing.SourceBulk, got.Source)

	got, err = s.Lookup(ctx, storage)
	require.NoError(t, err)
	assert.True(t, got.UnitPrice.Equal(decimal.RequireFromString("0.08")))
	assert.Equal(t, units.UnitGBMonth, got.Unit)

	_, err = s.Lookup(ctx, pricing.OnDemandCompute("zz9.mega", region))
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.RecordLoad(ctx, store.LoadAudit{
		RunID: uuid.New(), ServiceCode: "AmazonEC2", Region: region,
		RecordCount: 2, Status: store.LoadSucceeded, StartedAt: time.Now(), Duration: time.Second,
	}))
}
