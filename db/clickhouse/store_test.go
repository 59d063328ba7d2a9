package clickhouse

import (
	"context"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migration-cost/db/store"
	"migration-cost/decision/pricing"
	"migration-cost/pkg/units"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("VMCOST_TEST_CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("VMCOST_TEST_CLICKHOUSE_ADDR not set")
	}

	host, portStr, ok := strings.Cut(addr, ":")
	require.True(t, ok, "address must be host:port")
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.Database = "default"
	cfg.BatchSize = 1

	s, err := NewStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStoreUpsertAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	region := "test-" + uuid.NewString()[:8]
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	dim := pricing.OnDemandCompute("m5.large", region)

	recs := []pricing.PriceRecord{
		{Dimension: dim, UnitPrice: decimal.RequireFromString("0.100"), Currency: "USD", Unit: units.UnitHours, EffectiveDate: older, Source: pricing.SourceBulk, Confidence: 0.95},
		{Dimension: dim, UnitPrice: decimal.RequireFromString("0.096"), Currency: "USD", Unit: units.UnitHours, EffectiveDate: newer, Source: pricing.SourceBulk, Confidence: 0.95},
	}

	n, err := s.BulkUpsert(ctx, slices.Values(recs))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.BulkUpsert(ctx, slices.Values(recs))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := countRecords(ctx, s, region)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := s.Lookup(ctx, dim)
	require.NoError(t, err)
	assert.True(t, got.UnitPrice.Equal(decimal.RequireFromString("0.096")))

	_, err = s.Lookup(ctx, pricing.StorageDimension("gp3", region))
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.RecordLoad(ctx, store.LoadAudit{
		RunID: uuid.New(), ServiceCode: "AmazonEC2", Region: region, RecordCount: 2,
		Status: store.LoadSucceeded, StartedAt: time.Now(), Duration: time.Second,
	}))
}

func countRecords(ctx context.Context, s *Store, region string) (int, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count() FROM price_records FINAL WHERE region = ?`, region).Scan(&count)
	return int(count), err
}
