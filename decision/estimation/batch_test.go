package estimation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migration-cost/decision/inventory"
	"migration-cost/decision/pricing"
	"migration-cost/decision/recommend"
	perrors "migration-cost/pkg/errors"
)

func batchVMs() []inventory.VM {
	return []inventory.VM{
		{ID: "vm-1", Name: "web-dev-01", CPU: 2, MemoryGB: 8, StorageGB: 100},
		{ID: "vm-2", Name: "db-prod-01", CPU: 4, MemoryGB: 32, StorageGB: 500, GuestOS: "Windows Server 2019"},
		{ID: "vm-3", Name: "broken", CPU: 0, MemoryGB: 4},
		{ID: "vm-4", Name: "batch-stg", CPU: 8, MemoryGB: 8, StorageGB: 0},
	}
}

func TestEstimateBatch(t *testing.T) {
	e := newEngine(t, false,
		bulk(pricing.OnDemandCompute("t3.large", "us-east-1"), "0.096"),
		bulk(pricing.StorageDimension("gp3", "us-east-1"), "0.08"),
	)

	batch, err := e.EstimateBatch(context.Background(), batchVMs(), devOnDemandConfig(), BatchOptions{Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, batch.Results, 4)

	ids := make([]string, 0, 4)
	for _, r := range batch.Results {
		ids = append(ids, r.VMID)
	}
	assert.Equal(t, []string{"vm-1", "vm-2", "vm-3", "vm-4"}, ids)

	assert.Equal(t, VMPriced, batch.Results[0].Status)
	assert.Equal(t, VMPriced, batch.Results[1].Status)
	assert.Equal(t, VMInvalid, batch.Results[2].Status)
	assert.Contains(t, batch.Results[2].Error, "vm-3")
	assert.Equal(t, VMPriced, batch.Results[3].Status)

	assert.Equal(t, recommend.MemoryOptimized, batch.Results[1].Recommendation.Family)
	assert.Equal(t, "Reserved 1yr No Upfront", batch.Results[1].Estimate.PricingPlanLabel)

	s := batch.Summary
	assert.Equal(t, 4, s.VMCount)
	assert.Equal(t, 3, s.Priced)
	assert.Equal(t, 1, s.Invalid)
	assert.True(t, s.IsIncomplete)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", batch.BatchID.String())
}

func TestSummaryAdditivity(t *testing.T) {
	e := newEngine(t, false)
	batch, err := e.EstimateBatch(context.Background(), batchVMs(), DefaultPricingConfig(), DefaultBatchOptions())
	require.NoError(t, err)

	s := batch.Summary
	total := decimal.Zero
	for _, r := range batch.Results {
		if r.Status == VMPriced {
			total = total.Add(r.Estimate.TotalMonthly)
			assert.True(t, r.Estimate.TotalMonthly.Equal(r.Estimate.ComputeMonthly.Add(r.Estimate.StorageMonthly)))
		}
	}
	assert.True(t, s.TotalMonthly.Equal(total))
	assert.True(t, s.TotalMonthly.Equal(s.ComputeMonthly.Add(s.StorageMonthly)))
	assert.True(t, s.Annual.Equal(s.TotalMonthly.Mul(decimal.NewFromInt(12))))

	byClass := decimal.Zero
	for _, v := range s.ByWorkloadClass {
		byClass = byClass.Add(v)
	}
	assert.True(t, byClass.Equal(s.TotalMonthly))

	byFamily := decimal.Zero
	for _, v := range s.ByFamily {
		byFamily = byFamily.Add(v)
	}
	assert.True(t, byFamily.Equal(s.TotalMonthly))
	assert.True(t, s.ByCategory[CategoryCompute].Add(s.ByCategory[CategoryStorage]).Equal(s.TotalMonthly))
}

func TestSummaryNeverCountsUnavailableAsZeroCost(t *testing.T) {
	results := []VMResult{
		{
			VMID:           "a",
			Status:         VMPriced,
			Footprint:      &inventory.Footprint{WorkloadClass: inventory.Production},
			Recommendation: &recommend.Recommendation{Family: recommend.GeneralPurpose},
			Estimate: &CostEstimate{
				ComputeMonthly: decimal.NewFromInt(10),
				StorageMonthly: decimal.NewFromInt(2),
				TotalMonthly:   decimal.NewFromInt(12),
				Confidence:     0.9,
				Status:         StatusPriced,
			},
		},
		{VMID: "b", Status: VMUnavailable, Estimate: &CostEstimate{Status: StatusUnavailable, Reason: "no price"}},
		{VMID: "c", Status: VMFailed, Error: "deadline exceeded"},
	}

	s := Summarize(results)
	assert.Equal(t, 1, s.Priced)
	assert.Equal(t, 1, s.Unavailable)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, "12", s.TotalMonthly.String())
	assert.Equal(t, "144", s.Annual.String())
	assert.Equal(t, 0.9, s.Confidence)
	assert.Equal(t, 0.9, s.MinConfidence)
	assert.True(t, s.IsIncomplete)
}

func TestEstimateBatchCancelled(t *testing.T) {
	e := newEngine(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := e.EstimateBatch(ctx, batchVMs(), DefaultPricingConfig(), DefaultBatchOptions())
	require.NoError(t, err)
	for _, r := range batch.Results {
		assert.Equal(t, VMCancelled, r.Status, r.VMID)
	}
	assert.Equal(t, 4, batch.Summary.Cancelled)
	assert.True(t, batch.Summary.TotalMonthly.IsZero())
}

func TestEstimateBatchRejectsBadConfig(t *testing.T) {
	e := newEngine(t, false)
	cfg := DefaultPricingConfig()
	cfg.Region = ""

	_, err := e.EstimateBatch(context.Background(), batchVMs(), cfg, DefaultBatchOptions())
	assert.ErrorIs(t, err, perrors.ErrConfiguration)
}
