// Package ingestion downloads AWS offer files, normalizes them into price
// records and loads them into a pricing store.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"migration-cost/db/store"
	"migration-cost/pkg/metrics"
)

// IngestionResult tracks the result of a pricing ingestion
type IngestionResult struct {
	RunID         uuid.UUID     `json:"run_id"`
	ServiceCode   string        `json:"service_code"`
	Region        string        `json:"region"`
	OfferVersion  string        `json:"offer_version,omitempty"`
	SourceHash    string        `json:"source_hash,omitempty"`
	RecordCount   int           `json:"record_count"`
	SkippedCount  int           `json:"skipped_count"`
	FilteredCount int           `json:"filtered_count"`
	Duration      time.Duration `json:"duration"`
	Success       bool          `json:"success"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// Ingestor runs fetch, parse and load for one offer at a time.
type Ingestor struct {
	fetcher *Fetcher
	parser  *Parser
	store   store.PricingStore
	logger  zerolog.Logger
}

func NewIngestor(fetcher *Fetcher, parser *Parser, st store.PricingStore, logger zerolog.Logger) *Ingestor {
	return &Ingestor{fetcher: fetcher, parser: parser, store: st, logger: logger}
}

// Load fetches and ingests the offer for serviceCode in region. Every run,
// failed or not, leaves an audit row.
func (i *Ingestor) Load(ctx context.Context, serviceCode, region string) (*IngestionResult, error) {
	start := time.Now()
	result := &IngestionResult{
		RunID:       uuid.New(),
		ServiceCode: serviceCode,
		Region:      region,
	}

	if i.fetcher == nil {
		return result, fmt.Errorf("ingestor has no fetcher")
	}

	doc, err := i.fetcher.Fetch(ctx, serviceCode, region)
	if err != nil {
		return i.fail(ctx, result, start, err)
	}
	return i.load(ctx, result, start, doc)
}

// LoadDocument ingests an already retrieved document.
func (i *Ingestor) LoadDocument(ctx context.Context, doc *RawDocument) (*IngestionResult, error) {
	result := &IngestionResult{
		RunID:       uuid.New(),
		ServiceCode: doc.ServiceCode,
		Region:      doc.Region,
	}
	return i.load(ctx, result, time.Now(), doc)
}

func (i *Ingestor) load(ctx context.Context, result *IngestionResult, start time.Time, doc *RawDocument) (*IngestionResult, error) {
	result.SourceHash = doc.Hash

	seq, err := i.parser.Parse(doc)
	if err != nil {
		return i.fail(ctx, result, start, err)
	}
	stats := seq.Stats()
	result.OfferVersion = seq.Version
	result.SkippedCount = stats.Skipped
	result.FilteredCount = stats.Filtered

	n, err := i.store.BulkUpsert(ctx, seq.All())
	if err != nil {
		return i.fail(ctx, result, start, fmt.Errorf("failed to load records: %w", err))
	}

	result.RecordCount = n
	result.Success = true
	result.Duration = time.Since(start)

	metrics.IngestedRecords.WithLabelValues(result.ServiceCode, result.Region).Add(float64(n))
	metrics.IngestionRuns.WithLabelValues(result.ServiceCode, store.LoadSucceeded).Inc()
	i.audit(ctx, result, start, store.LoadSucceeded)

	i.logger.Info().
		Str("run_id", result.RunID.String()).
		Str("service", result.ServiceCode).
		Str("region", result.Region).
		Int("records", result.RecordCount).
		Int("skipped", result.SkippedCount).
		Dur("duration", result.Duration).
		Msg("ingestion complete")

	return result, nil
}

func (i *Ingestor) fail(ctx context.Context, result *IngestionResult, start time.Time, err error) (*IngestionResult, error) {
	result.Success = false
	result.ErrorMessage = err.Error()
	result.Duration = time.Since(start)

	metrics.IngestionRuns.WithLabelValues(result.ServiceCode, store.LoadFailed).Inc()
	i.audit(ctx, result, start, store.LoadFailed)

	i.logger.Error().
		Err(err).
		Str("run_id", result.RunID.String()).
		Str("service", result.ServiceCode).
		Str("region", result.Region).
		Msg("ingestion failed")

	return result, err
}

// audit uses a detached context so cancelled runs are still recorded.
func (i *Ingestor) audit(ctx context.Context, result *IngestionResult, start time.Time, status string) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := i.store.RecordLoad(actx, store.LoadAudit{
		RunID:         result.RunID,
		ServiceCode:   result.ServiceCode,
		Region:        result.Region,
		SourceHash:    result.SourceHash,
		RecordCount:   result.RecordCount,
		SkippedCount:  result.SkippedCount,
		FilteredCount: result.FilteredCount,
		Status:        status,
		ErrorMessage:  result.ErrorMessage,
		StartedAt:     start.UTC(),
		Duration:      result.Duration,
	})
	if err != nil {
		i.logger.Warn().Err(err).Str("run_id", result.RunID.String()).Msg("failed to record load audit")
	}
}
