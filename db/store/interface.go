// Package store defines the persistence contract for normalized price records
// and provides an in-memory implementation.
package store

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"

	"migration-cost/decision/pricing"
)

// ErrNotFound is returned by Lookup when no record exists for a dimension.
var ErrNotFound = errors.New("price record not found")

// PricingStore persists price records keyed by dimension and effective date.
// Re-writing a record with the same dimension and effective date overwrites
// it, so repeated loads of one document are idempotent.
type PricingStore interface {
	// BulkUpsert writes every record the sequence yields and returns the count.
	BulkUpsert(ctx context.Context, records iter.Seq[pricing.PriceRecord]) (int, error)

	// Lookup returns the record with the latest effective date for dim.
	Lookup(ctx context.Context, dim pricing.PriceDimension) (*pricing.PriceRecord, error)

	// RecordLoad appends an ingestion audit row.
	RecordLoad(ctx context.Context, audit LoadAudit) error

	Ping(ctx context.Context) error
	Close() error
}

// Load statuses
const (
	LoadSucceeded = "succeeded"
	LoadFailed    = "failed"
)

// LoadAudit describes one ingestion run.
type LoadAudit struct {
	RunID         uuid.UUID     `json:"run_id"`
	ServiceCode   string        `json:"service_code"`
	Region        string        `json:"region"`
	SourceHash    string        `json:"source_hash,omitempty"`
	RecordCount   int           `json:"record_count"`
	SkippedCount  int           `json:"skipped_count"`
	FilteredCount int           `json:"filtered_count"`
	Status        string        `json:"status"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}
