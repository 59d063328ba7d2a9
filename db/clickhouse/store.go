// Package clickhouse provides a ClickHouse implementation of the pricing store.
// Rows live in ReplacingMergeTree tables, so re-inserting a record with the
// same key replaces it once parts merge; reads use FINAL to see that result.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"migration-cost/db/store"
	"migration-cost/decision/pricing"
	"migration-cost/pkg/units"
)

// Config holds ClickHouse connection configuration
type Config struct {
	Host      string
	Port      int
	Database  string
	Username  string
	Password  string
	Debug     bool
	BatchSize int
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:      "localhost",
		Port:      9000,
		Database:  "vmcost",
		Username:  "default",
		Password:  "",
		Debug:     false,
		BatchSize: 10000,
	}
}

// Store implements store.PricingStore using ClickHouse
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

var _ store.PricingStore = (*Store)(nil)

// NewStore creates a new ClickHouse pricing store
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// =============================================================================
// SCHEMA
// =============================================================================

var schema = []string{
	`CREATE TABLE IF NOT EXISTS price_records (
		resource_type    LowCardinality(String),
		sku              String,
		region           LowCardinality(String),
		operating_system LowCardinality(String),
		tenancy          LowCardinality(String),
		pricing_model    LowCardinality(String),
		term             LowCardinality(String),
		payment_option   LowCardinality(String),
		effective_date   DateTime64(3, 'UTC'),
		unit_price       Decimal(20, 10),
		currency         LowCardinality(String),
		unit             LowCardinality(String),
		source           LowCardinality(String),
		confidence       Float64,
		loaded_at        DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(loaded_at)
	ORDER BY (resource_type, sku, region, operating_system, tenancy, pricing_model, term, payment_option, effective_date)`,

	`CREATE TABLE IF NOT EXISTS pricing_load_audit (
		run_id         UUID,
		service_code   LowCardinality(String),
		region         LowCardinality(String),
		source_hash    String,
		record_count   Int64,
		skipped_count  Int64,
		filtered_count Int64,
		status         LowCardinality(String),
		error_message  String,
		started_at     DateTime64(3, 'UTC'),
		duration_ms    Int64
	) ENGINE = MergeTree
	ORDER BY (service_code, started_at)`,
}

// Migrate creates the pricing tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// =============================================================================
// RECORD OPERATIONS
// =============================================================================

const insertRecords = `
	INSERT INTO price_records (
		resource_type, sku, region, operating_system, tenancy, pricing_model, term, payment_option,
		effective_date, unit_price, currency, unit, source, confidence, loaded_at
	)
`

// BulkUpsert inserts records in batches of cfg.BatchSize. A failed load may
// leave earlier batches written; re-running the same document converges.
func (s *Store) BulkUpsert(ctx context.Context, records iter.Seq[pricing.PriceRecord]) (int, error) {
	loadedAt := time.Now().UTC()
	total := 0

	var batch driver.Batch
	pending := 0

	flush := func() error {
		if batch == nil || pending == 0 {
			return nil
		}
		err := batch.Send()
		batch, pending = nil, 0
		return err
	}

	for rec := range records {
		if batch == nil {
			b, err := s.conn.PrepareBatch(ctx, insertRecords)
			if err != nil {
				return total, fmt.Errorf("failed to prepare batch: %w", err)
			}
			batch = b
		}

		d := rec.Dimension
		if err := batch.Append(
			string(d.ResourceType), d.SKU, d.Region, string(d.OperatingSystem), string(d.Tenancy),
			string(d.PricingModel), string(d.Term), string(d.PaymentOption),
			rec.EffectiveDate.UTC(), rec.UnitPrice, rec.Currency, string(rec.Unit),
			string(rec.Source), rec.Confidence, loadedAt,
		); err != nil {
			_ = batch.Abort()
			return total, fmt.Errorf("failed to append %s to batch: %w", d.Key(), err)
		}
		pending++

		if pending >= s.cfg.BatchSize {
			n := pending
			if err := flush(); err != nil {
				return total, fmt.Errorf("failed to send batch: %w", err)
			}
			total += n
		}
	}

	n := pending
	if err := flush(); err != nil {
		return total, fmt.Errorf("failed to send batch: %w", err)
	}
	return total + n, nil
}

// Lookup returns the latest effective version of dim.
func (s *Store) Lookup(ctx context.Context, dim pricing.PriceDimension) (*pricing.PriceRecord, error) {
	query := `
		SELECT unit_price, currency, unit, effective_date, source, confidence
		FROM price_records FINAL
		WHERE resource_type = ? AND sku = ? AND region = ? AND operating_system = ?
		  AND tenancy = ? AND pricing_model = ? AND term = ? AND payment_option = ?
		ORDER BY effective_date DESC
		LIMIT 1
	`
	row := s.conn.QueryRow(ctx, query,
		string(dim.ResourceType), dim.SKU, dim.Region, string(dim.OperatingSystem),
		string(dim.Tenancy), string(dim.PricingModel), string(dim.Term), string(dim.PaymentOption),
	)

	rec := pricing.PriceRecord{Dimension: dim}
	var unit, source string
	err := row.Scan(&rec.UnitPrice, &rec.Currency, &unit, &rec.EffectiveDate, &source, &rec.Confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup price: %w", err)
	}
	rec.Unit = units.Unit(unit)
	rec.Source = pricing.Source(source)
	return &rec, nil
}

// =============================================================================
// AUDIT OPERATIONS
// =============================================================================

// RecordLoad inserts an ingestion audit row
func (s *Store) RecordLoad(ctx context.Context, a store.LoadAudit) error {
	query := `
		INSERT INTO pricing_load_audit (
			run_id, service_code, region, source_hash, record_count, skipped_count,
			filtered_count, status, error_message, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return s.conn.Exec(ctx, query,
		a.RunID, a.ServiceCode, a.Region, a.SourceHash,
		int64(a.RecordCount), int64(a.SkippedCount), int64(a.FilteredCount),
		a.Status, a.ErrorMessage, a.StartedAt.UTC(), a.Duration.Milliseconds(),
	)
}
