package postgres

// schemaSQL creates the pricing tables. Statements are idempotent.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS compute_pricing (
	resource_type    TEXT             NOT NULL,
	sku              TEXT             NOT NULL,
	region           TEXT             NOT NULL,
	operating_system TEXT             NOT NULL,
	tenancy          TEXT             NOT NULL,
	pricing_model    TEXT             NOT NULL,
	term             TEXT             NOT NULL,
	payment_option   TEXT             NOT NULL,
	effective_date   TIMESTAMPTZ      NOT NULL,
	unit_price       NUMERIC(20, 10)  NOT NULL,
	currency         TEXT             NOT NULL,
	unit             TEXT             NOT NULL,
	source           TEXT             NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	updated_at       TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (resource_type, sku, region, operating_system, tenancy, pricing_model, term, payment_option, effective_date)
);

CREATE TABLE IF NOT EXISTS storage_pricing (
	volume_type    TEXT             NOT NULL,
	region         TEXT             NOT NULL,
	effective_date TIMESTAMPTZ      NOT NULL,
	unit_price     NUMERIC(20, 10)  NOT NULL,
	currency       TEXT             NOT NULL,
	unit           TEXT             NOT NULL,
	source         TEXT             NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	updated_at     TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (volume_type, region, effective_date)
);

CREATE TABLE IF NOT EXISTS pricing_load_audit (
	run_id         UUID        PRIMARY KEY,
	service_code   TEXT        NOT NULL,
	region         TEXT        NOT NULL,
	source_hash    TEXT        NOT NULL DEFAULT '',
	record_count   INTEGER     NOT NULL,
	skipped_count  INTEGER     NOT NULL,
	filtered_count INTEGER     NOT NULL,
	status         TEXT        NOT NULL,
	error_message  TEXT        NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL,
	duration_ms    BIGINT      NOT NULL
);
`

const createStagingSQL = `CREATE TEMP TABLE price_staging (LIKE compute_pricing INCLUDING DEFAULTS) ON COMMIT DROP`

var stagingColumns = []string{
	"resource_type", "sku", "region", "operating_system", "tenancy",
	"pricing_model", "term", "payment_option", "effective_date",
	"unit_price", "currency", "unit", "source", "confidence",
}

const mergeComputeSQL = `
INSERT INTO compute_pricing (
	resource_type, sku, region, operating_system, tenancy, pricing_model, term, payment_option,
	effective_date, unit_price, currency, unit, source, confidence
)
SELECT DISTINCT ON (resource_type, sku, region, operating_system, tenancy, pricing_model, term, payment_option, effective_date)
	resource_type, sku, region, operating_system, tenancy, pricing_model, term, payment_option,
	effective_date, unit_price, currency, unit, source, confidence
FROM price_staging
WHERE resource_type <> 'storage'
ORDER BY resource_type, sku, region, operating_system, tenancy, pricing_model, term, payment_option, effective_date
ON CONFLICT (resource_type, sku, region, operating_system, tenancy, pricing_model, term, payment_option, effective_date)
DO UPDATE SET
	unit_price = EXCLUDED.unit_price,
	currency   = EXCLUDED.currency,
	unit       = EXCLUDED.unit,
	source     = EXCLUDED.source,
	confidence = EXCLUDED.confidence,
	updated_at = now()
`

const mergeStorageSQL = `
INSERT INTO storage_pricing (volume_type, region, effective_date, unit_price, currency, unit, source, confidence)
SELECT DISTINCT ON (sku, region, effective_date)
	sku, region, effective_date, unit_price, currency, unit, source, confidence
FROM price_staging
WHERE resource_type = 'storage'
ORDER BY sku, region, effective_date
ON CONFLICT (volume_type, region, effective_date)
DO UPDATE SET
	unit_price = EXCLUDED.unit_price,
	currency   = EXCLUDED.currency,
	unit       = EXCLUDED.unit,
	source     = EXCLUDED.source,
	confidence = EXCLUDED.confidence,
	updated_at = now()
`

const lookupComputeSQL = `
SELECT unit_price, currency, unit, effective_date, source, confidence
FROM compute_pricing
WHERE resource_type = $1 AND sku = $2 AND region = $3 AND operating_system = $4
  AND tenancy = $5 AND pricing_model = $6 AND term = $7 AND payment_option = $8
ORDER BY effective_date DESC
LIMIT 1
`

const lookupStorageSQL = `
SELECT unit_price, currency, unit, effective_date, source, confidence
FROM storage_pricing
WHERE volume_type = $1 AND region = $2
ORDER BY effective_date DESC
LIMIT 1
`

const insertAuditSQL = `
INSERT INTO pricing_load_audit (
	run_id, service_code, region, source_hash, record_count, skipped_count,
	filtered_count, status, error_message, started_at, duration_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
