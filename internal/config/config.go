// Package config loads vmcost settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"migration-cost/db/ingestion"
	"migration-cost/decision/estimation"
	"migration-cost/internal/pricing"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/platform"
)

// Store backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

type Config struct {
	LogLevel   string                   `yaml:"log_level"`
	LogConsole bool                     `yaml:"log_console"`
	Server     ServerConfig             `yaml:"server"`
	Store      StoreConfig              `yaml:"store"`
	Resolver   ResolverConfig           `yaml:"resolver"`
	Ingestion  IngestionConfig          `yaml:"ingestion"`
	Batch      BatchConfig              `yaml:"batch"`
	Pricing    estimation.PricingConfig `yaml:"pricing"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	APIKey       string        `yaml:"api_key"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type StoreConfig struct {
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`

	ClickHouseHost     string `yaml:"clickhouse_host"`
	ClickHousePort     int    `yaml:"clickhouse_port"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
	ClickHouseUser     string `yaml:"clickhouse_user"`
	ClickHousePassword string `yaml:"clickhouse_password"`

	// Preload seeds a memory store from offer documents on startup.
	Preload []string `yaml:"preload"`
}

type ResolverConfig struct {
	CacheSize          int           `yaml:"cache_size"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	LiveEnabled        bool          `yaml:"live_enabled"`
	LiveEndpointRegion string        `yaml:"live_endpoint_region"`
	LiveTimeout        time.Duration `yaml:"live_timeout"`
	LiveRateLimit      float64       `yaml:"live_rate_limit"`
	WriteBack          bool          `yaml:"write_back"`
	Strict             bool          `yaml:"strict"`
	MaxConcurrency     int           `yaml:"max_concurrency"`
}

type IngestionConfig struct {
	BaseURL    string        `yaml:"base_url"`
	MinRecords int           `yaml:"min_records"`
	Retries    int           `yaml:"retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

type BatchConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	PerVMTimeout time.Duration `yaml:"per_vm_timeout"`
}

// Default returns a configuration usable without any file or database.
func Default() Config {
	rc := pricing.DefaultConfig()
	bo := estimation.DefaultBatchOptions()
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Store: StoreConfig{
			Backend:            BackendMemory,
			ClickHouseHost:     "localhost",
			ClickHousePort:     9000,
			ClickHouseDatabase: "vmcost",
			ClickHouseUser:     "default",
		},
		Resolver: ResolverConfig{
			CacheSize:          rc.CacheSize,
			CacheTTL:           rc.CacheTTL,
			LiveEndpointRegion: "us-east-1",
			LiveTimeout:        rc.LiveTimeout,
			LiveRateLimit:      rc.LiveRateLimit,
			WriteBack:          rc.WriteBack,
			MaxConcurrency:     rc.MaxConcurrency,
		},
		Ingestion: IngestionConfig{
			BaseURL:    ingestion.DefaultBaseURL,
			MinRecords: ingestion.DefaultMinRecords,
			Retries:    3,
			Timeout:    5 * time.Minute,
		},
		Batch: BatchConfig{
			Concurrency:  bo.Concurrency,
			PerVMTimeout: bo.PerVMTimeout,
		},
		Pricing: estimation.DefaultPricingConfig(),
	}
}

// Load reads path over the defaults, applies VMCOST_* environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, perrors.NewConfigurationError(fmt.Sprintf("parse %s: %v", path, err))
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = platform.GetEnv("VMCOST_LOG_LEVEL", c.LogLevel)
	c.LogConsole = platform.GetEnvBool("VMCOST_LOG_CONSOLE", c.LogConsole)

	c.Server.Addr = platform.GetEnv("VMCOST_ADDR", c.Server.Addr)
	c.Server.APIKey = platform.GetEnv("VMCOST_API_KEY", c.Server.APIKey)

	c.Store.Backend = platform.GetEnv("VMCOST_STORE", c.Store.Backend)
	c.Store.PostgresDSN = platform.GetEnv("VMCOST_POSTGRES_DSN", c.Store.PostgresDSN)
	c.Store.ClickHouseHost = platform.GetEnv("VMCOST_CLICKHOUSE_HOST", c.Store.ClickHouseHost)
	c.Store.ClickHousePort = platform.GetEnvInt("VMCOST_CLICKHOUSE_PORT", c.Store.ClickHousePort)
	c.Store.ClickHouseDatabase = platform.GetEnv("VMCOST_CLICKHOUSE_DATABASE", c.Store.ClickHouseDatabase)
	c.Store.ClickHouseUser = platform.GetEnv("VMCOST_CLICKHOUSE_USER", c.Store.ClickHouseUser)
	c.Store.ClickHousePassword = platform.GetEnv("VMCOST_CLICKHOUSE_PASSWORD", c.Store.ClickHousePassword)

	c.Resolver.CacheTTL = platform.GetEnvDuration("VMCOST_CACHE_TTL", c.Resolver.CacheTTL)
	c.Resolver.LiveEnabled = platform.GetEnvBool("VMCOST_LIVE_API", c.Resolver.LiveEnabled)
	c.Resolver.LiveRateLimit = platform.GetEnvFloat("VMCOST_LIVE_RATE_LIMIT", c.Resolver.LiveRateLimit)
	c.Resolver.Strict = platform.GetEnvBool("VMCOST_STRICT", c.Resolver.Strict)

	c.Pricing.Region = platform.GetEnv("VMCOST_REGION", c.Pricing.Region)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return perrors.NewConfigurationError("postgres store requires postgres_dsn")
		}
	case BackendClickHouse:
		if c.Store.ClickHouseHost == "" {
			return perrors.NewConfigurationError("clickhouse store requires clickhouse_host")
		}
	default:
		return perrors.NewConfigurationError(fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if c.Resolver.LiveRateLimit < 0 {
		return perrors.NewConfigurationError("live_rate_limit must not be negative")
	}
	return c.Pricing.Validate()
}

// ResolverSettings converts the resolver section for pricing.NewResolver.
func (c *Config) ResolverSettings() pricing.Config {
	rc := pricing.DefaultConfig()
	rc.CacheSize = c.Resolver.CacheSize
	rc.CacheTTL = c.Resolver.CacheTTL
	rc.LiveTimeout = c.Resolver.LiveTimeout
	rc.LiveRateLimit = c.Resolver.LiveRateLimit
	rc.WriteBack = c.Resolver.WriteBack
	rc.Strict = c.Resolver.Strict
	rc.MaxConcurrency = c.Resolver.MaxConcurrency
	return rc
}

// BatchOptions converts the batch section.
func (c *Config) BatchOptions() estimation.BatchOptions {
	return estimation.BatchOptions{
		Concurrency:  c.Batch.Concurrency,
		PerVMTimeout: c.Batch.PerVMTimeout,
	}
}
