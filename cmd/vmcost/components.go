package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"migration-cost/db/clickhouse"
	"migration-cost/db/ingestion"
	"migration-cost/db/postgres"
	"migration-cost/db/store"
	"migration-cost/decision/estimation"
	"migration-cost/internal/config"
	"migration-cost/internal/pricing"
	"migration-cost/internal/pricing/awsapi"
	"migration-cost/pkg/platform"
)

// components holds the services shared by commands.
type components struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    store.PricingStore
	resolver *pricing.Resolver
	engine   *estimation.Engine
}

// newComponents opens the configured store and wires resolver and engine.
// Callers must Close the result.
func newComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	logger := platform.InitLogger(cfg.LogLevel, cfg.LogConsole)

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var live pricing.LiveSource
	if cfg.Resolver.LiveEnabled {
		client, err := awsapi.New(ctx, cfg.Resolver.LiveEndpointRegion, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
		live = client
	}

	res := pricing.NewResolver(st, live, cfg.ResolverSettings(), logger)
	return &components{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		resolver: res,
		engine:   estimation.NewEngine(res, nil, logger),
	}, nil
}

func (r *components) Close() error {
	return r.store.Close()
}

func (r *components) ingestor() *ingestion.Ingestor {
	return newIngestor(r.cfg, r.store, r.logger)
}

func newIngestor(cfg *config.Config, st store.PricingStore, logger zerolog.Logger) *ingestion.Ingestor {
	client := platform.NewHTTPClient(cfg.Ingestion.Retries, cfg.Ingestion.Timeout, logger)
	fetcher := ingestion.NewFetcher(client, logger).WithBaseURL(cfg.Ingestion.BaseURL)
	parser := ingestion.NewParser(ingestion.ParseOptions{MinRecords: cfg.Ingestion.MinRecords}, logger)
	return ingestion.NewIngestor(fetcher, parser, st, logger)
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.PricingStore, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pcfg := postgres.DefaultConfig()
		pcfg.DSN = cfg.Store.PostgresDSN
		st, err := postgres.NewStore(pcfg)
		if err != nil {
			return nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return st, nil

	case config.BackendClickHouse:
		st, err := clickhouse.NewStore(&clickhouse.Config{
			Host:     cfg.Store.ClickHouseHost,
			Port:     cfg.Store.ClickHousePort,
			Database: cfg.Store.ClickHouseDatabase,
			Username: cfg.Store.ClickHouseUser,
			Password: cfg.Store.ClickHousePassword,
		})
		if err != nil {
			return nil, err
		}
		return st, nil

	default:
		st := store.NewMemoryStore()
		if err := preload(ctx, cfg, st, logger); err != nil {
			return nil, err
		}
		return st, nil
	}
}

// preload seeds the memory store from offer files saved on disk. The file
// name without extension is used as the service code in audit rows.
func preload(ctx context.Context, cfg *config.Config, st store.PricingStore, logger zerolog.Logger) error {
	if len(cfg.Store.Preload) == 0 {
		return nil
	}
	ing := newIngestor(cfg, st, logger)
	for _, path := range cfg.Store.Preload {
		service := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		doc, err := ingestion.ReadDocument(path, service, "")
		if err != nil {
			return err
		}
		if _, err := ing.LoadDocument(ctx, doc); err != nil {
			return fmt.Errorf("preload %s: %w", path, err)
		}
	}
	logger.Info().Int("documents", len(cfg.Store.Preload)).Msg("memory store preloaded")
	return nil
}
