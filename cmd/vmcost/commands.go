package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/urfave/cli/v2"

	"migration-cost/api"
	"migration-cost/db/clickhouse"
	"migration-cost/db/ingestion"
	"migration-cost/db/postgres"
	"migration-cost/decision/inventory"
	"migration-cost/decision/pricing"
	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/focus"
)

// exitIncomplete is returned when --fail-incomplete is set and some VM
// could not be priced.
const exitIncomplete = 2

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// =============================================================================
// INGEST COMMAND
// =============================================================================

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Load AWS bulk price list offers into the pricing store",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "service",
				Aliases: []string{"s"},
				Value:   cli.NewStringSlice("AmazonEC2"),
				Usage:   "Offer code to load (AmazonEC2, " + ingestion.ServiceComputeSavingsPlan + ")",
			},
			&cli.StringSliceFlag{
				Name:    "region",
				Aliases: []string{"r"},
				Usage:   "Region to load, or 'all' (defaults to the pricing region)",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Ingest a saved offer document instead of downloading",
			},
		},
		Action: runIngest,
	}
}

func runIngest(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := configFrom(c)
	rt, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	regions := c.StringSlice("region")
	switch {
	case len(regions) == 0:
		regions = []string{cfg.Pricing.Region}
	case slices.Contains(regions, "all"):
		regions = pricing.Regions()
	}
	for _, region := range regions {
		if !pricing.KnownRegion(region) {
			return perrors.NewConfigurationError(fmt.Sprintf("unknown region %q", region))
		}
	}

	ing := rt.ingestor()
	var results []*ingestion.IngestionResult

	if path := c.String("file"); path != "" {
		services := c.StringSlice("service")
		doc, err := ingestion.ReadDocument(path, services[0], regions[0])
		if err != nil {
			return err
		}
		res, err := ing.LoadDocument(ctx, doc)
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, res)
	}

	for _, service := range c.StringSlice("service") {
		for _, region := range regions {
			res, err := ing.Load(ctx, service, region)
			if err != nil {
				return fmt.Errorf("ingest %s/%s: %w", service, region, err)
			}
			results = append(results, res)
		}
	}
	return writeJSON(os.Stdout, results)
}

// =============================================================================
// ESTIMATE COMMAND
// =============================================================================

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "Estimate monthly and annual AWS cost for a VM inventory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "inventory",
				Aliases:  []string{"i"},
				Usage:    "Path to VM inventory (JSON or YAML)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, markdown, focus)",
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "Target AWS region (overrides configuration)",
			},
			&cli.BoolFlag{
				Name:  "fail-incomplete",
				Usage: "Exit with status 2 when any VM could not be priced",
			},
		},
		Action: runEstimate,
	}
}

func runEstimate(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := configFrom(c)
	if region := c.String("region"); region != "" {
		cfg.Pricing.Region = region
	}

	vms, err := inventory.LoadFile(c.String("inventory"))
	if err != nil {
		return err
	}

	rt, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Fprintf(os.Stderr, "Estimating %d VMs in %s\n", len(vms), cfg.Pricing.Region)

	result, err := rt.engine.EstimateBatch(ctx, vms, cfg.Pricing, cfg.BatchOptions())
	if err != nil {
		return err
	}

	switch c.String("format") {
	case "json":
		err = writeJSON(os.Stdout, result)
	case "markdown":
		err = outputMarkdown(os.Stdout, result)
	case "focus":
		err = writeJSON(os.Stdout, focus.FromBatch(result))
	default:
		err = outputTable(os.Stdout, result)
	}
	if err != nil {
		return err
	}

	if c.Bool("fail-incomplete") && result.Summary.IsIncomplete {
		return cli.Exit("estimate is incomplete", exitIncomplete)
	}
	return nil
}

// =============================================================================
// RECOMMEND COMMAND
// =============================================================================

func recommendCommand() *cli.Command {
	return &cli.Command{
		Name:  "recommend",
		Usage: "Recommend EC2 instance types for a VM inventory without pricing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "inventory",
				Aliases:  []string{"i"},
				Usage:    "Path to VM inventory (JSON or YAML)",
				Required: true,
			},
		},
		Action: runRecommend,
	}
}

func runRecommend(c *cli.Context) error {
	vms, err := inventory.LoadFile(c.String("inventory"))
	if err != nil {
		return err
	}

	rt, err := newComponents(c.Context, configFrom(c))
	if err != nil {
		return err
	}
	defer rt.Close()

	rec := rt.engine.Recommender()
	out := make([]api.RecommendResult, len(vms))
	for i, vm := range vms {
		out[i].VMID = vm.Key()
		fp, err := vm.Footprint()
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		r := rec.Recommend(fp)
		out[i].Footprint = &fp
		out[i].Recommendation = &r
	}
	return writeJSON(os.Stdout, out)
}

// =============================================================================
// PRICE COMMAND
// =============================================================================

func priceCommand() *cli.Command {
	return &cli.Command{
		Name:  "price",
		Usage: "Resolve the unit price of one instance type or volume type",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sku", Usage: "Instance type, e.g. m5.large"},
			&cli.StringFlag{Name: "volume", Usage: "EBS volume type, e.g. gp3"},
			&cli.StringFlag{Name: "region", Usage: "AWS region (defaults to the pricing region)"},
			&cli.StringFlag{Name: "os", Value: "Linux", Usage: "Operating system (Linux, Windows, RHEL, SUSE)"},
			&cli.StringFlag{Name: "model", Value: string(pricing.ModelOnDemand), Usage: "Pricing model (on_demand, reserved, savings_plan)"},
			&cli.StringFlag{Name: "term", Usage: "Commitment term (1yr, 3yr)"},
			&cli.StringFlag{Name: "payment", Usage: "Payment option (no_upfront, partial_upfront, all_upfront)"},
		},
		Action: runPrice,
	}
}

func runPrice(c *cli.Context) error {
	cfg := configFrom(c)
	dim, err := dimensionFromFlags(c, cfg.Pricing.Region)
	if err != nil {
		return err
	}

	rt, err := newComponents(c.Context, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	rec, err := rt.resolver.Resolve(c.Context, dim)
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, rec)
}

func dimensionFromFlags(c *cli.Context, defaultRegion string) (pricing.PriceDimension, error) {
	region := c.String("region")
	if region == "" {
		region = defaultRegion
	}

	if volume := c.String("volume"); volume != "" {
		return pricing.StorageDimension(volume, region), nil
	}
	if c.String("sku") == "" {
		return pricing.PriceDimension{}, perrors.NewConfigurationError("one of --sku or --volume is required")
	}

	guest, ok := pricing.ParseOperatingSystem(c.String("os"))
	if !ok {
		return pricing.PriceDimension{}, perrors.NewConfigurationError(fmt.Sprintf("unknown operating system %q", c.String("os")))
	}

	model := pricing.PricingModel(c.String("model"))
	term, payment := pricing.TermNone, pricing.PaymentNone
	if model != pricing.ModelOnDemand {
		if term, ok = pricing.ParseTerm(c.String("term")); !ok {
			return pricing.PriceDimension{}, perrors.NewConfigurationError(fmt.Sprintf("invalid term %q", c.String("term")))
		}
		if payment, ok = pricing.ParsePaymentOption(c.String("payment")); !ok {
			return pricing.PriceDimension{}, perrors.NewConfigurationError(fmt.Sprintf("invalid payment option %q", c.String("payment")))
		}
	}
	return pricing.ComputeDimension(c.String("sku"), region, guest, model, term, payment), nil
}

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the vmcost API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address (overrides configuration)",
				EnvVars: []string{"VMCOST_ADDR"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := configFrom(c)
	rt, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	scfg := api.DefaultConfig()
	scfg.Addr = cfg.Server.Addr
	if addr := c.String("addr"); addr != "" {
		scfg.Addr = addr
	}
	scfg.APIKey = cfg.Server.APIKey
	scfg.ReadTimeout = cfg.Server.ReadTimeout
	scfg.WriteTimeout = cfg.Server.WriteTimeout
	scfg.Pricing = cfg.Pricing
	scfg.Batch = cfg.BatchOptions()

	server := api.NewServer(rt.engine, rt.resolver, rt.store, scfg, rt.logger)
	return server.Run(ctx)
}

// =============================================================================
// MIGRATE COMMAND
// =============================================================================

type migrator interface {
	Migrate(ctx context.Context) error
}

var (
	_ migrator = (*postgres.Store)(nil)
	_ migrator = (*clickhouse.Store)(nil)
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create pricing tables in the configured database",
		Action: func(c *cli.Context) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := newComponents(ctx, configFrom(c))
			if err != nil {
				return err
			}
			defer rt.Close()

			m, ok := rt.store.(migrator)
			if !ok {
				return perrors.NewConfigurationError("the memory store has no schema to migrate")
			}
			if err := m.Migrate(ctx); err != nil {
				return err
			}
			rt.logger.Info().Str("backend", rt.cfg.Store.Backend).Msg("schema migrated")
			return nil
		},
	}
}
