// vmcost estimates the AWS run cost of virtual machines migrated from an
// on-premises inventory.
//
// Usage:
//
//	vmcost ingest --service AmazonEC2 --region us-east-1
//	vmcost estimate --inventory vms.yaml [--format table|json|markdown]
//	vmcost recommend --inventory vms.yaml
//	vmcost price --sku m5.large --region eu-west-1
//	vmcost serve
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"migration-cost/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "vmcost",
		Usage:   "Estimate AWS cost for migrated virtual machines",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"VMCOST_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "log-console",
				Usage: "Human readable log output",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Pricing store backend (memory, postgres, clickhouse)",
			},
			&cli.BoolFlag{
				Name:  "live",
				Usage: "Query the AWS Price List API on store misses",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail instead of using heuristic prices",
			},
		},

		Before: loadConfig,

		Commands: []*cli.Command{
			ingestCommand(),
			estimateCommand(),
			recommendCommand(),
			priceCommand(),
			serveCommand(),
			migrateCommand(),
		},
	}
}

const metaConfig = "config"

// loadConfig resolves file, environment and flag settings once per run.
// Flags win over both.
func loadConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-console") {
		cfg.LogConsole = c.Bool("log-console")
	}
	if c.IsSet("store") {
		cfg.Store.Backend = c.String("store")
	}
	if c.IsSet("live") {
		cfg.Resolver.LiveEnabled = c.Bool("live")
	}
	if c.IsSet("strict") {
		cfg.Resolver.Strict = c.Bool("strict")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.App.Metadata[metaConfig] = &cfg
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.Config); ok {
		return cfg
	}
	cfg := config.Default()
	return &cfg
}
