// bookingrecon - booking reconciliation pipeline
//
// Usage:
//   bookingrecon generate --out data [--seed 42]
//   bookingrecon run --synthetic [options]
//   bookingrecon run --analytics data/analytics_events.json --crm data/crm_opportunities.json
//   bookingrecon serve --port 8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	httpapi "booking-recon/api"
	"booking-recon/db/clickhouse"
	"booking-recon/db/postgres"
	"booking-recon/internal/aggregate"
	"booking-recon/internal/classify"
	"booking-recon/internal/fixtures"
	"booking-recon/internal/match"
	"booking-recon/internal/normalize"
	"booking-recon/internal/pipeline"
	"booking-recon/internal/report"
	"booking-recon/pkg/api"
	"booking-recon/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "bookingrecon",
		Usage:   "Reconcile analytics purchase events against CRM opportunities",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"BOOKINGRECON_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "bookingrecon",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
		},

		Commands: []*cli.Command{
			generateCommand(),
			runCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// GENERATE COMMAND
// =============================================================================

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate synthetic source datasets with injected discrepancies",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "seed",
				Value: 42,
				Usage: "Random seed (same seed, same dataset)",
			},
			&cli.IntFlag{
				Name:  "bookings",
				Value: fixtures.DefaultBookings,
				Usage: "Number of base bookings",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   "data",
				Usage:   "Output directory",
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(c *cli.Context) error {
	logger := platform.InitLogger(c.String("log-level"))

	gen := fixtures.NewGenerator(fixtures.Config{
		Seed:     c.Int64("seed"),
		Bookings: c.Int("bookings"),
	})
	ds := gen.Generate()

	outDir := c.String("out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeJSONFile(filepath.Join(outDir, "analytics_events.json"), ds.Analytics); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(outDir, "crm_opportunities.json"), ds.Crm); err != nil {
		return err
	}

	logger.Info("sample data generated",
		"base_bookings", ds.BaseBookings,
		"analytics_events", len(ds.Analytics),
		"crm_opportunities", len(ds.Crm),
		"out", outDir)
	return nil
}

// =============================================================================
// RUN COMMAND
// =============================================================================

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the reconciliation pipeline end to end",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "synthetic",
				Usage: "Generate the source datasets instead of reading them",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Value: 42,
				Usage: "Random seed for --synthetic",
			},
			&cli.StringFlag{
				Name:  "analytics",
				Usage: "Path to raw analytics events JSON",
			},
			&cli.StringFlag{
				Name:  "crm",
				Usage: "Path to raw CRM opportunities JSON",
			},
			&cli.StringFlag{
				Name:    "crm-dsn",
				Usage:   "Postgres DSN of the CRM replica (overrides --crm)",
				EnvVars: []string{"CRM_REPLICA_DSN"},
			},
			&cli.TimestampFlag{
				Name:   "crm-since",
				Layout: "2006-01-02",
				Usage:  "Fetch CRM opportunities created on or after this date",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail the run on the first malformed record",
			},
			&cli.StringFlag{
				Name:  "low-value-threshold",
				Value: "100",
				Usage: "Amount below which analytics-only rows are labeled low_value",
			},
			&cli.IntFlag{
				Name:  "trend-days",
				Value: aggregate.DefaultTrendDays,
				Usage: "Days of daily trend to report",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, markdown)",
			},
			&cli.BoolFlag{
				Name:  "persist",
				Usage: "Persist staging records, rows, and summary to ClickHouse",
			},
			&cli.IntFlag{
				Name:  "retries",
				Value: pipeline.DefaultRetries,
				Usage: "Retry attempts per pipeline step",
			},
		},
		Action: runPipeline,
	}
}

func runPipeline(c *cli.Context) error {
	logger := platform.InitLogger(c.String("log-level"))
	ctx := context.Background()

	threshold, err := decimal.NewFromString(c.String("low-value-threshold"))
	if err != nil {
		return fmt.Errorf("invalid --low-value-threshold: %w", err)
	}

	if !c.Bool("synthetic") && c.String("analytics") == "" {
		return fmt.Errorf("either --synthetic or --analytics is required")
	}
	if !c.Bool("synthetic") && c.String("crm") == "" && c.String("crm-dsn") == "" {
		return fmt.Errorf("either --synthetic, --crm, or --crm-dsn is required")
	}

	// State threaded through the pipeline steps.
	var (
		rawAnalytics []api.AnalyticsRawEvent
		rawCrm       []api.CrmRawOpportunity
		normalized   *normalize.Result
		rows         []api.ReconciledRow
		summary      *api.ReconciliationSummary
	)

	var store *clickhouse.Store
	if c.Bool("persist") {
		store, err = clickhouse.NewStore(&clickhouse.Config{
			Host:     c.String("clickhouse-host"),
			Port:     c.Int("clickhouse-port"),
			Database: c.String("clickhouse-database"),
			Username: c.String("clickhouse-user"),
			Password: c.String("clickhouse-password"),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer store.Close()
	}

	runID := uuid.New()
	logger.Info("reconciliation run starting", "run_id", runID)

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithRetries(c.Int("retries")),
	)

	p.Add(pipeline.Step{
		Name: "extract_analytics_events",
		Run: func(ctx context.Context) error {
			if c.Bool("synthetic") {
				ds := fixtures.NewGenerator(fixtures.Config{Seed: c.Int64("seed")}).Generate()
				rawAnalytics, rawCrm = ds.Analytics, ds.Crm
				logger.Info("synthetic dataset generated",
					"base_bookings", ds.BaseBookings,
					"analytics_events", len(ds.Analytics),
					"crm_opportunities", len(ds.Crm))
				return nil
			}
			return readJSONFile(c.String("analytics"), &rawAnalytics)
		},
	})

	p.Add(pipeline.Step{
		Name: "extract_crm_opportunities",
		Deps: []string{"extract_analytics_events"},
		Run: func(ctx context.Context) error {
			if c.Bool("synthetic") {
				return nil // produced alongside the analytics extract
			}
			if dsn := c.String("crm-dsn"); dsn != "" {
				crm, err := postgres.Open(dsn)
				if err != nil {
					return err
				}
				defer crm.Close()
				since := time.Time{}
				if t := c.Timestamp("crm-since"); t != nil {
					since = *t
				}
				rawCrm, err = crm.FetchOpportunities(ctx, since)
				return err
			}
			return readJSONFile(c.String("crm"), &rawCrm)
		},
	})

	p.Add(pipeline.Step{
		Name: "data_quality_checks",
		Deps: []string{"extract_analytics_events", "extract_crm_opportunities"},
		Run: func(ctx context.Context) error {
			var err error
			normalized, err = normalize.Normalize(rawAnalytics, rawCrm, normalize.Options{
				Strict: c.Bool("strict"),
			})
			if err != nil {
				return err
			}
			q := normalized.Quality
			logger.Info("data quality checks",
				"analytics_missing_key", q.AnalyticsMissingKey,
				"crm_missing_key", q.CrmMissingKey,
				"cancelled_excluded", q.CancelledExcluded,
				"synthetic_tests", q.SyntheticTests,
				"malformed", len(q.Malformed))
			for _, m := range q.Malformed {
				logger.Warn("malformed record skipped", "error", m.Error())
			}
			return nil
		},
	})

	p.Add(pipeline.Step{
		Name: "build_reconciliation",
		Deps: []string{"data_quality_checks"},
		Run: func(ctx context.Context) error {
			joined, err := match.Match(normalized.Analytics, normalized.Crm)
			if err != nil {
				return err
			}
			rows = classify.ClassifyAll(joined, classify.Options{LowValueThreshold: threshold})
			logger.Info("reconciliation model built", "rows", len(rows))
			return nil
		},
	})

	p.Add(pipeline.Step{
		Name: "generate_report",
		Deps: []string{"build_reconciliation"},
		Run: func(ctx context.Context) error {
			var err error
			summary, err = aggregate.Aggregate(rows, aggregate.Options{TrendDays: c.Int("trend-days")})
			if err != nil {
				return err
			}
			return report.Render(os.Stdout, summary, c.String("format"))
		},
	})

	if store != nil {
		p.Add(pipeline.Step{
			Name: "persist_results",
			Deps: []string{"generate_report"},
			Run: func(ctx context.Context) error {
				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
				if err := store.InsertAnalyticsRecords(ctx, runID, normalized.Analytics); err != nil {
					return err
				}
				if err := store.InsertCrmRecords(ctx, runID, normalized.Crm); err != nil {
					return err
				}
				if err := store.InsertReconciledRows(ctx, runID, rows); err != nil {
					return err
				}
				return store.SaveSummary(ctx, runID, summary)
			},
		})
	}

	if err := p.Run(ctx); err != nil {
		return err
	}
	logger.Info("reconciliation run complete", "run_id", runID)
	return nil
}

// =============================================================================
// SERVE COMMAND
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the reconciliation API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "API server port",
				EnvVars: []string{"BOOKINGRECON_PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"BOOKINGRECON_CORS_ORIGINS"},
			},
			&cli.BoolFlag{
				Name:  "warehouse",
				Usage: "Connect to ClickHouse so requests may persist runs",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	logger := platform.InitLogger(c.String("log-level"))

	var store *clickhouse.Store
	if c.Bool("warehouse") {
		var err error
		store, err = clickhouse.NewStore(&clickhouse.Config{
			Host:     c.String("clickhouse-host"),
			Port:     c.Int("clickhouse-port"),
			Database: c.String("clickhouse-database"),
			Username: c.String("clickhouse-user"),
			Password: c.String("clickhouse-password"),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer store.Close()
	}

	corsOrigins := strings.Split(c.String("cors-origins"), ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}

	cfg := httpapi.DefaultConfig()
	cfg.Port = c.Int("port")
	cfg.CORSOrigins = corsOrigins

	server := httpapi.NewServer(store, cfg, logger)
	return server.StartWithGracefulShutdown()
}

// =============================================================================
// FILE HELPERS
// =============================================================================

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
