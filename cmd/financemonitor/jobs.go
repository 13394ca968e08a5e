package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/financemonitor/internal/config"
	"github.com/rickgao/financemonitor/internal/pipeline"
	"github.com/rickgao/financemonitor/internal/warehouse"
)

// jobFlags are the pipeline overrides shared by extract and load.
type jobFlags struct {
	mode          string
	runDate       string
	concurrency   int
	moveProcessed bool
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", "", "override pipeline.mode (daily, backfill)")
	cmd.Flags().StringVar(&f.runDate, "run-date", "", "override pipeline.run_date (YYYY-MM-DD)")
}

func (f *jobFlags) apply(cfg *config.Config) error {
	if f.mode != "" {
		cfg.Pipeline.Mode = f.mode
	}
	if f.runDate != "" {
		cfg.Pipeline.RunDate = f.runDate
	}
	if f.concurrency > 0 {
		cfg.Pipeline.Concurrency = f.concurrency
	}
	if f.moveProcessed {
		cfg.Pipeline.MoveProcessed = true
	}
	// Flags bypass the load-time validation.
	return cfg.Validate()
}

func extractCmd(opts *rootOptions) *cobra.Command {
	flags := &jobFlags{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Fetch daily bars for active assets and write raw CSVs with a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}
			if err := cfg.ValidateAlphaVantage(); err != nil {
				return err
			}
			ctx := cmd.Context()

			wh, err := openWarehouse(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeWith(logger, "warehouse", wh)

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeWith(logger, "object store", store)

			extractor := pipeline.NewExtractor(pipeline.ExtractorConfig{
				Mode:        cfg.Pipeline.Mode,
				RunDate:     pipeline.RunDate(cfg.Pipeline.RunDate, time.Now()),
				AssetsTable: cfg.Warehouse.AssetsTable,
				Concurrency: cfg.Pipeline.Concurrency,
			}, newAlphaVantage(cfg.AlphaVantage, logger), wh, store, logger)

			manifest, err := extractor.Run(ctx)
			if manifest != nil {
				printJSON(cmd, manifest)
			}
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "override pipeline.concurrency")
	return cmd
}

func loadCmd(opts *rootOptions) *cobra.Command {
	flags := &jobFlags{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a run's raw CSVs into the prices table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}
			ctx := cmd.Context()

			wh, err := openWarehouse(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeWith(logger, "warehouse", wh)

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeWith(logger, "object store", store)

			loader := pipeline.NewLoader(pipeline.LoaderConfig{
				Mode:          cfg.Pipeline.Mode,
				RunDate:       pipeline.RunDate(cfg.Pipeline.RunDate, time.Now()),
				Table:         cfg.Warehouse.PricesTable,
				MoveProcessed: cfg.Pipeline.MoveProcessed,
			}, wh, store, logger)

			summary, err := loader.Run(ctx)
			if summary != nil {
				printJSON(cmd, summary)
			}
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.moveProcessed, "move-processed", false, "move loaded files under processed/")
	return cmd
}

func scrapeCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the latest IAMC LECAP/BONCAP report and load it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var wh warehouse.Warehouse
			if !dryRun {
				wh, err = openWarehouse(ctx, cfg, logger)
				if err != nil {
					return err
				}
				defer closeWith(logger, "warehouse", wh)
			}

			res, err := newScraper(cfg, wh, logger).Run(ctx, dryRun)
			if err != nil {
				return err
			}
			printJSON(cmd, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse the report without writing to the warehouse")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
	}
}
