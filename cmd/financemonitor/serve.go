package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/financemonitor/internal/server"
	"github.com/rickgao/financemonitor/internal/version"
	"github.com/rickgao/financemonitor/internal/warehouse"
	"github.com/rickgao/financemonitor/internal/writer"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			ctx := cmd.Context()

			logger.Info("starting financemonitor api",
				"version", version.Version,
				"commit", version.Commit,
				"port", cfg.Server.Port,
			)

			var deps server.Deps

			// Vendor clients are optional; their routes report a config error.
			if cfg.AlphaVantage.Configured() {
				deps.AlphaVantage = newAlphaVantage(cfg.AlphaVantage, logger)
			} else {
				logger.Warn("alpha vantage api token not set")
			}
			if cfg.IOL.Configured() {
				deps.IOL = newIOL(cfg.IOL, logger)
			} else {
				logger.Warn("iol credentials not set")
			}

			wh, err := openWarehouse(ctx, cfg, logger)
			if err != nil {
				// Serve without the warehouse so the vendor routes stay up.
				logger.Error("warehouse unavailable", "error", err)
			}
			if wh != nil {
				defer closeWith(logger, "warehouse", wh)
				deps.Warehouse = wh
				if cfg.Warehouse.QuotesTable != "" {
					deps.Batch = writer.NewQuoteWriter(wh, cfg.Warehouse.QuotesTable, logger)
				}
				if streamer, ok := wh.(warehouse.Streamer); ok && cfg.Warehouse.StreamTable != "" {
					deps.Stream = writer.NewStreamWriter(streamer, cfg.Warehouse.StreamTable, logger)
				}
			}
			deps.LECAP = newScraper(cfg, wh, logger)

			srv := server.New(cfg.Server.Port, deps, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info("financemonitor api stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}
