// Command financemonitor runs the finance data ingestion API and batch jobs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/financemonitor/internal/config"
	"github.com/rickgao/financemonitor/internal/pipeline"
	"github.com/rickgao/financemonitor/internal/version"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "financemonitor",
		Short:         "Finance data ingestion API and batch jobs",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (default: embedded config)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override log.format (text, json)")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(extractCmd(opts))
	rootCmd.AddCommand(loadCmd(opts))
	rootCmd.AddCommand(scrapeCmd(opts))
	rootCmd.AddCommand(versionCmd())

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		slog.Error("command failed", "error", err)
	}
	os.Exit(pipeline.ExitCode(err))
}

// setup loads configuration and installs the default logger.
func (o *rootOptions) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithDefaults(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}
