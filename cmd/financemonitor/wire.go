package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/financemonitor/internal/alphavantage"
	"github.com/rickgao/financemonitor/internal/auth"
	"github.com/rickgao/financemonitor/internal/config"
	"github.com/rickgao/financemonitor/internal/database"
	"github.com/rickgao/financemonitor/internal/iol"
	"github.com/rickgao/financemonitor/internal/objstore"
	"github.com/rickgao/financemonitor/internal/scraper"
	"github.com/rickgao/financemonitor/internal/warehouse"
	"github.com/rickgao/financemonitor/internal/writer"
)

// openWarehouse connects to the configured warehouse backend.
func openWarehouse(ctx context.Context, cfg *config.Config, logger *slog.Logger) (warehouse.Warehouse, error) {
	if err := cfg.ValidateWarehouse(); err != nil {
		return nil, err
	}

	switch cfg.Warehouse.Type {
	case "postgres":
		db := cfg.Warehouse.Postgres
		logger.Info("connecting to postgres",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)
		pool, err := database.Connect(ctx, db)
		if err != nil {
			return nil, err
		}
		return warehouse.NewPostgres(pool, cfg.Warehouse.Dataset, logger), nil
	default:
		logger.Info("connecting to bigquery",
			"project", cfg.Warehouse.Project,
			"dataset", cfg.Warehouse.Dataset,
		)
		bq, err := warehouse.NewBigQuery(ctx, cfg.Warehouse.Project, cfg.Warehouse.Dataset, logger)
		if err != nil {
			return nil, err
		}
		return bq, nil
	}
}

// openStore opens the configured object store.
func openStore(ctx context.Context, cfg *config.Config) (objstore.Store, error) {
	switch cfg.Storage.Type {
	case "fs":
		fs, err := objstore.NewFS(cfg.Storage.Root)
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		gcs, err := objstore.NewGCS(ctx, cfg.Storage.Bucket)
		if err != nil {
			return nil, err
		}
		return gcs, nil
	}
}

func newAlphaVantage(cfg config.AlphaVantageConfig, logger *slog.Logger) *alphavantage.Client {
	return alphavantage.NewClient(
		cfg.APIURL,
		cfg.APIToken,
		alphavantage.WithLogger(logger),
		alphavantage.WithTimeout(cfg.Timeout),
		alphavantage.WithRetries(cfg.MaxRetries, time.Second),
		alphavantage.WithRateLimit(cfg.RequestsPerMinute),
	)
}

func newIOL(cfg config.IOLConfig, logger *slog.Logger) *iol.Client {
	tokens := auth.NewTokenManager(
		cfg.TokenURL,
		auth.Credentials{Username: cfg.Username, Password: cfg.Password},
		auth.WithLogger(logger),
		auth.WithExpiryBuffer(cfg.ExpiryBuffer),
	)
	return iol.NewClient(
		cfg.BaseURL,
		tokens,
		iol.WithLogger(logger),
		iol.WithTimeout(cfg.Timeout),
	)
}

// newScraper builds the IAMC scraper. A nil warehouse makes every run a dry run.
func newScraper(cfg *config.Config, wh warehouse.Warehouse, logger *slog.Logger) *scraper.Scraper {
	site := scraper.NewSite(
		cfg.Scraper.BaseURL,
		cfg.Scraper.ReportsPath,
		scraper.WithTimeout(cfg.Scraper.Timeout),
		scraper.WithInsecureSkipVerify(cfg.Scraper.InsecureSkipVerify),
		scraper.WithLogger(logger),
	)

	var w scraper.ReportWriter
	if wh != nil {
		w = writer.NewFixedIncomeWriter(
			wh,
			cfg.Warehouse.FixedIncomeTable,
			cfg.Warehouse.DailyValuesTable,
			cfg.Warehouse.TempTableTTL,
			logger,
		)
	}
	return scraper.New(site, scraper.PDFText{}, w, logger)
}

func closeWith(logger *slog.Logger, what string, closer interface{ Close() error }) {
	if err := closer.Close(); err != nil {
		logger.Warn(fmt.Sprintf("close %s", what), "error", err)
	}
}
