package config

import (
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultPort              = 8080
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultAlphaVantageURL   = "https://www.alphavantage.co/query"
	DefaultAlphaVantageTO    = 10 * time.Second
	DefaultIOLBaseURL        = "https://api.invertironline.com"
	DefaultIOLTokenURL       = "https://api.invertironline.com/token"
	DefaultIOLTimeout        = 30 * time.Second
	DefaultIOLExpiryBuffer   = 60 * time.Second
	DefaultWarehouseType     = "bigquery"
	DefaultDataset           = "stocks"
	DefaultPricesTable       = "daily_prices"
	DefaultAssetsTable       = "dim_asset"
	DefaultFixedIncomeTable  = "financeTools.byma_treasuries_fixed_income"
	DefaultDailyValuesTable  = "financeTools.byma_treasuries_fixed_income_daily_values"
	DefaultTempTableTTL      = time.Hour
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultStorageType       = "gcs"
	DefaultBucket            = "financemonitor-data"
	DefaultStorageRoot       = "data"
	DefaultMode              = "daily"
	DefaultConcurrency       = 1
	DefaultScraperBaseURL    = "https://www.iamc.com.ar"
	DefaultScraperReportPath = "/informeslecap/"
	DefaultScraperTimeout    = 60 * time.Second
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Alpha Vantage defaults
	if c.AlphaVantage.APIURL == "" {
		c.AlphaVantage.APIURL = DefaultAlphaVantageURL
	}
	if c.AlphaVantage.Timeout == 0 {
		c.AlphaVantage.Timeout = DefaultAlphaVantageTO
	}

	// IOL defaults
	if c.IOL.BaseURL == "" {
		c.IOL.BaseURL = DefaultIOLBaseURL
	}
	if c.IOL.TokenURL == "" {
		c.IOL.TokenURL = DefaultIOLTokenURL
	}
	if c.IOL.Timeout == 0 {
		c.IOL.Timeout = DefaultIOLTimeout
	}
	if c.IOL.ExpiryBuffer == 0 {
		c.IOL.ExpiryBuffer = DefaultIOLExpiryBuffer
	}

	// Warehouse defaults
	w := &c.Warehouse
	if w.Type == "" {
		w.Type = DefaultWarehouseType
	}
	if w.Project == "" {
		// Cloud Run and Cloud Functions expose the project under either name.
		w.Project = firstEnv("GOOGLE_CLOUD_PROJECT", "GCP_PROJECT")
	}
	if w.Dataset == "" {
		w.Dataset = DefaultDataset
	}
	if w.StreamTable == "" {
		w.StreamTable = w.QuotesTable
	}
	if w.PricesTable == "" {
		w.PricesTable = DefaultPricesTable
	}
	if w.AssetsTable == "" {
		w.AssetsTable = DefaultAssetsTable
	}
	if w.FixedIncomeTable == "" {
		w.FixedIncomeTable = DefaultFixedIncomeTable
	}
	if w.DailyValuesTable == "" {
		w.DailyValuesTable = DefaultDailyValuesTable
	}
	if w.TempTableTTL == 0 {
		w.TempTableTTL = DefaultTempTableTTL
	}
	applyDBDefaults(&w.Postgres)

	// Storage defaults
	if c.Storage.Type == "" {
		c.Storage.Type = DefaultStorageType
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = DefaultBucket
	}
	if c.Storage.Root == "" {
		c.Storage.Root = DefaultStorageRoot
	}

	// Pipeline defaults
	if c.Pipeline.Mode == "" {
		c.Pipeline.Mode = DefaultMode
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = DefaultConcurrency
	}

	// Scraper defaults
	if c.Scraper.BaseURL == "" {
		c.Scraper.BaseURL = DefaultScraperBaseURL
	}
	if c.Scraper.ReportsPath == "" {
		c.Scraper.ReportsPath = DefaultScraperReportPath
	}
	if c.Scraper.Timeout == 0 {
		c.Scraper.Timeout = DefaultScraperTimeout
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
