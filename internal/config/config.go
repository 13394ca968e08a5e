package config

import "time"

// Config is the root configuration shared by every financemonitor command.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	AlphaVantage AlphaVantageConfig `yaml:"alphavantage"`
	IOL          IOLConfig          `yaml:"iol"`
	Warehouse    WarehouseConfig    `yaml:"warehouse"`
	Storage      StorageConfig      `yaml:"storage"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Scraper      ScraperConfig      `yaml:"scraper"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig controls the slog handler built by the root command.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// AlphaVantageConfig holds Alpha Vantage API settings.
type AlphaVantageConfig struct {
	APIURL            string        `yaml:"api_url"`
	APIToken          string        `yaml:"api_token"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerMinute int           `yaml:"requests_per_minute"` // 0 disables client-side limiting
}

// Configured reports whether an API token is present.
func (c AlphaVantageConfig) Configured() bool {
	return c.APIToken != ""
}

// IOLConfig holds InvertirOnline API settings.
type IOLConfig struct {
	BaseURL      string        `yaml:"base_url"`
	TokenURL     string        `yaml:"token_url"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Timeout      time.Duration `yaml:"timeout"`
	ExpiryBuffer time.Duration `yaml:"expiry_buffer"`
}

// Configured reports whether both credentials are present.
func (c IOLConfig) Configured() bool {
	return c.Username != "" && c.Password != ""
}

// WarehouseConfig selects and configures the analytical warehouse.
//
// Table names are either bare ("daily_prices"), resolved against Dataset, or
// dataset-qualified ("financeTools.byma_treasuries_fixed_income_daily_values").
type WarehouseConfig struct {
	Type             string        `yaml:"type"` // bigquery or postgres
	Project          string        `yaml:"project"`
	Dataset          string        `yaml:"dataset"`
	QuotesTable      string        `yaml:"quotes_table"`
	StreamTable      string        `yaml:"stream_table"`
	PricesTable      string        `yaml:"prices_table"`
	AssetsTable      string        `yaml:"assets_table"`
	FixedIncomeTable string        `yaml:"fixed_income_table"`
	DailyValuesTable string        `yaml:"daily_values_table"`
	TempTableTTL     time.Duration `yaml:"temp_table_ttl"`
	Postgres         DBConfig      `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StorageConfig selects the object store holding raw extracts and manifests.
type StorageConfig struct {
	Type   string `yaml:"type"` // gcs or fs
	Bucket string `yaml:"bucket"`
	Root   string `yaml:"root"` // fs only
}

// PipelineConfig holds extractor and loader job settings.
type PipelineConfig struct {
	Mode          string `yaml:"mode"`     // daily or backfill
	RunDate       string `yaml:"run_date"` // YYYY-MM-DD, empty means today (UTC)
	Concurrency   int    `yaml:"concurrency"`
	MoveProcessed bool   `yaml:"move_processed"`
}

// ScraperConfig holds IAMC report scraper settings.
type ScraperConfig struct {
	BaseURL            string        `yaml:"base_url"`
	ReportsPath        string        `yaml:"reports_path"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}
