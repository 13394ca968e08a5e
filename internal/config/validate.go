package config

import (
	"errors"
	"fmt"
	"time"
)

// RunDateLayout is the layout of pipeline.run_date and of manifest run dates.
const RunDateLayout = "2006-01-02"

// Validate checks that values are well formed.
//
// Vendor credentials are not required here: the server starts without them and
// the affected endpoints report a configuration error instead.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.AlphaVantage.MaxRetries < 0 {
		return errors.New("alphavantage.max_retries must be >= 0")
	}
	if c.AlphaVantage.RequestsPerMinute < 0 {
		return errors.New("alphavantage.requests_per_minute must be >= 0")
	}

	switch c.Warehouse.Type {
	case "bigquery":
	case "postgres":
		if err := c.Warehouse.Postgres.validate("warehouse.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("warehouse.type must be bigquery or postgres, got %q", c.Warehouse.Type)
	}
	if c.Warehouse.TempTableTTL < time.Minute {
		return errors.New("warehouse.temp_table_ttl must be >= 1m")
	}

	switch c.Storage.Type {
	case "gcs":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required")
		}
	case "fs":
		if c.Storage.Root == "" {
			return errors.New("storage.root is required")
		}
	default:
		return fmt.Errorf("storage.type must be gcs or fs, got %q", c.Storage.Type)
	}

	if c.Pipeline.Mode != "daily" && c.Pipeline.Mode != "backfill" {
		return fmt.Errorf("pipeline.mode must be daily or backfill, got %q", c.Pipeline.Mode)
	}
	if c.Pipeline.RunDate != "" {
		if _, err := time.Parse(RunDateLayout, c.Pipeline.RunDate); err != nil {
			return fmt.Errorf("pipeline.run_date must be YYYY-MM-DD, got %q", c.Pipeline.RunDate)
		}
	}
	if c.Pipeline.Concurrency < 1 {
		return errors.New("pipeline.concurrency must be >= 1")
	}

	return nil
}

// ValidateAlphaVantage checks the settings needed by the extractor.
func (c *Config) ValidateAlphaVantage() error {
	if !c.AlphaVantage.Configured() {
		return errors.New("alphavantage.api_token is required")
	}
	return nil
}

// ValidateWarehouse checks the settings needed to open the warehouse.
func (c *Config) ValidateWarehouse() error {
	if c.Warehouse.Type == "bigquery" && c.Warehouse.Project == "" {
		return errors.New("warehouse.project is required")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
