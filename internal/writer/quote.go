package writer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/warehouse"
)

// QuoteWriter appends validated batch records to the quotes table with a
// CSV load job.
type QuoteWriter struct {
	wh     warehouse.Warehouse
	table  string
	logger *slog.Logger

	mu      sync.Mutex
	metrics WriterMetrics
}

// NewQuoteWriter creates a QuoteWriter for table.
func NewQuoteWriter(wh warehouse.Warehouse, table string, logger *slog.Logger) *QuoteWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteWriter{wh: wh, table: table, logger: logger}
}

// Write loads records and returns the number of rows loaded. An empty batch
// is a no-op.
func (w *QuoteWriter) Write(ctx context.Context, records []model.QuoteRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([]quoteRow, len(records))
	for i, r := range records {
		rows[i] = w.transform(r)
	}

	var buf bytes.Buffer
	if err := gocsv.MarshalWithoutHeaders(&rows, &buf); err != nil {
		return 0, fmt.Errorf("encode quote rows: %w", err)
	}

	start := time.Now()
	loaded, err := w.wh.LoadCSV(ctx, warehouse.CSVLoad{Table: w.table}, &buf)
	if err != nil {
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		return 0, fmt.Errorf("load quotes into %s: %w", w.table, err)
	}
	// Load statistics can be missing; the batch was accepted whole.
	if loaded == 0 {
		loaded = int64(len(rows))
	}

	w.mu.Lock()
	w.metrics.Inserts += loaded
	w.metrics.Flushes++
	w.mu.Unlock()

	w.logger.Info("loaded quotes",
		"table", w.table,
		"count", loaded,
		"duration", time.Since(start),
	)
	return loaded, nil
}

// Stats returns current metrics.
func (w *QuoteWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// transform converts a QuoteRecord to a quoteRow.
func (w *QuoteWriter) transform(r model.QuoteRecord) quoteRow {
	return quoteRow{
		Ticker:   r.Ticker,
		Value:    r.Value.String(),
		Market:   r.Market,
		DateTime: r.DateTime.Format(quoteRowLayout),
	}
}
