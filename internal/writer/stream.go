package writer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/warehouse"
)

// MsgNoStreamRecords is returned when a stream batch has nothing to write.
const MsgNoStreamRecords = "No valid records to insert after processing input."

// streamInputLayouts are the datetime forms accepted from clients.
var streamInputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// StreamWriter commits records through the warehouse streaming API as one
// atomic batch.
type StreamWriter struct {
	streamer warehouse.Streamer
	table    string
	logger   *slog.Logger

	mu      sync.Mutex
	metrics WriterMetrics
}

// NewStreamWriter creates a StreamWriter for table.
func NewStreamWriter(streamer warehouse.Streamer, table string, logger *slog.Logger) *StreamWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamWriter{streamer: streamer, table: table, logger: logger}
}

// Write validates and commits records. Records with an empty symbol or an
// unparseable datetime are skipped with a warning.
func (w *StreamWriter) Write(ctx context.Context, records []model.StreamRecord) (int64, error) {
	rows := make([]model.StreamRecord, 0, len(records))
	for i, r := range records {
		row, err := normalizeStreamRecord(r)
		if err != nil {
			w.logger.Warn("skipping stream record", "index", i, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, &ValidationError{Message: MsgNoStreamRecords}
	}

	start := time.Now()
	n, err := w.streamer.WriteStream(ctx, w.table, rows)
	if err != nil {
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		return 0, fmt.Errorf("stream write into %s: %w", w.table, err)
	}

	w.mu.Lock()
	w.metrics.Inserts += n
	w.metrics.Flushes++
	w.mu.Unlock()

	w.logger.Info("committed stream batch",
		"table", w.table,
		"count", n,
		"skipped", len(records)-len(rows),
		"duration", time.Since(start),
	)
	return n, nil
}

// Stats returns current metrics.
func (w *StreamWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

func normalizeStreamRecord(r model.StreamRecord) (model.StreamRecord, error) {
	if strings.TrimSpace(r.Symbol) == "" {
		return r, fmt.Errorf("empty symbol")
	}
	dt, err := parseStreamTime(r.DateTime)
	if err != nil {
		return r, err
	}
	r.DateTime = dt.Format(StreamDateLayout)
	return r, nil
}

func parseStreamTime(s string) (time.Time, error) {
	for _, layout := range streamInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}
