package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StagingPrefix prefixes every staging table name.
const StagingPrefix = "temp_source_"

// Transform is a statement run against a staging table.
type Transform struct {
	Name string
	// SQL builds the statement from the quoted staging table reference.
	SQL func(stagingRef string) string
}

// Stager loads rows into a short-lived staging table and runs transform
// statements that read from it.
type Stager struct {
	wh     Warehouse
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewStager creates a stager. Staging tables expire after ttl even if the
// final drop fails.
func NewStager(wh Warehouse, ttl time.Duration, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stager{wh: wh, ttl: ttl, logger: logger, now: time.Now}
}

// NewStagingName returns a unique staging table name.
func NewStagingName() string {
	return StagingPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// LoadAndTransform loads rows into a new staging table, runs the transforms
// in order and drops the staging table. It returns the affected row count of
// each transform that ran.
func (s *Stager) LoadAndTransform(ctx context.Context, schema Schema, rows []map[string]any, transforms ...Transform) ([]int64, error) {
	table := NewStagingName()
	ref := s.wh.Ref(table)

	defer func() {
		// Cleanup must run even when ctx was cancelled.
		dropCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.wh.DropTable(dropCtx, table); err != nil {
			s.logger.Warn("failed to drop staging table", "table", table, "error", err)
			return
		}
		s.logger.Debug("dropped staging table", "table", table)
	}()

	loaded, err := s.wh.LoadJSON(ctx, table, schema, rows)
	if err != nil {
		return nil, fmt.Errorf("load staging table %s: %w", table, err)
	}
	s.logger.Info("loaded staging table", "table", table, "rows", loaded)

	if err := s.wh.SetExpiry(ctx, table, s.now().Add(s.ttl)); err != nil {
		return nil, fmt.Errorf("set expiry on staging table %s: %w", table, err)
	}

	affected := make([]int64, 0, len(transforms))
	for _, t := range transforms {
		n, err := s.wh.Exec(ctx, t.SQL(ref))
		if err != nil {
			return affected, fmt.Errorf("%s from %s: %w", t.Name, table, err)
		}
		s.logger.Info("transform complete", "transform", t.Name, "rows", n)
		affected = append(affected, n)
	}

	return affected, nil
}
