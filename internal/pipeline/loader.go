package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/objstore"
	"github.com/rickgao/financemonitor/internal/warehouse"
)

// PriceSchema is the schema of raw price CSVs. The metadata columns after
// volume are added to existing tables through field addition.
var PriceSchema = warehouse.Schema{
	{Name: "timestamp", Type: warehouse.Timestamp},
	{Name: "open", Type: warehouse.Float},
	{Name: "high", Type: warehouse.Float},
	{Name: "low", Type: warehouse.Float},
	{Name: "close", Type: warehouse.Float},
	{Name: "volume", Type: warehouse.Integer},
	{Name: "ticker_symbol", Type: warehouse.String},
	{Name: "exchange_name", Type: warehouse.String},
	{Name: "country", Type: warehouse.String},
	{Name: "is_adjusted", Type: warehouse.Boolean},
}

// LoaderConfig holds loader settings.
type LoaderConfig struct {
	Mode          string
	RunDate       string // YYYY-MM-DD, empty means today (UTC)
	Table         string
	MoveProcessed bool
}

// LoadSummary reports the outcome of a load run.
type LoadSummary struct {
	RunDate string   `json:"run_date"`
	Mode    string   `json:"mode"`
	Loaded  []string `json:"loaded"`
	Failed  []string `json:"failed"`
	Rows    int64    `json:"rows"`
}

// Loader appends extracted CSVs to the prices table.
type Loader struct {
	cfg    LoaderConfig
	wh     warehouse.Warehouse
	store  objstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig, wh warehouse.Warehouse, store objstore.Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDaily
	}
	return &Loader{cfg: cfg, wh: wh, store: store, logger: logger, now: time.Now}
}

// Run loads every file of the run. It returns ErrNoSuccess when there was
// nothing to load or every load failed.
func (l *Loader) Run(ctx context.Context) (*LoadSummary, error) {
	start := l.now()
	runDate := RunDate(l.cfg.RunDate, start)
	summary := &LoadSummary{RunDate: runDate, Mode: l.cfg.Mode, Loaded: []string{}, Failed: []string{}}

	l.logger.Info("starting load", "mode", l.cfg.Mode, "run_date", runDate, "table", l.cfg.Table)

	uris := l.filesToLoad(ctx, runDate)
	if len(uris) == 0 {
		l.logger.Warn("no files to load")
		return summary, ErrNoSuccess
	}

	for _, uri := range uris {
		rows, err := l.loadFile(ctx, uri)
		if err != nil {
			l.logger.Error("failed to load file", "uri", uri, "error", err)
			summary.Failed = append(summary.Failed, uri)
			continue
		}
		l.logger.Info("loaded file", "uri", uri, "rows", rows)
		summary.Loaded = append(summary.Loaded, uri)
		summary.Rows += rows

		if l.cfg.MoveProcessed {
			l.moveToProcessed(ctx, uri)
		}
	}

	l.logger.Info("load complete",
		"files", len(uris),
		"loaded", len(summary.Loaded),
		"failed", len(summary.Failed),
		"rows", summary.Rows,
		"duration", time.Since(start),
	)

	if len(summary.Loaded) == 0 {
		return summary, ErrNoSuccess
	}
	return summary, nil
}

// filesToLoad reads the run manifest, falling back to listing the raw prefix.
func (l *Loader) filesToLoad(ctx context.Context, runDate string) []string {
	uris, err := l.manifestURIs(ctx, runDate)
	if err == nil {
		l.logger.Info("loaded files from manifest", "count", len(uris))
		return uris
	}
	l.logger.Warn("could not read manifest, listing files directly", "error", err)

	names, err := l.store.List(ctx, objstore.RawModePrefix(l.cfg.Mode))
	if err != nil {
		l.logger.Error("failed to list raw files", "error", err)
		return nil
	}

	uris = make([]string, 0, len(names))
	for _, name := range names {
		if strings.Contains(name, runDate) && strings.HasSuffix(name, ".csv") {
			uris = append(uris, l.store.URI(name))
		}
	}
	l.logger.Info("found files in store", "count", len(uris))
	return uris
}

func (l *Loader) manifestURIs(ctx context.Context, runDate string) ([]string, error) {
	data, err := l.store.Get(ctx, objstore.ManifestPath(l.cfg.Mode, runDate))
	if err != nil {
		return nil, err
	}
	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m.SuccessURIs(), nil
}

// loadFile loads one CSV. Warehouses that read object URIs directly get the
// URI; others receive the object bytes.
func (l *Loader) loadFile(ctx context.Context, uri string) (int64, error) {
	load := warehouse.CSVLoad{
		Table:              l.cfg.Table,
		Schema:             PriceSchema,
		SkipLeadingRows:    1,
		AllowFieldAddition: true,
	}

	if ul, ok := l.wh.(warehouse.URILoader); ok && strings.HasPrefix(uri, "gs://") {
		return ul.LoadCSVFromURI(ctx, load, uri)
	}

	name, ok := l.store.Name(uri)
	if !ok {
		return 0, fmt.Errorf("uri %s is not in the configured store", uri)
	}
	data, err := l.store.Get(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	return l.wh.LoadCSV(ctx, load, bytes.NewReader(data))
}

func (l *Loader) moveToProcessed(ctx context.Context, uri string) {
	name, ok := l.store.Name(uri)
	if !ok {
		l.logger.Warn("cannot move file outside the store", "uri", uri)
		return
	}
	dst, ok := objstore.ProcessedPath(name)
	if !ok {
		l.logger.Warn("file is not under raw/", "name", name)
		return
	}
	if err := l.store.Move(ctx, name, dst); err != nil {
		l.logger.Warn("could not move file to processed", "name", name, "error", err)
		return
	}
	l.logger.Info("moved file", "from", name, "to", dst)
}
