package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gocarina/gocsv"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/financemonitor/internal/alphavantage"
	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/objstore"
	"github.com/rickgao/financemonitor/internal/warehouse"
)

// BarSource provides daily price bars for a symbol.
type BarSource interface {
	DailyBars(ctx context.Context, symbol, outputSize string) ([]model.DailyBar, error)
}

// ExtractorConfig holds extractor settings.
type ExtractorConfig struct {
	Mode        string
	RunDate     string // YYYY-MM-DD, empty means today (UTC)
	AssetsTable string
	Concurrency int
}

// Extractor writes one raw CSV per active asset and a run manifest.
type Extractor struct {
	cfg    ExtractorConfig
	bars   BarSource
	wh     warehouse.Warehouse
	store  objstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg ExtractorConfig, bars BarSource, wh warehouse.Warehouse, store objstore.Store, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDaily
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Extractor{cfg: cfg, bars: bars, wh: wh, store: store, logger: logger, now: time.Now}
}

// Run extracts every active asset. It returns the written manifest, and
// ErrNoSuccess when there were no assets or every asset failed.
func (e *Extractor) Run(ctx context.Context) (*model.Manifest, error) {
	start := e.now()
	runDate := RunDate(e.cfg.RunDate, start)

	e.logger.Info("starting extraction", "mode", e.cfg.Mode, "run_date", runDate)

	assets := ActiveAssets(ctx, e.wh, e.cfg.AssetsTable, e.logger)
	if len(assets) == 0 {
		e.logger.Warn("no symbols to process")
		return nil, ErrNoSuccess
	}

	entries := make([]model.ManifestEntry, len(assets))
	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, asset := range assets {
		g.Go(func() error {
			uri, err := e.extractSymbol(gctx, asset, runDate)
			if err != nil {
				e.logger.Warn("failed to extract symbol", "symbol", asset.Ticker, "error", err)
				entries[i] = model.ManifestEntry{Symbol: asset.Ticker, Error: err.Error()}
				failed.Add(1)
				return nil
			}
			entries[i] = model.ManifestEntry{Symbol: asset.Ticker, GCSURI: uri}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	manifest := &model.Manifest{
		RunDate:     runDate,
		Mode:        e.cfg.Mode,
		ExtractedAt: e.now().UTC(),
		Results: model.ManifestResults{
			Success: []model.ManifestEntry{},
			Failed:  []model.ManifestEntry{},
			Total:   len(assets),
		},
	}
	for _, entry := range entries {
		if entry.Error != "" {
			manifest.Results.Failed = append(manifest.Results.Failed, entry)
		} else {
			manifest.Results.Success = append(manifest.Results.Success, entry)
		}
	}

	if err := e.writeManifest(ctx, manifest); err != nil {
		// The loader falls back to listing raw/ when the manifest is missing.
		e.logger.Error("failed to write manifest", "error", err)
	}

	e.logger.Info("extraction complete",
		"symbols", len(assets),
		"succeeded", succeeded.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start),
	)

	if succeeded.Load() == 0 {
		return manifest, ErrNoSuccess
	}
	return manifest, nil
}

// extractSymbol downloads one asset and uploads its CSV.
func (e *Extractor) extractSymbol(ctx context.Context, asset model.Asset, runDate string) (string, error) {
	bars, err := e.bars.DailyBars(ctx, asset.Ticker, alphavantage.OutputCompact)
	if err != nil {
		return "", err
	}
	if len(bars) == 0 {
		return "", fmt.Errorf("no data for %s", asset.Ticker)
	}
	if e.cfg.Mode == ModeDaily {
		// Rows are newest first.
		bars = bars[:1]
	}

	rows := make([]model.RawPriceRow, len(bars))
	for i, bar := range bars {
		rows[i] = model.NewRawPriceRow(bar, asset, false)
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(&rows, &buf); err != nil {
		return "", fmt.Errorf("encode csv: %w", err)
	}

	name := objstore.RawPath(e.cfg.Mode, Source, asset, runDate)
	uri, err := e.store.Put(ctx, name, buf.Bytes(), objstore.Object{
		ContentType: "text/csv",
		Metadata: map[string]string{
			"ticker_symbol": asset.Ticker,
			"exchange":      asset.Exchange,
			"country":       asset.Country,
			"mode":          e.cfg.Mode,
			"run_date":      runDate,
			"source":        Source,
			"row_count":     strconv.Itoa(len(rows)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	e.logger.Info("extracted symbol", "symbol", asset.Ticker, "rows", len(rows), "uri", uri)
	return uri, nil
}

func (e *Extractor) writeManifest(ctx context.Context, m *model.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	name := objstore.ManifestPath(m.Mode, m.RunDate)
	uri, err := e.store.Put(ctx, name, data, objstore.Object{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload manifest %s: %w", name, err)
	}
	e.logger.Info("manifest written", "uri", uri, "success", len(m.Results.Success), "failed", len(m.Results.Failed))
	return nil
}
