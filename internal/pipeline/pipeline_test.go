package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/objstore"
	"github.com/rickgao/financemonitor/internal/warehouse/warehousetest"
)

type fakeBars struct {
	mu    sync.Mutex
	bars  map[string][]model.DailyBar
	errs  map[string]error
	calls []string
}

func (f *fakeBars) DailyBars(ctx context.Context, symbol, outputSize string) ([]model.DailyBar, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol+":"+outputSize)
	f.mu.Unlock()
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.bars[symbol], nil
}

func sampleBars() []model.DailyBar {
	return []model.DailyBar{
		{Timestamp: "2025-10-22", Open: 150, High: 152, Low: 149, Close: 151.5, Volume: 1000000},
		{Timestamp: "2025-10-21", Open: 148, High: 150, Low: 147, Close: 149.5, Volume: 950000},
		{Timestamp: "2025-10-20", Open: 149, High: 151, Low: 148.5, Close: 150.5, Volume: 1100000},
	}
}

func newStore(t *testing.T) *objstore.FS {
	t.Helper()
	store, err := objstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	return store
}

func TestRunDate(t *testing.T) {
	now := time.Date(2025, 10, 22, 23, 30, 0, 0, time.FixedZone("ART", -3*3600))
	if got := RunDate("", now); got != "2025-10-23" {
		t.Errorf("RunDate(\"\") = %s, want 2025-10-23 (UTC)", got)
	}
	if got := RunDate("2025-01-02", now); got != "2025-01-02" {
		t.Errorf("RunDate = %s, want 2025-01-02", got)
	}
}

func TestActiveAssets(t *testing.T) {
	wh := warehousetest.New()
	wh.QueryResult = [][]string{{"AAPL", "US", "NASDAQ"}, {"GOOGL", "US", "NASDAQ"}, {""}}

	assets := ActiveAssets(context.Background(), wh, "dim_asset", testLogger())
	if len(assets) != 2 {
		t.Fatalf("len = %d, want 2", len(assets))
	}
	if assets[0] != (model.Asset{Ticker: "AAPL", Country: "US", Exchange: "NASDAQ"}) {
		t.Errorf("assets[0] = %+v", assets[0])
	}

	q := wh.Queries[0]
	if !strings.Contains(q, "`test-project.test_dataset.dim_asset`") || !strings.Contains(q, "is_active = TRUE") {
		t.Errorf("query = %s", q)
	}
}

func TestActiveAssetsQueryError(t *testing.T) {
	wh := warehousetest.New()
	wh.QueryErr = warehousetest.ErrInjected

	if assets := ActiveAssets(context.Background(), wh, "dim_asset", testLogger()); len(assets) != 0 {
		t.Errorf("assets = %v, want none", assets)
	}
}

func TestExtractorRun(t *testing.T) {
	wh := warehousetest.New()
	wh.QueryResult = [][]string{{"AAPL", "US", "NASDAQ"}, {"INVALID", "US", "NASDAQ"}, {"MSFT", "US", "NYSE"}}
	bars := &fakeBars{
		bars: map[string][]model.DailyBar{"AAPL": sampleBars(), "MSFT": sampleBars()},
		errs: map[string]error{"INVALID": errors.New("alphavantage: Invalid API call")},
	}
	store := newStore(t)

	e := NewExtractor(ExtractorConfig{Mode: ModeDaily, RunDate: "2025-10-22", AssetsTable: "dim_asset", Concurrency: 2}, bars, wh, store, testLogger())
	manifest, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(manifest.Results.Success) != 2 || len(manifest.Results.Failed) != 1 || manifest.Results.Total != 3 {
		t.Errorf("results = %+v", manifest.Results)
	}
	if manifest.Results.Failed[0].Symbol != "INVALID" || manifest.Results.Failed[0].Error == "" {
		t.Errorf("failed = %+v", manifest.Results.Failed[0])
	}

	name := "raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv"
	if manifest.Results.Success[0].GCSURI != store.URI(name) {
		t.Errorf("uri = %s, want %s", manifest.Results.Success[0].GCSURI, store.URI(name))
	}

	data, err := store.Get(context.Background(), name)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 row in daily mode", len(lines))
	}
	if lines[0] != "timestamp,open,high,low,close,volume,ticker_symbol,exchange_name,country,is_adjusted" {
		t.Errorf("header = %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2025-10-22,") || !strings.HasSuffix(lines[1], ",AAPL,NASDAQ,US,false") {
		t.Errorf("row = %s", lines[1])
	}

	attrs, err := store.Attributes(name)
	if err != nil {
		t.Fatalf("Attributes failed: %v", err)
	}
	if attrs.ContentType != "text/csv" || attrs.Metadata["ticker_symbol"] != "AAPL" || attrs.Metadata["row_count"] != "1" {
		t.Errorf("attributes = %+v", attrs)
	}

	raw, err := store.Get(context.Background(), "manifests/daily/2025-10-22.json")
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("manifest is not JSON: %v", err)
	}
	for _, key := range []string{"run_date", "mode", "extracted_at", "results"} {
		if _, ok := stored[key]; !ok {
			t.Errorf("manifest missing %q", key)
		}
	}

	for _, call := range bars.calls {
		if !strings.HasSuffix(call, ":compact") {
			t.Errorf("call = %s, want compact output", call)
		}
	}
}

func TestExtractorBackfillKeepsAllRows(t *testing.T) {
	wh := warehousetest.New()
	wh.QueryResult = [][]string{{"AAPL", "US", "NASDAQ"}}
	bars := &fakeBars{bars: map[string][]model.DailyBar{"AAPL": sampleBars()}}
	store := newStore(t)

	e := NewExtractor(ExtractorConfig{Mode: ModeBackfill, RunDate: "2025-10-22", AssetsTable: "dim_asset"}, bars, wh, store, testLogger())
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := store.Get(context.Background(), "raw/backfill/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 4 {
		t.Errorf("lines = %d, want header + 3 rows", len(lines))
	}
}

func TestExtractorNoSuccess(t *testing.T) {
	tests := []struct {
		name   string
		assets [][]string
		errs   map[string]error
	}{
		{"no symbols", nil, nil},
		{"all failed", [][]string{{"AAPL", "US", "NASDAQ"}}, map[string]error{"AAPL": errors.New("rate limited")}},
		{"empty data", [][]string{{"AAPL", "US", "NASDAQ"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := warehousetest.New()
			wh.QueryResult = tt.assets
			e := NewExtractor(ExtractorConfig{RunDate: "2025-10-22", AssetsTable: "dim_asset"}, &fakeBars{errs: tt.errs}, wh, newStore(t), testLogger())

			_, err := e.Run(context.Background())
			if !errors.Is(err, ErrNoSuccess) {
				t.Errorf("error = %v, want ErrNoSuccess", err)
			}
			if ExitCode(err) != 1 {
				t.Errorf("ExitCode = %d, want 1", ExitCode(err))
			}
		})
	}
}

func writeRaw(t *testing.T, store objstore.Store, name string) string {
	t.Helper()
	csv := "timestamp,open,high,low,close,volume,ticker_symbol,exchange_name,country,is_adjusted\n" +
		"2025-10-22,150,152,149,151.5,1000000,AAPL,NASDAQ,US,false\n"
	uri, err := store.Put(context.Background(), name, []byte(csv), objstore.Object{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	return uri
}

func writeManifest(t *testing.T, store objstore.Store, m model.Manifest) {
	t.Helper()
	data, _ := json.Marshal(m)
	if _, err := store.Put(context.Background(), objstore.ManifestPath(m.Mode, m.RunDate), data, objstore.Object{}); err != nil {
		t.Fatalf("Put manifest failed: %v", err)
	}
}

func TestLoaderFromManifest(t *testing.T) {
	store := newStore(t)
	wh := warehousetest.New()

	aapl := writeRaw(t, store, "raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv")
	writeRaw(t, store, "raw/daily/alphavantage/US_NASDAQ_GOOGL/2025-10-22.csv")
	writeManifest(t, store, model.Manifest{
		RunDate: "2025-10-22",
		Mode:    ModeDaily,
		Results: model.ManifestResults{Success: []model.ManifestEntry{{Symbol: "AAPL", GCSURI: aapl}}, Total: 1},
	})

	l := NewLoader(LoaderConfig{Mode: ModeDaily, RunDate: "2025-10-22", Table: "daily_prices", MoveProcessed: true}, wh, store, testLogger())
	summary, err := l.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(summary.Loaded) != 1 || summary.Rows != 1 {
		t.Errorf("summary = %+v, want 1 file and 1 row", summary)
	}
	rows := wh.CSVLoads["daily_prices"]
	if len(rows) != 1 || rows[0][6] != "AAPL" {
		t.Errorf("loaded rows = %v", rows)
	}
	schema := wh.CSVSchemas["daily_prices"]
	if len(schema) != len(PriceSchema) || schema[0].Name != "timestamp" {
		t.Errorf("schema = %v", schema)
	}

	if _, err := store.Get(context.Background(), "processed/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv"); err != nil {
		t.Errorf("file not moved to processed/: %v", err)
	}
	if _, err := store.Get(context.Background(), "raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv"); !errors.Is(err, objstore.ErrNotExist) {
		t.Errorf("raw file still present: %v", err)
	}
}

func TestLoaderListsWithoutManifest(t *testing.T) {
	store := newStore(t)
	wh := warehousetest.New()

	writeRaw(t, store, "raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv")
	writeRaw(t, store, "raw/daily/alphavantage/US_NYSE_MSFT/2025-10-22.csv")
	writeRaw(t, store, "raw/daily/alphavantage/US_NYSE_MSFT/2025-10-21.csv")
	writeRaw(t, store, "raw/backfill/alphavantage/US_NYSE_MSFT/2025-10-22.csv")

	l := NewLoader(LoaderConfig{Mode: ModeDaily, RunDate: "2025-10-22", Table: "daily_prices"}, wh, store, testLogger())
	summary, err := l.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Loaded) != 2 {
		t.Errorf("loaded = %v, want 2 files", summary.Loaded)
	}

	if _, err := store.Get(context.Background(), "raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv"); err != nil {
		t.Errorf("file moved without move_processed: %v", err)
	}
}

func TestLoaderURILoad(t *testing.T) {
	store := newStore(t)
	wh := warehousetest.New()
	writeManifest(t, store, model.Manifest{
		RunDate: "2025-10-22",
		Mode:    ModeDaily,
		Results: model.ManifestResults{Success: []model.ManifestEntry{
			{Symbol: "AAPL", GCSURI: "gs://bucket/raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv"},
			{Symbol: "BAD", GCSURI: "gs://bucket/raw/daily/alphavantage/US_NASDAQ_BAD/2025-10-22.csv"},
		}},
	})
	wh.URIErr = func(uri string) error {
		if strings.Contains(uri, "BAD") {
			return fmt.Errorf("load failed: %w", warehousetest.ErrInjected)
		}
		return nil
	}

	l := NewLoader(LoaderConfig{Mode: ModeDaily, RunDate: "2025-10-22", Table: "daily_prices"}, wh, store, testLogger())
	summary, err := l.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Loaded) != 1 || len(summary.Failed) != 1 {
		t.Errorf("summary = %+v, want 1 loaded, 1 failed", summary)
	}
	if len(wh.URILoads) != 1 || wh.URILoads[0].Load.SkipLeadingRows != 1 || !wh.URILoads[0].Load.AllowFieldAddition {
		t.Errorf("uri loads = %+v", wh.URILoads)
	}
}

func TestLoaderWithoutURILoaderRejectsForeignURIs(t *testing.T) {
	store := newStore(t)
	wh := warehousetest.New()
	writeManifest(t, store, model.Manifest{
		RunDate: "2025-10-22",
		Mode:    ModeDaily,
		Results: model.ManifestResults{Success: []model.ManifestEntry{
			{Symbol: "AAPL", GCSURI: "gs://bucket/raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv"},
		}},
	})

	l := NewLoader(LoaderConfig{Mode: ModeDaily, RunDate: "2025-10-22", Table: "daily_prices"}, warehousetest.WithoutURILoader(wh), store, testLogger())
	if _, err := l.Run(context.Background()); !errors.Is(err, ErrNoSuccess) {
		t.Errorf("error = %v, want ErrNoSuccess", err)
	}
}

func TestLoaderNothingToLoad(t *testing.T) {
	l := NewLoader(LoaderConfig{Mode: ModeDaily, RunDate: "2025-10-22", Table: "daily_prices"}, warehousetest.New(), newStore(t), testLogger())
	if _, err := l.Run(context.Background()); !errors.Is(err, ErrNoSuccess) {
		t.Errorf("error = %v, want ErrNoSuccess", err)
	}
}
