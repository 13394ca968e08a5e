package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestManifestJSONShape(t *testing.T) {
	m := Manifest{
		RunDate: "2025-10-22",
		Mode:    "daily",
		Results: ManifestResults{
			Success: []ManifestEntry{{Symbol: "AAPL", GCSURI: "gs://b/raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv"}},
			Failed:  []ManifestEntry{{Symbol: "BAD", Error: "no data"}},
			Total:   2,
		},
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"run_date", "mode", "extracted_at", "results"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("manifest JSON missing %q", key)
		}
	}
	results := raw["results"].(map[string]any)
	if results["total"].(float64) != 2 {
		t.Errorf("results.total = %v, want 2", results["total"])
	}
	failed := results["failed"].([]any)[0].(map[string]any)
	if _, ok := failed["gcs_uri"]; ok {
		t.Error("failed entry should omit gcs_uri")
	}
}

func TestManifestSuccessURIs(t *testing.T) {
	m := Manifest{Results: ManifestResults{Success: []ManifestEntry{
		{Symbol: "A", GCSURI: "gs://b/a.csv"},
		{Symbol: "B"},
		{Symbol: "C", GCSURI: "gs://b/c.csv"},
	}}}

	uris := m.SuccessURIs()
	if len(uris) != 2 {
		t.Fatalf("len(SuccessURIs()) = %d, want 2", len(uris))
	}
	if uris[1] != "gs://b/c.csv" {
		t.Errorf("uris[1] = %q, want %q", uris[1], "gs://b/c.csv")
	}
}

func TestQuoteJSON(t *testing.T) {
	q := Quote{Ticker: "AAPL", Price: decimal.RequireFromString("151.50"), Market: "US", Date: "2025-10-22"}

	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"ticker":"AAPL","price":"151.5","market":"US","date":"2025-10-22"}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestNewRawPriceRow(t *testing.T) {
	bar := DailyBar{Timestamp: "2025-10-22", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100}
	row := NewRawPriceRow(bar, Asset{Ticker: "AAPL", Country: "US", Exchange: "NASDAQ"}, false)

	if row.TickerSymbol != "AAPL" || row.ExchangeName != "NASDAQ" || row.Country != "US" {
		t.Errorf("row asset = %+v, want AAPL/NASDAQ/US", row)
	}
	if row.Close != 1.5 || row.Volume != 100 {
		t.Errorf("row values = %+v, want close 1.5 volume 100", row)
	}
}
