package objstore

import (
	"context"
	"errors"
	"testing"

	"github.com/rickgao/financemonitor/internal/model"
)

func TestLayout(t *testing.T) {
	asset := model.Asset{Ticker: "AAPL", Country: "US", Exchange: "NASDAQ"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"raw path", RawPath("daily", "alphavantage", asset, "2025-10-22"), "raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv"},
		{"raw mode prefix", RawModePrefix("backfill"), "raw/backfill/"},
		{"manifest path", ManifestPath("daily", "2025-10-22"), "manifests/daily/2025-10-22.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestProcessedPath(t *testing.T) {
	got, ok := ProcessedPath("raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv")
	if !ok || got != "processed/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv" {
		t.Errorf("ProcessedPath = %q, %v", got, ok)
	}

	if _, ok := ProcessedPath("manifests/daily/2025-10-22.json"); ok {
		t.Error("ProcessedPath should reject names outside raw/")
	}
}

func TestFSPutGet(t *testing.T) {
	ctx := context.Background()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}

	obj := Object{ContentType: "text/csv", Metadata: map[string]string{"ticker": "AAPL"}}
	uri, err := s.Put(ctx, "raw/daily/a.csv", []byte("x,y\n"), obj)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	name, ok := s.Name(uri)
	if !ok || name != "raw/daily/a.csv" {
		t.Errorf("Name(%q) = %q, %v, want raw/daily/a.csv", uri, name, ok)
	}

	data, err := s.Get(ctx, "raw/daily/a.csv")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "x,y\n" {
		t.Errorf("data = %q, want %q", data, "x,y\n")
	}

	attrs, err := s.Attributes("raw/daily/a.csv")
	if err != nil {
		t.Fatalf("Attributes failed: %v", err)
	}
	if attrs.Metadata["ticker"] != "AAPL" {
		t.Errorf("Metadata[ticker] = %q, want AAPL", attrs.Metadata["ticker"])
	}
}

func TestFSGetMissing(t *testing.T) {
	s, _ := NewFS(t.TempDir())
	_, err := s.Get(context.Background(), "manifests/daily/2025-10-22.json")
	if !errors.Is(err, ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}

func TestFSList(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFS(t.TempDir())

	for _, name := range []string{
		"raw/daily/alphavantage/US_NYSE_IBM/2025-10-22.csv",
		"raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv",
		"raw/backfill/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv",
		"manifests/daily/2025-10-22.json",
	} {
		if _, err := s.Put(ctx, name, []byte("1"), Object{Metadata: map[string]string{"k": "v"}}); err != nil {
			t.Fatalf("Put %s failed: %v", name, err)
		}
	}

	names, err := s.List(ctx, "raw/daily/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{
		"raw/daily/alphavantage/US_NASDAQ_AAPL/2025-10-22.csv",
		"raw/daily/alphavantage/US_NYSE_IBM/2025-10-22.csv",
	}
	if len(names) != len(want) {
		t.Fatalf("List = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestFSMove(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFS(t.TempDir())

	src := "raw/daily/a.csv"
	dst, _ := ProcessedPath(src)
	s.Put(ctx, src, []byte("data"), Object{ContentType: "text/csv"})

	if err := s.Move(ctx, src, dst); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if _, err := s.Get(ctx, src); !errors.Is(err, ErrNotExist) {
		t.Errorf("source still present: %v", err)
	}
	if data, err := s.Get(ctx, dst); err != nil || string(data) != "data" {
		t.Errorf("Get(dst) = %q, %v", data, err)
	}
	if attrs, err := s.Attributes(dst); err != nil || attrs.ContentType != "text/csv" {
		t.Errorf("Attributes(dst) = %+v, %v", attrs, err)
	}
}

func TestFSObjectNames(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"../outside.csv", true},
		{"raw/../../outside.csv", true},
		{"/etc/passwd", true},
		{".", true},
		{"", true},
		{"..foo.csv", false},
		{"raw/..hidden/a.csv", false},
		{"raw/a/../b.csv", false},
	}

	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Put(context.Background(), tt.name, []byte("x"), Object{})
			if (err != nil) != tt.wantErr {
				t.Errorf("Put(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestGCSURI(t *testing.T) {
	g := &GCS{bucket: "financemonitor-data"}

	uri := g.URI("raw/daily/a.csv")
	if uri != "gs://financemonitor-data/raw/daily/a.csv" {
		t.Errorf("URI = %q", uri)
	}
	if name, ok := g.Name(uri); !ok || name != "raw/daily/a.csv" {
		t.Errorf("Name = %q, %v", name, ok)
	}
	if _, ok := g.Name("gs://other/raw/daily/a.csv"); ok {
		t.Error("Name should reject other buckets")
	}
}
