// Package warehousetest provides an in-memory warehouse for tests.
package warehousetest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/warehouse"
)

// URILoad records a LoadCSVFromURI call.
type URILoad struct {
	Load warehouse.CSVLoad
	URI  string
}

// Fake records every call. Set the *Err fields to inject failures.
type Fake struct {
	mu sync.Mutex

	DialectName warehouse.Dialect

	CSVLoads   map[string][][]string // table -> records after skipped rows
	CSVSchemas map[string]warehouse.Schema
	URILoads   []URILoad
	JSONTables map[string][]map[string]any
	Expiries   map[string]time.Time
	Execs      []string
	Dropped    []string
	Queries    []string
	Streams    map[string][]model.StreamRecord

	// QueryResult is returned by QueryStrings.
	QueryResult [][]string

	LoadErr   error
	URIErr    func(uri string) error
	ExpiryErr error
	ExecErr   error
	QueryErr  error
	StreamErr error
	PingErr   error
}

// New returns a BigQuery-dialect fake.
func New() *Fake {
	return &Fake{
		DialectName: warehouse.DialectBigQuery,
		CSVLoads:    make(map[string][][]string),
		CSVSchemas:  make(map[string]warehouse.Schema),
		JSONTables:  make(map[string][]map[string]any),
		Expiries:    make(map[string]time.Time),
		Streams:     make(map[string][]model.StreamRecord),
	}
}

func (f *Fake) Dialect() warehouse.Dialect {
	return f.DialectName
}

func (f *Fake) Ref(table string) string {
	return "`test-project." + qualify(table) + "`"
}

func qualify(table string) string {
	if strings.Contains(table, ".") {
		return table
	}
	return "test_dataset." + table
}

func (f *Fake) LoadCSV(ctx context.Context, load warehouse.CSVLoad, src io.Reader) (int64, error) {
	if f.LoadErr != nil {
		return 0, f.LoadErr
	}
	records, err := csv.NewReader(src).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse csv: %w", err)
	}
	if load.SkipLeadingRows > len(records) {
		records = nil
	} else {
		records = records[load.SkipLeadingRows:]
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.CSVLoads[load.Table] = append(f.CSVLoads[load.Table], records...)
	f.CSVSchemas[load.Table] = load.Schema
	return int64(len(records)), nil
}

func (f *Fake) LoadCSVFromURI(ctx context.Context, load warehouse.CSVLoad, uri string) (int64, error) {
	if f.URIErr != nil {
		if err := f.URIErr(uri); err != nil {
			return 0, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.URILoads = append(f.URILoads, URILoad{Load: load, URI: uri})
	return 1, nil
}

func (f *Fake) LoadJSON(ctx context.Context, table string, schema warehouse.Schema, rows []map[string]any) (int64, error) {
	if f.LoadErr != nil {
		return 0, f.LoadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JSONTables[table] = rows
	return int64(len(rows)), nil
}

func (f *Fake) SetExpiry(ctx context.Context, table string, at time.Time) error {
	if f.ExpiryErr != nil {
		return f.ExpiryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Expiries[table] = at
	return nil
}

func (f *Fake) Exec(ctx context.Context, sql string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Execs = append(f.Execs, sql)
	if f.ExecErr != nil {
		return 0, f.ExecErr
	}
	return 1, nil
}

func (f *Fake) DropTable(ctx context.Context, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Dropped = append(f.Dropped, table)
	return nil
}

func (f *Fake) QueryStrings(ctx context.Context, sql string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, sql)
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return f.QueryResult, nil
}

func (f *Fake) WriteStream(ctx context.Context, table string, records []model.StreamRecord) (int64, error) {
	if f.StreamErr != nil {
		return 0, f.StreamErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Streams[table] = append(f.Streams[table], records...)
	return int64(len(records)), nil
}

func (f *Fake) Ping(ctx context.Context) error {
	return f.PingErr
}

func (f *Fake) Close() error {
	return nil
}

// Snapshot returns copies of the recorded statements and dropped tables.
func (f *Fake) Snapshot() (execs, dropped []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Execs...), append([]string(nil), f.Dropped...)
}

// WithoutURILoader hides the URILoader and Streamer methods of w.
func WithoutURILoader(w warehouse.Warehouse) warehouse.Warehouse {
	return struct{ warehouse.Warehouse }{w}
}

// ErrInjected is a convenience error for failure injection.
var ErrInjected = errors.New("injected failure")

var (
	_ warehouse.Warehouse = (*Fake)(nil)
	_ warehouse.URILoader = (*Fake)(nil)
	_ warehouse.Streamer  = (*Fake)(nil)
)
