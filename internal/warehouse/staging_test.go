package warehouse_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/financemonitor/internal/warehouse"
	"github.com/rickgao/financemonitor/internal/warehouse/warehousetest"
)

func TestLoadAndTransform(t *testing.T) {
	fake := warehousetest.New()
	stager := warehouse.NewStager(fake, time.Hour, nil)

	schema := warehouse.StringSchema("ticker_symbol", "rate")
	rows := []map[string]any{
		{"ticker_symbol": "S31O5", "rate": "2.1"},
		{"ticker_symbol": "S28N5", "rate": "2.3"},
	}

	start := time.Now()
	affected, err := stager.LoadAndTransform(context.Background(), schema, rows,
		warehouse.Transform{Name: "merge", SQL: func(ref string) string { return "MERGE target USING " + ref }},
		warehouse.Transform{Name: "insert", SQL: func(ref string) string { return "INSERT INTO x SELECT * FROM " + ref }},
	)
	if err != nil {
		t.Fatalf("LoadAndTransform failed: %v", err)
	}

	if len(affected) != 2 {
		t.Errorf("len(affected) = %d, want 2", len(affected))
	}
	if len(fake.JSONTables) != 1 {
		t.Fatalf("staging tables = %d, want 1", len(fake.JSONTables))
	}

	var staging string
	for name, loaded := range fake.JSONTables {
		staging = name
		if len(loaded) != 2 {
			t.Errorf("staged rows = %d, want 2", len(loaded))
		}
	}
	if !strings.HasPrefix(staging, warehouse.StagingPrefix) {
		t.Errorf("staging table = %q, want prefix %q", staging, warehouse.StagingPrefix)
	}
	if len(staging) != len(warehouse.StagingPrefix)+32 {
		t.Errorf("staging table = %q, want 32 hex chars after prefix", staging)
	}

	exp, ok := fake.Expiries[staging]
	if !ok {
		t.Fatal("staging table expiry not set")
	}
	if exp.Before(start.Add(time.Hour)) || exp.After(time.Now().Add(time.Hour)) {
		t.Errorf("expiry = %v, want about one hour from now", exp)
	}

	execs, dropped := fake.Snapshot()
	if len(execs) != 2 {
		t.Fatalf("execs = %d, want 2", len(execs))
	}
	wantRef := fake.Ref(staging)
	if execs[0] != "MERGE target USING "+wantRef {
		t.Errorf("execs[0] = %q", execs[0])
	}
	if len(dropped) != 1 || dropped[0] != staging {
		t.Errorf("dropped = %v, want [%s]", dropped, staging)
	}
}

func TestLoadAndTransformDropsOnFailure(t *testing.T) {
	fake := warehousetest.New()
	fake.ExecErr = warehousetest.ErrInjected
	stager := warehouse.NewStager(fake, time.Hour, nil)

	_, err := stager.LoadAndTransform(context.Background(), warehouse.StringSchema("a"),
		[]map[string]any{{"a": "1"}},
		warehouse.Transform{Name: "merge", SQL: func(ref string) string { return "MERGE " + ref }},
		warehouse.Transform{Name: "insert", SQL: func(ref string) string { return "INSERT " + ref }},
	)
	if !errors.Is(err, warehousetest.ErrInjected) {
		t.Fatalf("error = %v, want injected failure", err)
	}

	execs, dropped := fake.Snapshot()
	if len(execs) != 1 {
		t.Errorf("execs = %d, want 1 (stop after first failure)", len(execs))
	}
	if len(dropped) != 1 {
		t.Errorf("dropped = %d, want 1", len(dropped))
	}
}

func TestLoadAndTransformLoadFailure(t *testing.T) {
	fake := warehousetest.New()
	fake.LoadErr = warehousetest.ErrInjected
	stager := warehouse.NewStager(fake, time.Hour, nil)

	_, err := stager.LoadAndTransform(context.Background(), warehouse.StringSchema("a"), nil,
		warehouse.Transform{Name: "merge", SQL: func(ref string) string { return "MERGE " + ref }},
	)
	if err == nil {
		t.Fatal("LoadAndTransform() error = nil, want error")
	}

	execs, dropped := fake.Snapshot()
	if len(execs) != 0 {
		t.Errorf("execs = %d, want 0", len(execs))
	}
	if len(dropped) != 1 {
		t.Errorf("dropped = %d, want 1", len(dropped))
	}
}

func TestLoadAndTransformExpiryFailure(t *testing.T) {
	fake := warehousetest.New()
	fake.ExpiryErr = warehousetest.ErrInjected
	stager := warehouse.NewStager(fake, time.Hour, nil)

	affected, err := stager.LoadAndTransform(context.Background(), warehouse.StringSchema("a"),
		[]map[string]any{{"a": "1"}},
		warehouse.Transform{Name: "merge", SQL: func(ref string) string { return "MERGE " + ref }},
	)
	if !errors.Is(err, warehousetest.ErrInjected) {
		t.Fatalf("error = %v, want injected failure", err)
	}
	if affected != nil {
		t.Errorf("affected = %v, want nil", affected)
	}

	execs, dropped := fake.Snapshot()
	if len(execs) != 0 {
		t.Errorf("execs = %d, want 0", len(execs))
	}
	if len(dropped) != 1 {
		t.Errorf("dropped = %d, want 1", len(dropped))
	}
}

func TestNewStagingNameUnique(t *testing.T) {
	a, b := warehouse.NewStagingName(), warehouse.NewStagingName()
	if a == b {
		t.Errorf("NewStagingName returned %q twice", a)
	}
	if strings.Contains(a, "-") {
		t.Errorf("NewStagingName() = %q, must not contain dashes", a)
	}
}
