// Package warehouse loads rows into the analytical warehouse and runs SQL
// against it.
//
// BigQuery is the production backend. Postgres implements the same interface
// for local development; callers that emit SQL switch on Dialect.
package warehouse

import (
	"context"
	"io"
	"strings"
	"time"
)

// FieldType names a column type. Values match BigQuery's legacy type names.
type FieldType string

// Column types.
const (
	String    FieldType = "STRING"
	Integer   FieldType = "INTEGER"
	Float     FieldType = "FLOAT"
	Numeric   FieldType = "NUMERIC"
	Boolean   FieldType = "BOOLEAN"
	Date      FieldType = "DATE"
	Timestamp FieldType = "TIMESTAMP"
)

// Field is a column definition.
type Field struct {
	Name string
	Type FieldType
}

// Schema is an ordered list of columns.
type Schema []Field

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// StringSchema returns a schema of STRING columns, used for staging tables
// whose values are cast by the transform queries.
func StringSchema(names ...string) Schema {
	s := make(Schema, len(names))
	for i, n := range names {
		s[i] = Field{Name: n, Type: String}
	}
	return s
}

// Dialect identifies the SQL flavor of a Warehouse.
type Dialect string

// Supported dialects.
const (
	DialectBigQuery Dialect = "bigquery"
	DialectPostgres Dialect = "postgres"
)

// CSVLoad describes an append load of CSV data.
type CSVLoad struct {
	Table              string
	Schema             Schema
	SkipLeadingRows    int
	AllowFieldAddition bool
}

// Warehouse is the set of operations the writers and jobs need.
//
// Table names are bare ("daily_prices") or dataset-qualified
// ("financeTools.byma_treasuries_fixed_income_daily_values"); bare names resolve against
// the backend's default dataset.
type Warehouse interface {
	Dialect() Dialect
	// Ref returns the quoted, fully qualified reference of table for use in SQL.
	Ref(table string) string
	// LoadCSV appends CSV rows to table and returns the number of rows loaded.
	LoadCSV(ctx context.Context, load CSVLoad, src io.Reader) (int64, error)
	// LoadJSON creates table with schema and fills it with rows.
	LoadJSON(ctx context.Context, table string, schema Schema, rows []map[string]any) (int64, error)
	// SetExpiry marks table for deletion at the given time where supported.
	SetExpiry(ctx context.Context, table string, at time.Time) error
	// Exec runs a statement and returns the affected row count when known.
	Exec(ctx context.Context, sql string) (int64, error)
	// DropTable deletes table. A missing table is not an error.
	DropTable(ctx context.Context, table string) error
	// QueryStrings runs a query and returns every value formatted as a string.
	QueryStrings(ctx context.Context, sql string) ([][]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// URILoader is implemented by warehouses that load directly from object
// storage URIs.
type URILoader interface {
	LoadCSVFromURI(ctx context.Context, load CSVLoad, uri string) (int64, error)
}

// splitTable resolves a table name against a default dataset.
func splitTable(name, defaultDataset string) (dataset, table string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return defaultDataset, name
}
