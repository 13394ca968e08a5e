package warehouse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Warehouse backed by a PostgreSQL database. Datasets map to
// schemas. MERGE statements require PostgreSQL 15 or later.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
	logger *slog.Logger
}

// NewPostgres wraps an open pool. schema is the default schema for bare
// table names.
func NewPostgres(pool *pgxpool.Pool, schema string, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	if schema == "" {
		schema = "public"
	}
	return &Postgres{pool: pool, schema: schema, logger: logger}
}

func (p *Postgres) Dialect() Dialect {
	return DialectPostgres
}

func (p *Postgres) ident(table string) pgx.Identifier {
	s, t := splitTable(table, p.schema)
	return pgx.Identifier{s, t}
}

func (p *Postgres) Ref(table string) string {
	return p.ident(table).Sanitize()
}

// LoadCSV streams src through COPY. Only a single header row can be skipped
// and the schema must match existing columns; AllowFieldAddition is ignored.
func (p *Postgres) LoadCSV(ctx context.Context, load CSVLoad, src io.Reader) (int64, error) {
	sql, err := copyCSVSQL(p.Ref(load.Table), load)
	if err != nil {
		return 0, err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Conn().PgConn().CopyFrom(ctx, src, sql)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", load.Table, err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) LoadJSON(ctx context.Context, table string, schema Schema, rows []map[string]any) (int64, error) {
	if _, err := p.pool.Exec(ctx, createTableSQL(p.Ref(table), schema)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", table, err)
	}

	names := schema.Names()
	values := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(names))
		for j, n := range names {
			vals[j] = row[n]
		}
		values[i] = vals
	}

	n, err := p.pool.CopyFrom(ctx, p.ident(table), names, pgx.CopyFromRows(values))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// SetExpiry is a no-op: PostgreSQL has no table TTL, staging tables rely on
// the explicit drop.
func (p *Postgres) SetExpiry(ctx context.Context, table string, at time.Time) error {
	p.logger.Debug("table expiry not supported by postgres", "table", table, "at", at)
	return nil
}

func (p *Postgres) Exec(ctx context.Context, sql string) (int64, error) {
	tag, err := p.pool.Exec(ctx, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) DropTable(ctx context.Context, table string) error {
	if _, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+p.Ref(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	return nil
}

func (p *Postgres) QueryStrings(ctx context.Context, sql string) ([][]string, error) {
	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		out = append(out, formatValues(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// postgresType maps a column type to its PostgreSQL equivalent.
func postgresType(t FieldType) string {
	switch t {
	case Integer:
		return "BIGINT"
	case Float:
		return "DOUBLE PRECISION"
	case Numeric:
		return "NUMERIC"
	case Boolean:
		return "BOOLEAN"
	case Date:
		return "DATE"
	case Timestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func createTableSQL(ref string, schema Schema) string {
	cols := make([]string, len(schema))
	for i, f := range schema {
		cols[i] = pgx.Identifier{f.Name}.Sanitize() + " " + postgresType(f.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", ref, strings.Join(cols, ", "))
}

func copyCSVSQL(ref string, load CSVLoad) (string, error) {
	if load.SkipLeadingRows > 1 {
		return "", fmt.Errorf("postgres copy can skip at most one header row, got %d", load.SkipLeadingRows)
	}

	var cols string
	if len(load.Schema) > 0 {
		quoted := make([]string, len(load.Schema))
		for i, n := range load.Schema.Names() {
			quoted[i] = pgx.Identifier{n}.Sanitize()
		}
		cols = " (" + strings.Join(quoted, ", ") + ")"
	}

	header := "false"
	if load.SkipLeadingRows == 1 {
		header = "true"
	}
	return fmt.Sprintf("COPY %s%s FROM STDIN WITH (FORMAT csv, HEADER %s)", ref, cols, header), nil
}

var _ Warehouse = (*Postgres)(nil)
