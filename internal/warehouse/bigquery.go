package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/bigquery/storage/managedwriter"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQuery is a Warehouse backed by a BigQuery project.
type BigQuery struct {
	client  *bigquery.Client
	project string
	dataset string
	logger  *slog.Logger
	opts    []option.ClientOption

	// Storage Write API client, created on first WriteStream.
	streamMu sync.Mutex
	stream   *managedwriter.Client
}

// NewBigQuery opens a BigQuery client for project. dataset is the default
// dataset for bare table names.
func NewBigQuery(ctx context.Context, project, dataset string, logger *slog.Logger, opts ...option.ClientOption) (*BigQuery, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	return &BigQuery{
		client:  client,
		project: project,
		dataset: dataset,
		logger:  logger,
		opts:    opts,
	}, nil
}

func (b *BigQuery) Dialect() Dialect {
	return DialectBigQuery
}

func (b *BigQuery) Ref(table string) string {
	ds, t := splitTable(table, b.dataset)
	return fmt.Sprintf("`%s.%s.%s`", b.project, ds, t)
}

func (b *BigQuery) table(name string) *bigquery.Table {
	ds, t := splitTable(name, b.dataset)
	return b.client.Dataset(ds).Table(t)
}

func (b *BigQuery) LoadCSV(ctx context.Context, load CSVLoad, src io.Reader) (int64, error) {
	rs := bigquery.NewReaderSource(src)
	rs.SourceFormat = bigquery.CSV
	rs.SkipLeadingRows = int64(load.SkipLeadingRows)
	rs.Schema = toBigQuerySchema(load.Schema)

	return b.runLoad(ctx, load, b.table(load.Table).LoaderFrom(rs))
}

// LoadCSVFromURI loads a gs:// object without passing its bytes through this
// process.
func (b *BigQuery) LoadCSVFromURI(ctx context.Context, load CSVLoad, uri string) (int64, error) {
	ref := bigquery.NewGCSReference(uri)
	ref.SourceFormat = bigquery.CSV
	ref.SkipLeadingRows = int64(load.SkipLeadingRows)
	ref.Schema = toBigQuerySchema(load.Schema)

	return b.runLoad(ctx, load, b.table(load.Table).LoaderFrom(ref))
}

func (b *BigQuery) runLoad(ctx context.Context, load CSVLoad, loader *bigquery.Loader) (int64, error) {
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateIfNeeded
	if load.AllowFieldAddition {
		loader.SchemaUpdateOptions = []string{"ALLOW_FIELD_ADDITION"}
	}
	return b.waitLoad(ctx, load.Table, loader)
}

func (b *BigQuery) LoadJSON(ctx context.Context, table string, schema Schema, rows []map[string]any) (int64, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return 0, fmt.Errorf("encode row: %w", err)
		}
	}

	rs := bigquery.NewReaderSource(&buf)
	rs.SourceFormat = bigquery.JSON
	rs.Schema = toBigQuerySchema(schema)

	loader := b.table(table).LoaderFrom(rs)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = bigquery.WriteTruncate

	return b.waitLoad(ctx, table, loader)
}

func (b *BigQuery) waitLoad(ctx context.Context, table string, loader *bigquery.Loader) (int64, error) {
	job, err := loader.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("start load into %s: %w", table, err)
	}
	b.logger.Debug("bigquery load job started", "job_id", job.ID(), "table", table)

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("load job %s: %w", job.ID(), err)
	}

	var rows int64
	if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
		rows = stats.OutputRows
	}
	return rows, nil
}

func (b *BigQuery) SetExpiry(ctx context.Context, table string, at time.Time) error {
	if _, err := b.table(table).Update(ctx, bigquery.TableMetadataToUpdate{ExpirationTime: at}, ""); err != nil {
		return fmt.Errorf("set expiry of %s: %w", table, err)
	}
	return nil
}

func (b *BigQuery) Exec(ctx context.Context, sql string) (int64, error) {
	job, err := b.client.Query(sql).Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("start query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for query job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("query job %s: %w", job.ID(), err)
	}

	var affected int64
	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		affected = stats.NumDMLAffectedRows
	}
	return affected, nil
}

func (b *BigQuery) DropTable(ctx context.Context, table string) error {
	err := b.table(table).Delete(ctx)
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete table %s: %w", table, err)
	}
	return nil
}

func (b *BigQuery) QueryStrings(ctx context.Context, sql string) ([][]string, error) {
	it, err := b.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}

	var out [][]string
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		out = append(out, formatValues(row))
	}
	return out, nil
}

func (b *BigQuery) Ping(ctx context.Context) error {
	if _, err := b.client.Dataset(b.dataset).Metadata(ctx); err != nil {
		return fmt.Errorf("get dataset %s: %w", b.dataset, err)
	}
	return nil
}

func (b *BigQuery) Close() error {
	b.streamMu.Lock()
	defer b.streamMu.Unlock()

	var errs []error
	if b.stream != nil {
		errs = append(errs, b.stream.Close())
		b.stream = nil
	}
	errs = append(errs, b.client.Close())
	return errors.Join(errs...)
}

func toBigQuerySchema(s Schema) bigquery.Schema {
	if len(s) == 0 {
		return nil
	}
	out := make(bigquery.Schema, len(s))
	for i, f := range s {
		out[i] = &bigquery.FieldSchema{Name: f.Name, Type: bigquery.FieldType(f.Type)}
	}
	return out
}

func formatValues[T any](row []T) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if any(v) == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}

var (
	_ Warehouse = (*BigQuery)(nil)
	_ URILoader = (*BigQuery)(nil)
)
