package writer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/warehouse"
)

// ingestionLayout is the text form of ingestion timestamps in staging rows.
const ingestionLayout = "2006-01-02T15:04:05.999999Z07:00"

var fixedIncomeStagingSchema = warehouse.StringSchema(
	"ticker_symbol", "issue_date", "payment_date", "amount_at_payment", "rate", "type",
)

var dailyValuesStagingSchema = append(warehouse.StringSchema(
	"ticker_symbol", "snapshot_date", "ingestion_timestamp", "maturity_value", "action_rate",
	"price_per_100_nominal_value", "period_yield", "annual_percentage_rate",
	"effective_annual_rate", "effective_monthly_rate",
), warehouse.Field{Name: "modified_duration_in_days", Type: warehouse.Integer})

// FixedIncomeResult reports rows affected by a FixedIncomeWriter run.
type FixedIncomeResult struct {
	Merged   int64 `json:"merged"`
	Inserted int64 `json:"inserted"`
	DryRun   bool  `json:"dry_run"`
}

// FixedIncomeWriter writes treasury report rows through staging tables:
// instruments are merged into the fixed-income table and daily snapshots are
// appended to the daily-values table.
type FixedIncomeWriter struct {
	wh               warehouse.Warehouse
	stager           *warehouse.Stager
	fixedIncomeTable string
	dailyValuesTable string
	logger           *slog.Logger
}

// NewFixedIncomeWriter creates a FixedIncomeWriter. Staging tables expire
// after ttl.
func NewFixedIncomeWriter(wh warehouse.Warehouse, fixedIncomeTable, dailyValuesTable string, ttl time.Duration, logger *slog.Logger) *FixedIncomeWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FixedIncomeWriter{
		wh:               wh,
		stager:           warehouse.NewStager(wh, ttl, logger),
		fixedIncomeTable: fixedIncomeTable,
		dailyValuesTable: dailyValuesTable,
		logger:           logger,
	}
}

// Write loads report. With dryRun set it only logs what would be written.
func (w *FixedIncomeWriter) Write(ctx context.Context, report *model.TreasuryReport, dryRun bool) (FixedIncomeResult, error) {
	res := FixedIncomeResult{DryRun: dryRun}
	if report == nil || (len(report.FixedIncome) == 0 && len(report.DailyValues) == 0) {
		w.logger.Info("no treasury rows to load")
		return res, nil
	}

	fiRef := w.wh.Ref(w.fixedIncomeTable)
	dvRef := w.wh.Ref(w.dailyValuesTable)

	if dryRun {
		w.logger.Info("dry run: skipping warehouse writes",
			"merge_rows", len(report.FixedIncome),
			"merge_table", fiRef,
			"insert_rows", len(report.DailyValues),
			"insert_table", dvRef,
		)
		return res, nil
	}

	dialect := w.wh.Dialect()

	if len(report.FixedIncome) > 0 {
		rows := make([]map[string]any, len(report.FixedIncome))
		for i, fi := range report.FixedIncome {
			rows[i] = fixedIncomeRow(fi)
		}
		affected, err := w.stager.LoadAndTransform(ctx, fixedIncomeStagingSchema, rows, warehouse.Transform{
			Name: "merge fixed income",
			SQL:  func(staging string) string { return mergeFixedIncomeSQL(dialect, fiRef, staging) },
		})
		if err != nil {
			return res, fmt.Errorf("merge into %s: %w", w.fixedIncomeTable, err)
		}
		res.Merged = sum(affected)
	}

	if len(report.DailyValues) > 0 {
		rows := make([]map[string]any, len(report.DailyValues))
		for i, dv := range report.DailyValues {
			rows[i] = dailyValueRow(dv)
		}
		affected, err := w.stager.LoadAndTransform(ctx, dailyValuesStagingSchema, rows, warehouse.Transform{
			Name: "insert daily values",
			SQL:  func(staging string) string { return insertDailyValuesSQL(dialect, dvRef, staging) },
		})
		if err != nil {
			return res, fmt.Errorf("insert into %s: %w", w.dailyValuesTable, err)
		}
		res.Inserted = sum(affected)
	}

	w.logger.Info("treasury report loaded", "merged", res.Merged, "inserted", res.Inserted)
	return res, nil
}

func fixedIncomeRow(fi model.FixedIncome) map[string]any {
	return map[string]any{
		"ticker_symbol":     fi.TickerSymbol,
		"issue_date":        fi.IssueDate,
		"payment_date":      fi.PaymentDate,
		"amount_at_payment": fi.AmountAtPayment.String(),
		"rate":              fi.Rate.String(),
		"type":              fi.Type,
	}
}

func dailyValueRow(dv model.DailyValue) map[string]any {
	return map[string]any{
		"ticker_symbol":               dv.TickerSymbol,
		"snapshot_date":               dv.SnapshotDate,
		"ingestion_timestamp":         dv.IngestionTimestamp.UTC().Format(ingestionLayout),
		"maturity_value":              dv.MaturityValue.String(),
		"action_rate":                 dv.ActionRate.String(),
		"price_per_100_nominal_value": dv.PricePer100NominalValue.String(),
		"period_yield":                dv.PeriodYield.String(),
		"annual_percentage_rate":      dv.AnnualPercentageRate.String(),
		"effective_annual_rate":       dv.EffectiveAnnualRate.String(),
		"effective_monthly_rate":      dv.EffectiveMonthlyRate.String(),
		"modified_duration_in_days":   dv.ModifiedDurationInDays,
	}
}

func sum(ns []int64) int64 {
	var total int64
	for _, n := range ns {
		total += n
	}
	return total
}
