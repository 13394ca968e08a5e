package writer

import (
	"fmt"

	"github.com/rickgao/financemonitor/internal/warehouse"
)

// assetKeyExpr returns the dialect's 64-bit fingerprint of "<ticker>|byma".
func assetKeyExpr(d warehouse.Dialect, col string) string {
	if d == warehouse.DialectPostgres {
		return fmt.Sprintf("('x' || substr(md5(%s || '|byma'), 1, 16))::bit(64)::bigint", col)
	}
	return fmt.Sprintf("FARM_FINGERPRINT(%s || '|byma')", col)
}

func timestampType(d warehouse.Dialect) string {
	if d == warehouse.DialectPostgres {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

// mergeFixedIncomeSQL upserts instrument rows from the staging table.
// Postgres forbids qualifying SET targets, BigQuery accepts either form.
func mergeFixedIncomeSQL(d warehouse.Dialect, target, staging string) string {
	key := assetKeyExpr(d, "S.ticker_symbol")
	return fmt.Sprintf(`MERGE INTO %[1]s T
USING %[2]s S
ON T.asset_key = %[3]s
WHEN MATCHED THEN
  UPDATE SET
    issue_date = CAST(S.issue_date AS DATE),
    payment_date = CAST(S.payment_date AS DATE),
    amount_at_payment = CAST(S.amount_at_payment AS NUMERIC),
    rate = CAST(S.rate AS NUMERIC),
    type = S.type
WHEN NOT MATCHED THEN
  INSERT (asset_key, ticker_symbol, issue_date, payment_date, amount_at_payment, rate, type)
  VALUES (
    %[3]s,
    S.ticker_symbol,
    CAST(S.issue_date AS DATE),
    CAST(S.payment_date AS DATE),
    CAST(S.amount_at_payment AS NUMERIC),
    CAST(S.rate AS NUMERIC),
    S.type
  )`, target, staging, key)
}

// insertDailyValuesSQL appends daily snapshots from the staging table.
func insertDailyValuesSQL(d warehouse.Dialect, target, staging string) string {
	return fmt.Sprintf(`INSERT INTO %[1]s (
    asset_key, ticker_symbol, snapshot_date, ingestion_timestamp,
    maturity_value, action_rate, price_per_100_nominal_value, period_yield,
    annual_percentage_rate, effective_annual_rate, effective_monthly_rate,
    modified_duration_in_days)
SELECT
    %[3]s AS asset_key,
    S.ticker_symbol,
    CAST(S.snapshot_date AS DATE) AS snapshot_date,
    CAST(S.ingestion_timestamp AS %[4]s) AS ingestion_timestamp,
    CAST(S.maturity_value AS NUMERIC) AS maturity_value,
    CAST(S.action_rate AS NUMERIC) AS action_rate,
    CAST(S.price_per_100_nominal_value AS NUMERIC) AS price_per_100_nominal_value,
    CAST(S.period_yield AS NUMERIC) AS period_yield,
    CAST(S.annual_percentage_rate AS NUMERIC) AS annual_percentage_rate,
    CAST(S.effective_annual_rate AS NUMERIC) AS effective_annual_rate,
    CAST(S.effective_monthly_rate AS NUMERIC) AS effective_monthly_rate,
    S.modified_duration_in_days
FROM %[2]s S`, target, staging, assetKeyExpr(d, "S.ticker_symbol"), timestampType(d))
}
