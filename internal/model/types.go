package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

// Quote is the latest daily close of a listed symbol.
type Quote struct {
	Ticker string          `json:"ticker"`
	Price  decimal.Decimal `json:"price"`
	Market string          `json:"market"`
	Date   string          `json:"date"` // Alpha Vantage "Last Refreshed" value

	Open   decimal.Decimal `json:"open,omitzero"`
	High   decimal.Decimal `json:"high,omitzero"`
	Low    decimal.Decimal `json:"low,omitzero"`
	Volume int64           `json:"volume,omitzero"`
}

// DailyBar is one row of the Alpha Vantage TIME_SERIES_DAILY CSV output.
type DailyBar struct {
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    int64   `csv:"volume"`
}

// RawPriceRow is a DailyBar annotated with the asset it belongs to, as stored
// under raw/ in the object store and loaded into the prices table.
type RawPriceRow struct {
	Timestamp    string  `csv:"timestamp"`
	Open         float64 `csv:"open"`
	High         float64 `csv:"high"`
	Low          float64 `csv:"low"`
	Close        float64 `csv:"close"`
	Volume       int64   `csv:"volume"`
	TickerSymbol string  `csv:"ticker_symbol"`
	ExchangeName string  `csv:"exchange_name"`
	Country      string  `csv:"country"`
	IsAdjusted   bool    `csv:"is_adjusted"`
}

// NewRawPriceRow annotates a bar with asset metadata.
func NewRawPriceRow(bar DailyBar, asset Asset, adjusted bool) RawPriceRow {
	return RawPriceRow{
		Timestamp:    bar.Timestamp,
		Open:         bar.Open,
		High:         bar.High,
		Low:          bar.Low,
		Close:        bar.Close,
		Volume:       bar.Volume,
		TickerSymbol: asset.Ticker,
		ExchangeName: asset.Exchange,
		Country:      asset.Country,
		IsAdjusted:   adjusted,
	}
}

// QuoteRecord is one validated row of a batch load request.
type QuoteRecord struct {
	Ticker   string
	Value    decimal.Decimal
	Market   string
	DateTime time.Time
}

// StreamRecord is one row committed through the warehouse streaming API.
type StreamRecord struct {
	Symbol   string  `json:"symbol"`
	Value    float64 `json:"value"`
	DateTime string  `json:"datetime"`
	Market   string  `json:"market"`
}

// Asset identifies a tradeable symbol tracked in the asset dimension table.
type Asset struct {
	Ticker   string
	Country  string
	Exchange string
}

// -----------------------------------------------------------------------------
// Treasury instruments (LECAP / BONCAP)
// -----------------------------------------------------------------------------

// Instrument types stored in the fixed-income table.
const (
	InstrumentLECAP  = "LECAP"
	InstrumentBONCAP = "BONCAP"
)

// FixedIncome describes a capitalizable treasury instrument.
type FixedIncome struct {
	TickerSymbol    string          `json:"ticker_symbol"`
	IssueDate       string          `json:"issue_date"`   // YYYY-MM-DD
	PaymentDate     string          `json:"payment_date"` // YYYY-MM-DD
	AmountAtPayment decimal.Decimal `json:"amount_at_payment"`
	Rate            decimal.Decimal `json:"rate"`
	Type            string          `json:"type"`
}

// DailyValue is a daily pricing snapshot of a treasury instrument.
type DailyValue struct {
	TickerSymbol            string          `json:"ticker_symbol"`
	SnapshotDate            string          `json:"snapshot_date"` // YYYY-MM-DD
	IngestionTimestamp      time.Time       `json:"ingestion_timestamp"`
	MaturityValue           decimal.Decimal `json:"maturity_value"`
	ActionRate              decimal.Decimal `json:"action_rate"`
	PricePer100NominalValue decimal.Decimal `json:"price_per_100_nominal_value"`
	PeriodYield             decimal.Decimal `json:"period_yield"`
	AnnualPercentageRate    decimal.Decimal `json:"annual_percentage_rate"`
	EffectiveAnnualRate     decimal.Decimal `json:"effective_annual_rate"`
	EffectiveMonthlyRate    decimal.Decimal `json:"effective_monthly_rate"`
	ModifiedDurationInDays  int64           `json:"modified_duration_in_days"`
}

// TreasuryReport is the parsed content of one IAMC LECAP/BONCAP report.
type TreasuryReport struct {
	SourceURL   string        `json:"source_url,omitempty"`
	FixedIncome []FixedIncome `json:"fixed_income"`
	DailyValues []DailyValue  `json:"daily_values"`
	Duales      []DualBond    `json:"duales,omitempty"`
}

// DualBond is a row of the BONOS DUALES table. Values are kept as printed.
type DualBond struct {
	Ticker              string `json:"bono"`
	IssueDate           string `json:"fecha_emision"`
	PaymentDate         string `json:"fecha_pago"`
	DaysToMaturity      string `json:"plazo_vto"`
	AmountAtMaturity    string `json:"monto_vto"`
	Date                string `json:"fecha"`
	Price               string `json:"cotiz"`
	FixedMonthlyRate    string `json:"tem_fija"`
	VariableMonthlyRate string `json:"tem_tamar"`
	Spread              string `json:"spread"`
	IRR                 string `json:"tir"`
	ModifiedDuration    string `json:"dm"`
}

// -----------------------------------------------------------------------------
// Manifests
// -----------------------------------------------------------------------------

// Manifest lists the outcome of an extractor run. The loader reads the
// successful URIs from it.
type Manifest struct {
	RunDate     string          `json:"run_date"`
	Mode        string          `json:"mode"`
	ExtractedAt time.Time       `json:"extracted_at"`
	Results     ManifestResults `json:"results"`
}

// ManifestResults groups per-symbol outcomes.
type ManifestResults struct {
	Success []ManifestEntry `json:"success"`
	Failed  []ManifestEntry `json:"failed"`
	Total   int             `json:"total"`
}

// ManifestEntry is a single symbol outcome.
type ManifestEntry struct {
	Symbol string `json:"symbol"`
	GCSURI string `json:"gcs_uri,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SuccessURIs returns the object URIs of successfully extracted symbols.
func (m *Manifest) SuccessURIs() []string {
	uris := make([]string, 0, len(m.Results.Success))
	for _, e := range m.Results.Success {
		if e.GCSURI != "" {
			uris = append(uris, e.GCSURI)
		}
	}
	return uris
}
