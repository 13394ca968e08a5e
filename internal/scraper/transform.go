package scraper

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/financemonitor/internal/model"
)

const dateLayout = "2006-01-02"

// spanishMonths maps Spanish month abbreviations that differ from English.
var spanishMonths = map[string]string{
	"ene": "Jan",
	"abr": "Apr",
	"ago": "Aug",
	"set": "Sep",
	"dic": "Dec",
}

// ParseNum parses an IAMC number: "." groups thousands, "," is the decimal
// separator and a trailing "%" is ignored.
func ParseNum(s string) (decimal.Decimal, error) {
	t := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	t = strings.ReplaceAll(t, ".", "")
	t = strings.ReplaceAll(t, ",", ".")
	d, err := decimal.NewFromString(t)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse number %q: %w", s, err)
	}
	return d, nil
}

// ParseDate parses a report date such as "31-Oct-25" or "31-Oct-2025".
// Spanish month abbreviations ("31-Dic-25") are accepted.
func ParseDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("parse date %q: want d-Mon-yy", s)
	}

	month := strings.ToLower(parts[1])
	if en, ok := spanishMonths[month]; ok {
		month = en
	} else if len(month) > 0 {
		month = strings.ToUpper(month[:1]) + month[1:]
	}

	layout := "2-Jan-06"
	if len(parts[2]) == 4 {
		layout = "2-Jan-2006"
	}
	t, err := time.Parse(layout, parts[0]+"-"+month+"-"+parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func isoDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(dateLayout), nil
}

// Transform converts parsed tables into warehouse rows. Rows that fail to
// parse are skipped with a warning.
func Transform(tables []Table, ingestedAt time.Time, logger *slog.Logger) *model.TreasuryReport {
	if logger == nil {
		logger = slog.Default()
	}
	report := &model.TreasuryReport{}

	for _, t := range tables {
		switch t.Title {
		case LECAPTitle, BONCAPTitle:
			kind := model.InstrumentLECAP
			if t.Title == BONCAPTitle {
				kind = model.InstrumentBONCAP
			}
			for _, rec := range t.Records() {
				fi, dv, err := transformRow(rec, kind, ingestedAt)
				if err != nil {
					logger.Warn("skipping unparseable row", "table", kind, "ticker", rec["ticker_symbol"], "error", err)
					continue
				}
				report.FixedIncome = append(report.FixedIncome, fi)
				report.DailyValues = append(report.DailyValues, dv)
			}
		case DualesTitle:
			for _, rec := range t.Records() {
				report.Duales = append(report.Duales, dualBond(rec))
			}
		}
	}
	return report
}

func transformRow(rec map[string]string, kind string, ingestedAt time.Time) (model.FixedIncome, model.DailyValue, error) {
	var (
		fi  model.FixedIncome
		dv  model.DailyValue
		err error
	)

	issue, err := isoDate(rec["fecha_emision"])
	if err != nil {
		return fi, dv, err
	}
	payment, err := isoDate(rec["fecha_pago"])
	if err != nil {
		return fi, dv, err
	}
	snapshot, err := isoDate(rec["fecha_cierre"])
	if err != nil {
		return fi, dv, err
	}

	nums := make(map[string]decimal.Decimal, 8)
	for _, key := range []string{
		"monto_al_vencimiento", "tasa_de_liquidacion", "precio_vn_100", "rendimiento_periodo",
		"tna", "tea", "tem", "dm_dias",
	} {
		d, err := ParseNum(rec[key])
		if err != nil {
			return fi, dv, fmt.Errorf("%s: %w", key, err)
		}
		nums[key] = d
	}

	fi = model.FixedIncome{
		TickerSymbol:    rec["ticker_symbol"],
		IssueDate:       issue,
		PaymentDate:     payment,
		AmountAtPayment: nums["monto_al_vencimiento"],
		Rate:            nums["tasa_de_liquidacion"],
		Type:            kind,
	}
	dv = model.DailyValue{
		TickerSymbol:            rec["ticker_symbol"],
		SnapshotDate:            snapshot,
		IngestionTimestamp:      ingestedAt.UTC(),
		MaturityValue:           nums["monto_al_vencimiento"],
		ActionRate:              nums["tasa_de_liquidacion"],
		PricePer100NominalValue: nums["precio_vn_100"],
		PeriodYield:             nums["rendimiento_periodo"],
		AnnualPercentageRate:    nums["tna"],
		EffectiveAnnualRate:     nums["tea"],
		EffectiveMonthlyRate:    nums["tem"],
		ModifiedDurationInDays:  nums["dm_dias"].IntPart(),
	}
	return fi, dv, nil
}

func dualBond(rec map[string]string) model.DualBond {
	return model.DualBond{
		Ticker:              rec["bono"],
		IssueDate:           rec["fecha_emision"],
		PaymentDate:         rec["fecha_pago"],
		DaysToMaturity:      rec["plazo_vto"],
		AmountAtMaturity:    rec["monto_vto"],
		Date:                rec["fecha"],
		Price:               rec["cotiz"],
		FixedMonthlyRate:    rec["tem_fija"],
		VariableMonthlyRate: rec["tem_tamar"],
		Spread:              rec["spread"],
		IRR:                 rec["tir"],
		ModifiedDuration:    rec["dm"],
	}
}
