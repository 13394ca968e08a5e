package scraper

import (
	"log/slog"
	"regexp"
	"strings"
)

// Section titles as printed in the report.
const (
	LECAPTitle  = "LETRAS DEL TESORO CAPITALIZABLES EN PESOS (LECAP)"
	BONCAPTitle = "BONOS DEL TESORO CAPITALIZABLES EN PESOS (BONCAP)"
	DualesTitle = "BONOS DUALES"
	dualesEnd   = "2 - Índice Caución BYMA"
)

// capitalizableHeaders are the LECAP and BONCAP column names.
var capitalizableHeaders = []string{
	"ticker_symbol", "fecha_emision", "fecha_pago", "plazo_vencimiento_dias", "monto_al_vencimiento",
	"tasa_de_liquidacion", "fecha_cierre", "fecha_liquidacion", "precio_vn_100", "rendimiento_periodo",
	"tna", "tea", "tem", "dm_dias",
}

var (
	tickerRe = regexp.MustCompile(`^[A-Z]{1,4}\d{1,2}[A-Z]\d{1,2}`)

	// Dual bond tickers (TTM26) have no month letter, so that part is optional.
	dualRe = regexp.MustCompile(`^(?P<bono>[A-Z]{1,4}\d{1,2}(?:[A-Z]\d{1,2})?)\s+` +
		`(?P<fecha_emision>\d{1,2}-[A-Za-z]{3}-\d{2,4})\s+` +
		`(?P<fecha_pago>\d{1,2}-[A-Za-z]{3}-\d{2,4})\s+` +
		`(?P<plazo_vto>\d+)\s+` +
		`(?P<monto_vto>[\d,.]+)\s+` +
		`(?P<fecha>\d{1,2}-[A-Za-z]{3}-\d{2,4})\s+` +
		`(?P<cotiz>[\d,.]+)\s+` +
		`(?P<tem_fija>[\d.,]+%)\s+` +
		`(?P<tem_tamar>[\d.,]+%)\s+` +
		`(?P<spread>[\d.,]+%)\s+` +
		`(?P<tir>[\d.,]+%)\s+` +
		`(?P<dm>\d+)$`)
)

// sectionTitles lists every title that ends a preceding section.
var sectionTitles = []string{LECAPTitle, BONCAPTitle, DualesTitle}

// Table is a parsed report table.
type Table struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Records returns the rows keyed by header.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				rec[h] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}

// ExtractTables finds the LECAP, BONCAP and BONOS DUALES tables in text.
// Tables without rows are omitted.
func ExtractTables(text string, logger *slog.Logger) []Table {
	if logger == nil {
		logger = slog.Default()
	}
	lines := strings.Split(text, "\n")

	var tables []Table
	for _, title := range []string{LECAPTitle, BONCAPTitle} {
		if t := extractSection(lines, title, capitalizableHeaders, logger); len(t.Rows) > 0 {
			tables = append(tables, t)
		}
	}
	if t := extractDuales(text); len(t.Rows) > 0 {
		tables = append(tables, t)
	}
	return tables
}

// extractSection collects ticker rows that follow title until another
// section title appears. Extra trailing values are dropped.
func extractSection(lines []string, title string, headers []string, logger *slog.Logger) Table {
	t := Table{Title: title, Headers: headers}
	inTable := false
	for _, line := range lines {
		if strings.Contains(line, title) {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if isOtherTitle(line, title) {
			break
		}

		values := strings.Fields(line)
		if len(values) == 0 || !tickerRe.MatchString(values[0]) {
			continue
		}
		if len(values) < len(headers) {
			logger.Warn("skipping row with insufficient values", "table", title, "line", line)
			continue
		}
		t.Rows = append(t.Rows, values[:len(headers)])
	}
	return t
}

func isOtherTitle(line, current string) bool {
	for _, other := range sectionTitles {
		if other != current && strings.Contains(line, other) {
			return true
		}
	}
	return false
}

// extractDuales parses the BONOS DUALES block, which has its own layout.
func extractDuales(text string) Table {
	headers := dualRe.SubexpNames()[1:]
	t := Table{Title: DualesTitle, Headers: headers}

	start := strings.Index(text, DualesTitle)
	if start < 0 {
		return t
	}
	block := text[start:]
	if end := strings.Index(block, dualesEnd); end >= 0 {
		block = block[:end]
	}

	for _, line := range strings.Split(block, "\n") {
		m := dualRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		t.Rows = append(t.Rows, m[1:])
	}
	return t
}
