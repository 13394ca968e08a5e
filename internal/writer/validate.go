package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/financemonitor/internal/model"
)

// ParseQuoteRecords validates a batch load payload. Each record must be a
// four element array [ticker, value, market, datetime]. Parsing stops at the
// first invalid record.
func ParseQuoteRecords(raw []json.RawMessage) ([]model.QuoteRecord, error) {
	records := make([]model.QuoteRecord, 0, len(raw))
	for i, r := range raw {
		rec, err := parseQuoteRecord(i, r)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseQuoteRecord(i int, raw json.RawMessage) (model.QuoteRecord, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) != 4 {
		return model.QuoteRecord{}, &ValidationError{
			Message: MsgInvalidStructure,
			Details: fmt.Sprintf("Record at index %d has invalid structure. Expected a list of 4 elements. Found: %s", i, compact(raw)),
		}
	}

	ticker, ok := nonEmptyString(fields[0])
	if !ok {
		return model.QuoteRecord{}, &ValidationError{
			Message: MsgInvalidData,
			Details: fmt.Sprintf("Invalid ticker at index %d: must be a non-empty string. Found: %s", i, compact(fields[0])),
		}
	}

	value, err := parseNumber(fields[1])
	if err != nil {
		return model.QuoteRecord{}, &ValidationError{
			Message: MsgInvalidData,
			Details: fmt.Sprintf("Invalid value at index %d: must be a number. Found: %s", i, compact(fields[1])),
		}
	}

	market, ok := nonEmptyString(fields[2])
	if !ok {
		return model.QuoteRecord{}, &ValidationError{
			Message: MsgInvalidData,
			Details: fmt.Sprintf("Invalid market at index %d: must be a non-empty string. Found: %s", i, compact(fields[2])),
		}
	}

	var dateString string
	if err := json.Unmarshal(fields[3], &dateString); err != nil || isNull(fields[3]) {
		return model.QuoteRecord{}, &ValidationError{
			Message: MsgInvalidDate,
			Details: fmt.Sprintf("Invalid date for record at index %d: must be a string. Found: %s", i, compact(fields[3])),
		}
	}
	dt, err := time.Parse(BatchDateLayout, dateString)
	if err != nil {
		return model.QuoteRecord{}, &ValidationError{
			Message: MsgInvalidDate,
			Details: fmt.Sprintf("Invalid date format for record at index %d: %s. Expected 'YYYY-MM-DDTHH:MM:SS'.", i, compact(fields[3])),
		}
	}

	return model.QuoteRecord{Ticker: ticker, Value: value, Market: market, DateTime: dt}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func nonEmptyString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, strings.TrimSpace(s) != ""
}

// parseNumber accepts a JSON number or a string holding one.
func parseNumber(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	}
	return decimal.NewFromString(string(raw))
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
