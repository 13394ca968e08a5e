package writer

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func rawRecords(t *testing.T, payload string) []json.RawMessage {
	t.Helper()
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	return raw
}

func TestParseQuoteRecords(t *testing.T) {
	raw := rawRecords(t, `[
		["SPY", 700, "US", "2025-06-09T16:42:31"],
		["GGAL", "4200.5", "AR", "2025-06-09T16:42:31.190280"]
	]`)

	records, err := ParseQuoteRecords(raw)
	if err != nil {
		t.Fatalf("ParseQuoteRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}

	if records[0].Ticker != "SPY" {
		t.Errorf("Ticker = %s, want SPY", records[0].Ticker)
	}
	if records[0].Value.String() != "700" {
		t.Errorf("Value = %s, want 700", records[0].Value)
	}
	want := time.Date(2025, 6, 9, 16, 42, 31, 0, time.UTC)
	if !records[0].DateTime.Equal(want) {
		t.Errorf("DateTime = %v, want %v", records[0].DateTime, want)
	}
	if records[1].Value.String() != "4200.5" {
		t.Errorf("Value = %s, want 4200.5", records[1].Value)
	}
	if records[1].DateTime.Nanosecond() != 190280000 {
		t.Errorf("Nanosecond = %d, want 190280000", records[1].DateTime.Nanosecond())
	}
}

func TestParseQuoteRecordsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantMsg string
	}{
		{"not a list", `[{"ticker":"SPY"}]`, MsgInvalidStructure},
		{"three elements", `[["SPY", 1, "US"]]`, MsgInvalidStructure},
		{"five elements", `[["SPY", 1, "US", "2025-06-09T16:42:31", 1]]`, MsgInvalidStructure},
		{"empty ticker", `[["  ", 1, "US", "2025-06-09T16:42:31"]]`, MsgInvalidData},
		{"numeric ticker", `[[5, 1, "US", "2025-06-09T16:42:31"]]`, MsgInvalidData},
		{"bad value", `[["SPY", "abc", "US", "2025-06-09T16:42:31"]]`, MsgInvalidData},
		{"null value", `[["SPY", null, "US", "2025-06-09T16:42:31"]]`, MsgInvalidData},
		{"empty market", `[["SPY", 1, "", "2025-06-09T16:42:31"]]`, MsgInvalidData},
		{"date only", `[["SPY", 1, "US", "2025-06-09"]]`, MsgInvalidDate},
		{"space separator", `[["SPY", 1, "US", "2025-06-09 16:42:31"]]`, MsgInvalidDate},
		{"numeric date", `[["SPY", 1, "US", 20250609]]`, MsgInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuoteRecords(rawRecords(t, tt.payload))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", verr.Message, tt.wantMsg)
			}
			if verr.Details == "" {
				t.Error("Details should not be empty")
			}
		})
	}
}

func TestParseQuoteRecordsDateNotString(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"number", `[["SPY", 1, "US", 20250609]]`},
		{"null", `[["SPY", 1, "US", null]]`},
		{"object", `[["SPY", 1, "US", {"date": "2025-06-09T16:42:31"}]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuoteRecords(rawRecords(t, tt.payload))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Message != MsgInvalidDate {
				t.Errorf("Message = %q, want %q", verr.Message, MsgInvalidDate)
			}
			if !strings.Contains(verr.Details, "must be a string") {
				t.Errorf("Details = %q, want it to mention a string date", verr.Details)
			}
		})
	}
}

func TestParseQuoteRecordsStopsAtFirstInvalid(t *testing.T) {
	raw := rawRecords(t, `[
		["SPY", 1, "US", "2025-06-09T16:42:31"],
		["QQQ", 1, "US", "bad"],
		["DIA", "x", "US", "2025-06-09T16:42:31"]
	]`)

	_, err := ParseQuoteRecords(raw)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if verr.Message != MsgInvalidDate {
		t.Errorf("Message = %q, want %q", verr.Message, MsgInvalidDate)
	}
}

func TestParseQuoteRecordsEmpty(t *testing.T) {
	records, err := ParseQuoteRecords(nil)
	if err != nil {
		t.Fatalf("ParseQuoteRecords(nil) error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len = %d, want 0", len(records))
	}
}
