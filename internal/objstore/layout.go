package objstore

import (
	"fmt"
	"strings"

	"github.com/rickgao/financemonitor/internal/model"
)

// Top-level prefixes.
const (
	RawPrefix       = "raw/"
	ProcessedPrefix = "processed/"
	ManifestPrefix  = "manifests/"
)

// RawPath is the object name of one extracted symbol:
// raw/{mode}/{source}/{country}_{exchange}_{ticker}/{run_date}.csv
func RawPath(mode, source string, asset model.Asset, runDate string) string {
	return fmt.Sprintf("%s%s/%s/%s_%s_%s/%s.csv",
		RawPrefix, mode, source, asset.Country, asset.Exchange, asset.Ticker, runDate)
}

// RawModePrefix is the prefix listed when no manifest is available.
func RawModePrefix(mode string) string {
	return RawPrefix + mode + "/"
}

// ManifestPath is the object name of a run manifest:
// manifests/{mode}/{run_date}.json
func ManifestPath(mode, runDate string) string {
	return fmt.Sprintf("%s%s/%s.json", ManifestPrefix, mode, runDate)
}

// ProcessedPath maps a raw/ object name to its processed/ counterpart. Names
// outside raw/ are returned unchanged with ok false.
func ProcessedPath(rawName string) (string, bool) {
	if !strings.HasPrefix(rawName, RawPrefix) {
		return rawName, false
	}
	return ProcessedPrefix + strings.TrimPrefix(rawName, RawPrefix), true
}
