// Package alphavantage is a client for the Alpha Vantage TIME_SERIES_DAILY API.
//
// Two shapes are supported: the JSON time series, reduced to the latest close
// by LatestDaily, and the CSV export returned by DailyBars, which feeds the
// extractor job.
package alphavantage
