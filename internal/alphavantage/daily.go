package alphavantage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/rickgao/financemonitor/internal/model"
)

// Output sizes accepted by DailyBars.
const (
	OutputCompact = "compact" // latest 100 points
	OutputFull    = "full"
)

// USMarket is the market code attached to Alpha Vantage quotes.
const USMarket = "US"

var (
	// ErrEmptySymbol is returned when no symbol is given.
	ErrEmptySymbol = errors.New("alphavantage: empty symbol")

	// ErrNoData is returned when the response holds no time series rows.
	ErrNoData = errors.New("alphavantage: no data")
)

// VendorError is an error message embedded in a 200 response body, such as an
// unknown symbol or a rate limit notice.
type VendorError struct {
	Message string
}

func (e *VendorError) Error() string {
	return "alphavantage: " + e.Message
}

type dailyResponse struct {
	MetaData     dailyMetaData          `json:"Meta Data"`
	TimeSeries   map[string]dailyValues `json:"Time Series (Daily)"`
	ErrorMessage string                 `json:"Error Message"`
	Note         string                 `json:"Note"`
	Information  string                 `json:"Information"`
}

type dailyMetaData struct {
	Symbol        string `json:"2. Symbol"`
	LastRefreshed string `json:"3. Last Refreshed"`
}

type dailyValues struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// vendorError extracts an error notice from a response, or returns nil.
func (r *dailyResponse) vendorError() error {
	for _, msg := range []string{r.ErrorMessage, r.Note, r.Information} {
		if msg != "" {
			return &VendorError{Message: msg}
		}
	}
	return nil
}

// LatestDaily returns the close of the most recent trading day for symbol.
func (c *Client) LatestDaily(ctx context.Context, symbol string) (*model.Quote, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	query := url.Values{}
	query.Set("function", "TIME_SERIES_DAILY")
	query.Set("symbol", symbol)

	c.logger.Info("retrieving latest daily value", "symbol", symbol)

	body, err := c.doWithRetry(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("time series daily %s: %w", symbol, err)
	}

	var resp dailyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if err := resp.vendorError(); err != nil {
		return nil, err
	}

	last := resp.MetaData.LastRefreshed
	values, ok := resp.TimeSeries[last]
	if !ok && len(last) > 10 {
		// Last Refreshed may carry a time component during market hours.
		last = last[:10]
		values, ok = resp.TimeSeries[last]
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s has no entry for %q", ErrNoData, symbol, resp.MetaData.LastRefreshed)
	}

	price, err := decimal.NewFromString(values.Close)
	if err != nil {
		return nil, fmt.Errorf("parse close %q: %w", values.Close, err)
	}

	volume, _ := strconv.ParseInt(values.Volume, 10, 64)
	return &model.Quote{
		Ticker: symbol,
		Price:  price,
		Market: USMarket,
		Date:   last,
		Open:   optionalDecimal(values.Open),
		High:   optionalDecimal(values.High),
		Low:    optionalDecimal(values.Low),
		Volume: volume,
	}, nil
}

// optionalDecimal parses s, returning zero when it is not a number.
func optionalDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DailyBars returns the daily series for symbol as parsed CSV rows, newest
// first.
func (c *Client) DailyBars(ctx context.Context, symbol, outputSize string) ([]model.DailyBar, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	if outputSize == "" {
		outputSize = OutputCompact
	}

	query := url.Values{}
	query.Set("function", "TIME_SERIES_DAILY")
	query.Set("symbol", symbol)
	query.Set("outputsize", outputSize)
	query.Set("datatype", "csv")

	c.logger.Info("retrieving daily series", "symbol", symbol, "outputsize", outputSize)

	body, err := c.doWithRetry(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("time series daily csv %s: %w", symbol, err)
	}

	// Errors are reported as JSON even when CSV was requested.
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		var resp dailyResponse
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return nil, fmt.Errorf("unmarshal error response: %w", err)
		}
		if err := resp.vendorError(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: unexpected JSON body for %s", ErrNoData, symbol)
	}

	var bars []model.DailyBar
	if err := gocsv.UnmarshalBytes(body, &bars); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	return bars, nil
}
