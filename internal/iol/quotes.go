package iol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Quote categories returned by DailyQuotes.
const (
	CategoryFCI    = "FCI"
	CategoryLetras = "LETRAS"
	CategoryON     = "ON"
	CategoryBonos  = "BONOS"
)

// ErrNoQuotes is returned when every category request failed.
var ErrNoQuotes = errors.New("iol: no quote category could be retrieved")

type endpoint struct {
	path  string
	query url.Values
}

func cotizaciones(instrument string) endpoint {
	q := url.Values{}
	q.Set("cotizacionInstrumentoModel.instrumento", instrument)
	q.Set("cotizacionInstrumentoModel.pais", "argentina")
	return endpoint{
		path:  "/api/v2/Cotizaciones/" + instrument + "/argentina/Todos",
		query: q,
	}
}

var dailyEndpoints = map[string]endpoint{
	CategoryFCI:    {path: "/api/v2/Titulos/FCI"},
	CategoryLetras: cotizaciones("letras"),
	CategoryON:     cotizaciones("obligacionesNegociables"),
	CategoryBonos:  cotizaciones("titulosPublicos"),
}

// ListFCI returns the mutual fund (FCI) listing as returned by IOL.
func (c *Client) ListFCI(ctx context.Context) (json.RawMessage, error) {
	ep := dailyEndpoints[CategoryFCI]
	body, err := c.Get(ctx, ep.path, ep.query)
	if err != nil {
		return nil, fmt.Errorf("list fci: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("list fci: response is not valid JSON")
	}
	return body, nil
}

// DailyQuotes fetches every quote category concurrently. Categories that fail
// are logged and reported as JSON null; ErrNoQuotes is returned only when all
// of them fail.
func (c *Client) DailyQuotes(ctx context.Context) (map[string]json.RawMessage, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]json.RawMessage, len(dailyEndpoints))
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	for category, ep := range dailyEndpoints {
		g.Go(func() error {
			body, err := c.Get(gctx, ep.path, ep.query)
			if err == nil && !json.Valid(body) {
				err = fmt.Errorf("response is not valid JSON")
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Error("failed to fetch iol quotes", "category", category, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", category, err))
				results[category] = json.RawMessage("null")
				return nil
			}
			results[category] = body
			return nil
		})
	}
	g.Wait()

	if len(errs) == len(dailyEndpoints) {
		return nil, fmt.Errorf("%w: %w", ErrNoQuotes, errors.Join(errs...))
	}

	c.logger.Info("fetched iol daily quotes", "categories", len(results)-len(errs), "failed", len(errs))
	return results, nil
}
