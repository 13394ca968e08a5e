package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/warehouse"
)

// activeAssetsSQL selects the assets to extract.
func activeAssetsSQL(tableRef string) string {
	return fmt.Sprintf(`SELECT ticker_symbol, exchange_country, exchange_code
FROM %s
WHERE is_active = TRUE
ORDER BY ticker_symbol`, tableRef)
}

// ActiveAssets returns the active rows of the asset dimension table. A query
// failure is logged and yields no assets.
func ActiveAssets(ctx context.Context, wh warehouse.Warehouse, table string, logger *slog.Logger) []model.Asset {
	rows, err := wh.QueryStrings(ctx, activeAssetsSQL(wh.Ref(table)))
	if err != nil {
		logger.Error("failed to query active assets", "table", table, "error", err)
		return nil
	}

	assets := make([]model.Asset, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 || row[0] == "" {
			logger.Warn("skipping malformed asset row", "row", row)
			continue
		}
		assets = append(assets, model.Asset{Ticker: row[0], Country: row[1], Exchange: row[2]})
	}
	return assets
}
