package kalshi

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const marketsPageSize = 1000

// MarketTickers devuelve los tickers abiertos de una serie cuyo date code
// coincide con dateCode (%y%b%d en mayúsculas). Pagina con cursor hasta
// agotar los resultados. Implementa ports.MarketLister.
func (c *Client) MarketTickers(ctx context.Context, series, dateCode string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, marketsFetchTimeout)
	defer cancel()

	var tickers []string
	cursor := ""
	for {
		path := fmt.Sprintf("/markets?limit=%d&status=open&series_ticker=%s",
			marketsPageSize, url.QueryEscape(series))
		if cursor != "" {
			path += "&cursor=" + url.QueryEscape(cursor)
		}

		var resp marketsResponse
		if err := c.get(ctx, path, &resp); err != nil {
			return nil, fmt.Errorf("kalshi.MarketTickers: %w", err)
		}

		for _, m := range resp.Markets {
			if strings.Contains(m.Ticker, "-"+dateCode) {
				tickers = append(tickers, m.Ticker)
			}
		}

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	slog.Info("market tickers fetched",
		"series", series, "date_code", dateCode, "count", len(tickers))
	return tickers, nil
}
