package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// MarketLister obtiene los tickers de una serie del exchange.
type MarketLister interface {
	// MarketTickers devuelve los tickers de la serie cuyo date code coincide
	// con dateCode (formato %y%b%d en mayúsculas, p.ej. "26FEB19").
	MarketTickers(ctx context.Context, series, dateCode string) ([]string, error)
}

// OrderExecutor places limit orders on the exchange.
type OrderExecutor interface {
	// PlaceLimitOrder signs and submits a buy limit order. No retries:
	// one attempt, one result.
	PlaceLimitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

// MarketStream is the long-lived orderbook stream subscription.
type MarketStream interface {
	// Subscribe registers additional tickers. Safe to call at runtime;
	// re-issued automatically on reconnect.
	Subscribe(tickers []string)

	// Run drives the stream until ctx is done, reconnecting with backoff.
	Run(ctx context.Context) error
}
