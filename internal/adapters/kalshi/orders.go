package kalshi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// ErrAuth marca un fallo de firma/credenciales. Es fatal: el supervisor lo
// traduce a halt global (runtime) o a exit non-zero (bootstrap).
var ErrAuth = errors.New("kalshi: authentication failed")

// IsAuthErr devuelve true si err proviene de un rechazo de autenticación.
func IsAuthErr(err error) bool {
	return errors.Is(err, ErrAuth)
}

// PlaceLimitOrder firma y envía una orden límite de compra.
// Una sola llamada, sin retries. El caller controla el timeout duro vía ctx.
// Implementa ports.OrderExecutor.
func (c *Client) PlaceLimitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	body := orderRequestBody{
		Ticker:        req.Ticker,
		Action:        "buy",
		Type:          "limit",
		Side:          string(req.Side),
		Count:         req.Quantity,
		LimitPrice:    req.LimitPrice,
		ClientOrderID: req.ClientOrderID,
	}

	sentAt := time.Now()
	var resp orderResponse
	if err := c.postOrder(ctx, "/portfolio/orders", body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("kalshi.PlaceLimitOrder: %w", err)
	}

	slog.Info("order placed",
		"ticker", req.Ticker,
		"side", req.Side,
		"qty", req.Quantity,
		"limit_price", req.LimitPrice,
		"status", resp.Order.Status,
		"latency_ms", float64(time.Since(sentAt).Microseconds())/1000,
	)

	return domain.OrderResult{
		OrderID:        resp.Order.OrderID,
		Status:         resp.Order.Status,
		FilledQuantity: resp.Order.CountFilled,
		AvgPrice:       resp.Order.AvgPrice,
	}, nil
}
