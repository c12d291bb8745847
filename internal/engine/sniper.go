package engine

// sniper.go — agente de ejecución.
//
// Presupuesto de latencia señal→orden: lectura de canal (~µs), firma de
// headers (~0.1ms), POST sobre conexión pre-calentada (~10-50ms RTT).
// Sin retries: el edge decae al ritmo de reacción del propio mercado, y una
// orden reintentada ejecuta a un precio que ya se comió el edge.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/kalshibot/internal/adapters/kalshi"
	"github.com/alejandrodnm/kalshibot/internal/bus"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

const (
	breakerThreshold   = 3
	breakerCooldown    = 30 * time.Second
	breakerMaxCooldown = 5 * time.Minute
)

// Sniper consume ExecuteTrade y dispara órdenes al exchange.
// Publica exactamente un FillReport por comando.
type Sniper struct {
	bus          *bus.Bus
	exec         ports.OrderExecutor
	breaker      *domain.Breaker
	orderTimeout time.Duration
}

// NewSniper crea el Sniper con su circuit breaker propio.
func NewSniper(b *bus.Bus, exec ports.OrderExecutor, orderTimeout time.Duration) *Sniper {
	return &Sniper{
		bus:          b,
		exec:         exec,
		breaker:      domain.NewBreaker(breakerThreshold, breakerCooldown, breakerMaxCooldown),
		orderTimeout: orderTimeout,
	}
}

// Breaker expone el breaker para tests y telemetría.
func (s *Sniper) Breaker() *domain.Breaker {
	return s.breaker
}

// Run consume el canal de señales hasta que ctx se cancele.
func (s *Sniper) Run(ctx context.Context) {
	slog.Info("sniper running", "order_timeout", s.orderTimeout)
	for {
		select {
		case <-ctx.Done():
			return
		case signal := <-s.bus.TradeSignals.Recv():
			s.Execute(ctx, signal)
		}
	}
}

// Execute dispara una orden para una señal y publica su FillReport.
func (s *Sniper) Execute(ctx context.Context, signal domain.ExecuteTrade) {
	if !s.breaker.Allow() {
		slog.Error("sniper breaker open, rejecting signal",
			"signal_id", signal.SignalID, "last_failure", s.breaker.LastFailure())
		s.publishFill(ctx, signal, domain.OrderResult{}, domain.FillStatusRejected, "sniper_open")
		return
	}

	orderCtx, cancel := context.WithTimeout(ctx, s.orderTimeout)
	defer cancel()

	req := domain.OrderRequest{
		Ticker:        signal.Ticker,
		Side:          signal.Side,
		Quantity:      signal.Quantity,
		LimitPrice:    signal.LimitPrice,
		ClientOrderID: "kb-" + uuid.NewString()[:8],
	}

	result, err := s.exec.PlaceLimitOrder(orderCtx, req)
	if err != nil {
		reason := "transport"
		switch {
		case errors.Is(err, context.Canceled):
			// Orden parcialmente enviada en shutdown: desenlace desconocido.
			reason = "cancelled"
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case kalshi.IsAuthErr(err):
			reason = "auth_failure"
		}
		s.breaker.RecordFailure(reason)
		slog.Error("sniper order failed",
			"signal_id", signal.SignalID, "ticker", signal.Ticker, "reason", reason, "err", err)
		s.publishFill(ctx, signal, domain.OrderResult{}, domain.FillStatusError, reason)
		return
	}

	status := domain.FillStatusRejected
	reason := result.Status
	switch {
	case result.FilledQuantity >= signal.Quantity:
		status, reason = domain.FillStatusFilled, ""
	case result.FilledQuantity > 0:
		status, reason = domain.FillStatusPartial, ""
	}

	if status.Success() {
		s.breaker.RecordSuccess()
	} else {
		s.breaker.RecordFailure(reason)
	}
	s.publishFill(ctx, signal, result, status, reason)
}

func (s *Sniper) publishFill(ctx context.Context, signal domain.ExecuteTrade, result domain.OrderResult, status domain.FillStatus, reason string) {
	now := time.Now()
	avgPrice := result.AvgPrice
	if avgPrice == 0 && result.FilledQuantity > 0 {
		avgPrice = signal.LimitPrice
	}
	report := domain.FillReport{
		SignalID:       signal.SignalID,
		OrderID:        result.OrderID,
		Ticker:         signal.Ticker,
		Side:           signal.Side,
		GameID:         signal.GameID,
		FilledQuantity: result.FilledQuantity,
		AvgPrice:       avgPrice,
		Status:         status,
		Reason:         reason,
		FilledAt:       now,
		Latency:        now.Sub(signal.GeneratedAt),
	}
	if err := s.bus.FillReports.Publish(ctx, report); err != nil {
		slog.Error("sniper: fill report publish failed", "signal_id", signal.SignalID, "err", err)
		return
	}
	slog.Info("sniper latency",
		"signal_id", signal.SignalID,
		"ticker", signal.Ticker,
		"status", status,
		"latency_ms", float64(report.Latency.Microseconds())/1000,
	)
}
