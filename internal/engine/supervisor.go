package engine

// supervisor.go — bootstrap y shutdown ordenado del pipeline.
//
// Arranque: warm del REST (DNS + TCP/TLS + no-op autenticado) → keepalive →
// Watcher → Oracle → Brain, Sniper, Shield.
//
// Cierre: frenar el Oracle (no entran eventos nuevos), drenar el canal de
// señales con un período de gracia, cancelar el resto, imprimir el resumen.
// Las posiciones abiertas NO se deshacen: non-goal explícito.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/adapters/kalshi"
	"github.com/alejandrodnm/kalshibot/internal/bus"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

const drainGracePeriod = 3 * time.Second

// Supervisor es el dueño del ciclo de vida de los agentes.
type Supervisor struct {
	bus      *bus.Bus
	client   *kalshi.Client
	risk     *domain.RiskState
	oracle   *Oracle
	watcher  *Watcher
	brain    *Brain
	sniper   *Sniper
	shield   *Shield
	notifier ports.Notifier

	keepalive time.Duration
}

// NewSupervisor arma el supervisor con los agentes ya construidos.
func NewSupervisor(
	b *bus.Bus,
	client *kalshi.Client,
	risk *domain.RiskState,
	oracle *Oracle,
	watcher *Watcher,
	brain *Brain,
	sniper *Sniper,
	shield *Shield,
	notifier ports.Notifier,
	keepalive time.Duration,
) *Supervisor {
	return &Supervisor{
		bus:       b,
		client:    client,
		risk:      risk,
		oracle:    oracle,
		watcher:   watcher,
		brain:     brain,
		sniper:    sniper,
		shield:    shield,
		notifier:  notifier,
		keepalive: keepalive,
	}
}

// Run arranca el pipeline y bloquea hasta que ctx se cancele (SIGINT/SIGTERM).
// Devuelve error solo si el bootstrap falla.
func (s *Supervisor) Run(ctx context.Context) error {
	// Pre-calentar transporte antes de levantar agentes: el hot path de
	// órdenes no puede pagar handshakes.
	if err := s.client.Warm(ctx); err != nil {
		return fmt.Errorf("supervisor: warm connection: %w", err)
	}

	runCtx, cancelAll := context.WithCancel(context.Background())
	defer cancelAll()
	oracleCtx, cancelOracle := context.WithCancel(runCtx)
	defer cancelOracle()

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context), c context.Context) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(c)
			slog.Debug("agent stopped", "agent", name)
		}()
	}

	start("keepalive", func(c context.Context) { s.client.Keepalive(c, s.keepalive) }, runCtx)
	start("watcher", s.watcher.Run, runCtx)
	start("oracle", s.oracle.Run, oracleCtx)
	start("brain", s.brain.Run, runCtx)
	start("sniper", s.sniper.Run, runCtx)
	start("shield", s.shield.Run, runCtx)

	slog.Info("all agents launched")
	<-ctx.Done()

	slog.Info("shutting down...")
	// 1. Sin eventos nuevos.
	cancelOracle()
	// 2. Gracia para que el Sniper drene las señales pendientes.
	s.drainSignals()
	// 3. Cancelar el resto (Watcher incluido) y esperar.
	cancelAll()
	wg.Wait()

	summary := s.shield.Summary(s.risk.TradeCounts(), map[string]int64{
		"game_events":    s.bus.GameEvents.Dropped(),
		"market_updates": s.bus.MarketUpdates.Dropped(),
		"trade_signals":  s.bus.TradeSignals.Dropped(),
		"fill_reports":   s.bus.FillReports.Dropped(),
	})
	if s.notifier != nil {
		s.notifier.SessionSummary(summary)
	}
	slog.Info("stopped cleanly")
	return nil
}

// drainSignals espera hasta que el canal de señales quede vacío o venza el
// período de gracia.
func (s *Supervisor) drainSignals() {
	deadline := time.Now().Add(drainGracePeriod)
	for time.Now().Before(deadline) {
		if s.bus.TradeSignals.Len() == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	slog.Warn("trade signal drain grace period expired",
		"pending", s.bus.TradeSignals.Len())
}
