package engine

// brain.go — agente de estrategia.
//
// Hot path por GameEvent: gate de riesgo, lookup del threshold map, scan
// lineal de líneas (k ≈ 10), lectura de cache y aritmética de edge. Todo
// síncrono, sin I/O. La construcción del threshold map (REST) corre fuera
// del hot path en un goroutine, con coalescing de builds en vuelo.

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/bus"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/alejandrodnm/kalshibot/internal/strategy"
)

// BrainConfig son los parámetros de decisión.
type BrainConfig struct {
	MinEdgeCents          int
	MaxPriceSlippageCents int
	DefaultQuantity       int
	MaxQuantity           int
	MaxOpenExposureCents  int
	MaxTradesPerGame      int
}

// Brain consume GameEvent y emite ExecuteTrade.
type Brain struct {
	bus        *bus.Bus
	cache      *domain.BookCache
	risk       *domain.RiskState
	thresholds *strategy.ThresholdMap
	resolver   *strategy.Resolver
	markets    ports.MarketLister
	watcher    *Watcher
	series     config.MarketsConfig
	cfg        BrainConfig

	mu       sync.Mutex
	building map[string]bool // game_id → build en vuelo
	failed   map[string]bool // game_id → build sin mercados; no reintentar
}

// NewBrain crea el Brain.
func NewBrain(
	b *bus.Bus,
	cache *domain.BookCache,
	risk *domain.RiskState,
	markets ports.MarketLister,
	watcher *Watcher,
	series config.MarketsConfig,
	cfg BrainConfig,
) *Brain {
	return &Brain{
		bus:        b,
		cache:      cache,
		risk:       risk,
		thresholds: strategy.NewThresholdMap(),
		resolver:   strategy.NewResolver(),
		markets:    markets,
		watcher:    watcher,
		series:     series,
		cfg:        cfg,
		building:   make(map[string]bool),
		failed:     make(map[string]bool),
	}
}

// Run consume el canal de game events hasta que ctx se cancele.
func (br *Brain) Run(ctx context.Context) {
	slog.Info("brain running",
		"min_edge", br.cfg.MinEdgeCents,
		"slippage", br.cfg.MaxPriceSlippageCents,
		"qty", br.cfg.DefaultQuantity,
	)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-br.bus.GameEvents.Recv():
			br.process(ctx, ev)
		}
	}
}

func (br *Brain) process(ctx context.Context, ev domain.GameEvent) {
	if ev.IsFinal {
		br.finishGame(ctx, ev)
		return
	}

	// 1. Gate de riesgo global.
	snap := br.risk.Snapshot()
	if snap.Halted {
		slog.Warn("brain: halted, discarding event", "game_id", ev.GameID, "reason", snap.HaltReason)
		return
	}

	// 2. Gates per-game.
	if br.risk.GameHalted(ev.GameID) {
		return
	}
	if br.risk.GameTrades(ev.GameID) >= br.cfg.MaxTradesPerGame {
		return
	}

	// 3. Threshold map: construcción lazy fuera del hot path.
	if !br.thresholds.Has(ev.Sport, ev.GameID) {
		br.startBuild(ctx, ev)
		return
	}

	br.evaluate(ctx, ev, snap)
}

// evaluate recorre las líneas en orden ascendente y emite una señal por
// línea que califica.
func (br *Brain) evaluate(ctx context.Context, ev domain.GameEvent, snap domain.RiskSnapshot) {
	entries := br.thresholds.Entries(ev.Sport, ev.GameID)
	for _, entry := range entries {
		if entry.Triggered {
			continue
		}
		if entry.Line > ev.TotalScore {
			// Ordenado ascendente: nada más adelante está cruzado.
			break
		}
		// Latch primero: aunque la evaluación falle, una línea no
		// dispara dos veces.
		entry.Triggered = true

		if br.risk.GameTrades(ev.GameID) >= br.cfg.MaxTradesPerGame {
			slog.Info("brain: per-game trade cap reached", "game_id", ev.GameID)
			return
		}

		book, ok := br.cache.Get(entry.Ticker)
		if !ok || !book.HasYesAsk() {
			slog.Warn("brain: no usable book, signal skipped",
				"ticker", entry.Ticker, "cached", ok, "stale", ok && book.Stale)
			continue
		}

		// 6. Edge con fee incorporado.
		if !strategy.HasEdge(book.YesAsk, br.cfg.MinEdgeCents) {
			slog.Info("brain: no edge",
				"ticker", entry.Ticker, "yes_ask", book.YesAsk, "min_edge", br.cfg.MinEdgeCents)
			continue
		}

		// 7. Gate de exposición.
		qty := min(br.cfg.DefaultQuantity, br.cfg.MaxQuantity)
		if snap.OpenExposure+book.YesAsk*qty > br.cfg.MaxOpenExposureCents {
			slog.Warn("brain: exposure cap, signal skipped",
				"ticker", entry.Ticker, "open_exposure", snap.OpenExposure)
			continue
		}

		signal := domain.ExecuteTrade{
			SignalID:      uuid.NewString(),
			Ticker:        entry.Ticker,
			Side:          domain.SideYes,
			LimitPrice:    strategy.LimitPrice(book.YesAsk, br.cfg.MaxPriceSlippageCents, br.cfg.MinEdgeCents),
			Quantity:      qty,
			GameID:        ev.GameID,
			TotalAtSignal: ev.TotalScore,
			GeneratedAt:   time.Now(),
		}

		// Reserva optimista; el Shield la revierte en Rejected/Error.
		br.risk.ReserveTrade(ev.GameID)
		if err := br.bus.TradeSignals.Publish(ctx, signal); err != nil {
			br.risk.ReleaseTrade(ev.GameID)
			slog.Error("brain: trade signal dropped", "ticker", entry.Ticker, "err", err)
			continue
		}

		slog.Info("brain SIGNAL",
			"game_id", ev.GameID,
			"total", ev.TotalScore,
			"line", entry.Line,
			"ticker", entry.Ticker,
			"yes_ask", book.YesAsk,
			"limit", signal.LimitPrice,
			"qty", signal.Quantity,
			"signal_id", signal.SignalID,
		)
	}
}

// startBuild lanza la construcción del threshold map si no hay una en vuelo.
// Los eventos concurrentes del mismo partido coalescen: un solo fetch.
func (br *Brain) startBuild(ctx context.Context, ev domain.GameEvent) {
	br.mu.Lock()
	if br.building[ev.GameID] || br.failed[ev.GameID] {
		br.mu.Unlock()
		return
	}
	br.building[ev.GameID] = true
	br.mu.Unlock()

	go func() {
		defer func() {
			br.mu.Lock()
			delete(br.building, ev.GameID)
			br.mu.Unlock()
		}()
		br.build(ctx, ev)
	}()
}

func (br *Brain) build(ctx context.Context, ev domain.GameEvent) {
	sc, ok := br.series[ev.Sport]
	if !ok {
		slog.Warn("brain: no series configured for sport", "sport", ev.Sport)
		br.markFailed(ev.GameID)
		return
	}

	dateCode := strings.ToUpper(time.Now().UTC().Format("06Jan02"))
	tickers, err := br.markets.MarketTickers(ctx, sc.SeriesPrefix, dateCode)
	if err != nil {
		// Transitorio: no marcar failed, el próximo evento reintenta.
		slog.Error("brain: market fetch failed", "game_id", ev.GameID, "err", err)
		return
	}

	entries := strategy.BuildEntries(tickers, sc.SeriesPrefix, ev, br.resolver)
	if len(entries) == 0 {
		slog.Warn("brain: no markets matched game",
			"game_id", ev.GameID, "away", ev.AwayTeam, "home", ev.HomeTeam,
			"series", sc.SeriesPrefix, "candidates", len(tickers))
		br.markFailed(ev.GameID)
		return
	}

	subs := make([]string, len(entries))
	for i, e := range entries {
		subs[i] = e.Ticker
	}
	br.watcher.Subscribe(subs)
	br.thresholds.Register(ev.Sport, ev.GameID, entries)

	// Re-inyectar el evento que disparó la construcción: las líneas que
	// este mismo marcador cruzó se evalúan sin esperar al próximo poll.
	if err := br.bus.GameEvents.Publish(ctx, ev); err != nil {
		slog.Warn("brain: could not requeue triggering event", "game_id", ev.GameID, "err", err)
	}
}

func (br *Brain) markFailed(gameID string) {
	br.mu.Lock()
	br.failed[gameID] = true
	br.mu.Unlock()
}

// finishGame desregistra el partido y publica el settlement para que el
// Shield realice P&L.
func (br *Brain) finishGame(ctx context.Context, ev domain.GameEvent) {
	br.thresholds.Unregister(ev.Sport, ev.GameID)
	settlement := domain.Settlement{
		GameID:     ev.GameID,
		Sport:      ev.Sport,
		FinalTotal: ev.TotalScore,
		At:         time.Now(),
	}
	if err := br.bus.Settlements.Publish(ctx, settlement); err != nil {
		slog.Error("brain: settlement publish failed", "game_id", ev.GameID, "err", err)
	}
}
