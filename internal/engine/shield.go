package engine

// shield.go — agente de riesgo.
//
// Único escritor de P&L, exposición y halts en RiskState, salvo el halt
// por fallo de auth del stream, que activa el Watcher. Todas las
// mutaciones de un report pasan bajo el lock del RiskState, así que el
// efecto observable es siempre un snapshot consistente.

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alejandrodnm/kalshibot/internal/bus"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/alejandrodnm/kalshibot/internal/strategy"
)

// ShieldConfig son los límites duros.
type ShieldConfig struct {
	MaxDailyLossCents    int
	MaxOpenExposureCents int
	MaxTradesPerGame     int
}

// position es el costo base de una posición abierta.
type position struct {
	quantity int
	avgPrice int // cents
	line     int // umbral del ticker, para resolver en settlement
}

// Shield consume FillReport y Settlement y mantiene RiskState.
type Shield struct {
	bus     *bus.Bus
	risk    *domain.RiskState
	journal ports.FillJournal // opcional; nil = sin journal
	cfg     ShieldConfig

	// (game_id, ticker) → posición. Solo lo toca el goroutine del Shield.
	positions map[string]map[string]*position
	fills     []domain.FillRow
}

// NewShield crea el Shield. journal puede ser nil.
func NewShield(b *bus.Bus, risk *domain.RiskState, journal ports.FillJournal, cfg ShieldConfig) *Shield {
	return &Shield{
		bus:       b,
		risk:      risk,
		journal:   journal,
		cfg:       cfg,
		positions: make(map[string]map[string]*position),
	}
}

// Run consume fills y settlements hasta que ctx se cancele.
func (sh *Shield) Run(ctx context.Context) {
	slog.Info("shield running",
		"max_daily_loss_cents", sh.cfg.MaxDailyLossCents,
		"max_exposure_cents", sh.cfg.MaxOpenExposureCents,
		"max_trades_per_game", sh.cfg.MaxTradesPerGame,
	)
	for {
		select {
		case <-ctx.Done():
			return
		case report := <-sh.bus.FillReports.Recv():
			sh.processFill(ctx, report)
		case settlement := <-sh.bus.Settlements.Recv():
			sh.processSettlement(settlement)
		}
	}
}

func (sh *Shield) processFill(ctx context.Context, report domain.FillReport) {
	if sh.journal != nil {
		if err := sh.journal.Append(ctx, report); err != nil {
			slog.Warn("fill journal append failed", "signal_id", report.SignalID, "err", err)
		}
	}
	sh.fills = append(sh.fills, domain.FillRow{
		Ticker:   report.Ticker,
		Side:     report.Side,
		Quantity: report.FilledQuantity,
		AvgPrice: report.AvgPrice,
		Status:   report.Status,
		Latency:  report.Latency,
		At:       report.FilledAt,
	})

	if !report.Status.Success() {
		// Revertir la reserva optimista del Brain.
		sh.risk.ReleaseTrade(report.GameID)
		if report.Reason == "auth_failure" {
			sh.risk.Halt("auth_failure")
			slog.Error("SHIELD HALT: authentication failure on order path")
		}
		return
	}

	cost := report.AvgPrice * report.FilledQuantity
	sh.risk.ApplyFill(cost)
	sh.trackPosition(report)

	snap := sh.risk.Snapshot()
	slog.Info("shield: fill processed",
		"ticker", report.Ticker,
		"filled", report.FilledQuantity,
		"cost_cents", cost,
		"open_exposure", snap.OpenExposure,
		"realized_pnl", snap.RealizedPnL,
	)

	sh.checkLimits(report.GameID, snap)
}

func (sh *Shield) trackPosition(report domain.FillReport) {
	game := sh.positions[report.GameID]
	if game == nil {
		game = make(map[string]*position)
		sh.positions[report.GameID] = game
	}
	pos := game[report.Ticker]
	if pos == nil {
		pos = &position{line: lineFromTicker(report.Ticker)}
		game[report.Ticker] = pos
	}
	total := pos.quantity + report.FilledQuantity
	if total > 0 {
		pos.avgPrice = (pos.avgPrice*pos.quantity + report.AvgPrice*report.FilledQuantity) / total
	}
	pos.quantity = total
}

func (sh *Shield) checkLimits(gameID string, snap domain.RiskSnapshot) {
	if snap.Halted {
		return
	}

	if snap.RealizedPnL <= -sh.cfg.MaxDailyLossCents {
		sh.risk.Halt("daily_loss")
		slog.Error("SHIELD HALT: daily loss limit breached",
			"realized_pnl", snap.RealizedPnL, "limit", -sh.cfg.MaxDailyLossCents)
		return
	}

	// Sticky: una vez superada la exposición, el halt no se limpia solo.
	if snap.OpenExposure > sh.cfg.MaxOpenExposureCents {
		sh.risk.Halt("exposure")
		slog.Error("SHIELD HALT: open exposure limit breached",
			"open_exposure", snap.OpenExposure, "limit", sh.cfg.MaxOpenExposureCents)
		return
	}

	if sh.risk.GameTrades(gameID) >= sh.cfg.MaxTradesPerGame {
		sh.risk.HaltGame(gameID)
		slog.Warn("shield: per-game trade limit reached", "game_id", gameID)
	}
}

// processSettlement realiza P&L de las posiciones del partido terminado.
// Un contrato de total resuelve YES si el total final alcanzó su línea.
func (sh *Shield) processSettlement(settlement domain.Settlement) {
	game := sh.positions[settlement.GameID]
	if len(game) == 0 {
		delete(sh.positions, settlement.GameID)
		return
	}

	for ticker, pos := range game {
		cost := pos.avgPrice * pos.quantity
		var pnl int
		if settlement.FinalTotal >= pos.line {
			pnl = (strategy.NetPayoutCents - pos.avgPrice) * pos.quantity
		} else {
			pnl = -cost
		}
		sh.risk.ApplySettlement(pnl, cost)
		slog.Info("shield: position settled",
			"game_id", settlement.GameID,
			"ticker", ticker,
			"final_total", settlement.FinalTotal,
			"line", pos.line,
			"pnl_cents", pnl,
		)
	}
	delete(sh.positions, settlement.GameID)

	snap := sh.risk.Snapshot()
	if !snap.Halted && snap.RealizedPnL <= -sh.cfg.MaxDailyLossCents {
		sh.risk.Halt("daily_loss")
		slog.Error("SHIELD HALT: daily loss limit breached on settlement",
			"realized_pnl", snap.RealizedPnL)
	}
}

// Summary arma el resumen de sesión. Llamar después de frenar los agentes.
func (sh *Shield) Summary(tradesPerGame map[string]int, dropped map[string]int64) domain.SessionSummary {
	snap := sh.risk.Snapshot()
	return domain.SessionSummary{
		Fills:          sh.fills,
		TradesPerGame:  tradesPerGame,
		RealizedPnL:    snap.RealizedPnL,
		OpenExposure:   snap.OpenExposure,
		Halted:         snap.Halted,
		HaltReason:     snap.HaltReason,
		DroppedByQueue: dropped,
	}
}

// lineFromTicker extrae el entero final del ticker (la línea del mercado).
func lineFromTicker(ticker string) int {
	i := strings.LastIndex(ticker, "-")
	if i < 0 {
		return 0
	}
	line, _ := strconv.Atoi(ticker[i+1:])
	return line
}
