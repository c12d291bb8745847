package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshibot/internal/bus"
	"github.com/alejandrodnm/kalshibot/internal/domain"
)

func defaultShieldConfig() ShieldConfig {
	return ShieldConfig{
		MaxDailyLossCents:    10000,
		MaxOpenExposureCents: 50000,
		MaxTradesPerGame:     5,
	}
}

func newTestShield(cfg ShieldConfig) (*Shield, *bus.Bus, *domain.RiskState) {
	b := bus.New()
	risk := domain.NewRiskState()
	return NewShield(b, risk, nil, cfg), b, risk
}

func fillReport(gameID, ticker string, qty, avgPrice int, status domain.FillStatus) domain.FillReport {
	return domain.FillReport{
		SignalID:       "sig",
		Ticker:         ticker,
		Side:           domain.SideYes,
		GameID:         gameID,
		FilledQuantity: qty,
		AvgPrice:       avgPrice,
		Status:         status,
		FilledAt:       time.Now(),
	}
}

const testTicker = "KXNCAAMBTOTAL-26FEB19WEBBRAD-177"

func TestShield_FillUpdatesExposure(t *testing.T) {
	sh, _, risk := newTestShield(defaultShieldConfig())

	sh.processFill(context.Background(), fillReport("G1", testTicker, 10, 80, domain.FillStatusFilled))

	snap := risk.Snapshot()
	assert.Equal(t, 800, snap.OpenExposure)
	assert.False(t, snap.Halted)
}

func TestShield_RejectedReleasesOptimisticReservation(t *testing.T) {
	sh, _, risk := newTestShield(defaultShieldConfig())
	risk.ReserveTrade("G1") // la reserva que el Brain hizo al emitir

	sh.processFill(context.Background(), fillReport("G1", testTicker, 0, 0, domain.FillStatusRejected))

	assert.Equal(t, 0, risk.GameTrades("G1"))
	assert.Equal(t, 0, risk.Snapshot().OpenExposure)
}

func TestShield_HaltOnDailyLoss(t *testing.T) {
	sh, _, risk := newTestShield(defaultShieldConfig())

	// Compra 110 contratos a 95¢ en una línea que no se alcanza:
	// pérdida realizada 10450¢ > 10000¢.
	sh.processFill(context.Background(), fillReport("G1", testTicker, 110, 95, domain.FillStatusFilled))
	sh.processSettlement(domain.Settlement{GameID: "G1", FinalTotal: 170, At: time.Now()})

	snap := risk.Snapshot()
	assert.Equal(t, -10450, snap.RealizedPnL)
	assert.True(t, snap.Halted)
	assert.Equal(t, "daily_loss", snap.HaltReason)
}

func TestShield_HaltedBlocksBrainSignals(t *testing.T) {
	sh, _, risk := newTestShield(defaultShieldConfig())
	sh.processFill(context.Background(), fillReport("G1", testTicker, 110, 95, domain.FillStatusFilled))
	sh.processSettlement(domain.Settlement{GameID: "G1", FinalTotal: 0, At: time.Now()})
	require.True(t, risk.Snapshot().Halted)

	// Con el halt activo, el Brain descarta el próximo evento entero.
	brain, brainBus, cache, _ := newTestBrain(t, defaultBrainConfig())
	brain.risk = risk
	registerGame(brain, "G2", map[string]int{"T1": 100})
	cache.Put(domain.OrderBook{Ticker: "T1", YesAsk: 50})

	brain.process(context.Background(), scoreEvent("G2", 120))
	assert.Empty(t, drainSignals(brainBus))
}

func TestShield_HaltOnExposure(t *testing.T) {
	cfg := defaultShieldConfig()
	cfg.MaxOpenExposureCents = 1000
	sh, _, risk := newTestShield(cfg)

	sh.processFill(context.Background(), fillReport("G1", testTicker, 20, 80, domain.FillStatusFilled))

	snap := risk.Snapshot()
	assert.True(t, snap.Halted)
	assert.Equal(t, "exposure", snap.HaltReason)
}

func TestShield_WinningSettlementRealizesProfit(t *testing.T) {
	sh, _, risk := newTestShield(defaultShieldConfig())

	// 10 contratos a 80¢ en la línea 177; el total final la supera.
	sh.processFill(context.Background(), fillReport("G1", testTicker, 10, 80, domain.FillStatusFilled))
	sh.processSettlement(domain.Settlement{GameID: "G1", FinalTotal: 180, At: time.Now()})

	snap := risk.Snapshot()
	assert.Equal(t, (93-80)*10, snap.RealizedPnL)
	assert.Equal(t, 0, snap.OpenExposure)
}

func TestShield_PerGameHaltAfterMaxTrades(t *testing.T) {
	cfg := defaultShieldConfig()
	cfg.MaxTradesPerGame = 2
	sh, _, risk := newTestShield(cfg)

	for i := 0; i < 2; i++ {
		risk.ReserveTrade("G1")
		sh.processFill(context.Background(), fillReport("G1", testTicker, 1, 50, domain.FillStatusFilled))
	}

	assert.True(t, risk.GameHalted("G1"))
	assert.False(t, risk.Snapshot().Halted) // per-game, no global
}

func TestShield_AuthFailureHaltsGlobally(t *testing.T) {
	sh, _, risk := newTestShield(defaultShieldConfig())

	report := fillReport("G1", testTicker, 0, 0, domain.FillStatusError)
	report.Reason = "auth_failure"
	sh.processFill(context.Background(), report)

	snap := risk.Snapshot()
	assert.True(t, snap.Halted)
	assert.Equal(t, "auth_failure", snap.HaltReason)
}

func TestShield_InvariantTradesNeverExceedCap(t *testing.T) {
	// señales emitidas - (rejected+error) nunca supera MAX_TRADES_PER_GAME:
	// cada emisión reserva y cada fallo libera.
	sh, _, risk := newTestShield(defaultShieldConfig())

	emitted, failed := 0, 0
	for i := 0; i < 8; i++ {
		if risk.GameTrades("G1") >= 5 {
			break
		}
		risk.ReserveTrade("G1")
		emitted++
		if i%3 == 2 {
			sh.processFill(context.Background(), fillReport("G1", testTicker, 0, 0, domain.FillStatusError))
			failed++
		}
	}
	assert.LessOrEqual(t, emitted-failed, 5)
}
