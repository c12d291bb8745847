package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskState_FillAndSettlementFlow(t *testing.T) {
	r := NewRiskState()

	r.ApplyFill(800) // 10 contratos a 80¢
	snap := r.Snapshot()
	assert.Equal(t, 800, snap.OpenExposure)
	assert.Equal(t, 0, snap.RealizedPnL)

	// Settlement ganador: (93-80)*10 = 130¢ de P&L, libera el costo.
	r.ApplySettlement(130, 800)
	snap = r.Snapshot()
	assert.Equal(t, 0, snap.OpenExposure)
	assert.Equal(t, 130, snap.RealizedPnL)
}

func TestRiskState_SettlementLoss(t *testing.T) {
	r := NewRiskState()
	r.ApplyFill(500)
	r.ApplySettlement(-500, 500)
	snap := r.Snapshot()
	assert.Equal(t, -500, snap.RealizedPnL)
	assert.Equal(t, 0, snap.OpenExposure)
}

func TestRiskState_HaltIsSticky(t *testing.T) {
	r := NewRiskState()
	r.Halt("daily_loss")
	r.Halt("exposure") // no pisa la primera razón

	snap := r.Snapshot()
	assert.True(t, snap.Halted)
	assert.Equal(t, "daily_loss", snap.HaltReason)
}

func TestRiskState_ReserveAndRelease(t *testing.T) {
	r := NewRiskState()

	assert.Equal(t, 1, r.ReserveTrade("g1"))
	assert.Equal(t, 2, r.ReserveTrade("g1"))
	assert.Equal(t, 2, r.GameTrades("g1"))

	r.ReleaseTrade("g1")
	assert.Equal(t, 1, r.GameTrades("g1"))

	// Release de más no baja de cero.
	r.ReleaseTrade("g1")
	r.ReleaseTrade("g1")
	assert.Equal(t, 0, r.GameTrades("g1"))
}

func TestRiskState_GameHalt(t *testing.T) {
	r := NewRiskState()
	assert.False(t, r.GameHalted("g1"))
	r.HaltGame("g1")
	assert.True(t, r.GameHalted("g1"))
	assert.False(t, r.GameHalted("g2"))
}

func TestRiskState_TradeCountsCopy(t *testing.T) {
	r := NewRiskState()
	r.ReserveTrade("g1")
	counts := r.TradeCounts()
	counts["g1"] = 99
	assert.Equal(t, 1, r.GameTrades("g1"))
}
