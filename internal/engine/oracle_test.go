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

func oracleEvent(gameID string, home, away int) domain.GameEvent {
	ev := domain.NewGameEvent(domain.SportNCAABasketball, gameID, "RADF", "WEBB", home, away, time.Now())
	ev.Provider = "test"
	return ev
}

func newTestOracle() (*Oracle, *bus.Bus) {
	b := bus.New()
	return NewOracle(b, nil, 750*time.Millisecond), b
}

func countGameEvents(b *bus.Bus) int {
	n := 0
	for {
		select {
		case <-b.GameEvents.Recv():
			n++
		default:
			return n
		}
	}
}

func TestOracle_DedupByTotalChange(t *testing.T) {
	o, b := newTestOracle()
	ctx := context.Background()

	// Dos polls consecutivos con el mismo total: un solo evento.
	o.maybePublish(ctx, oracleEvent("G1", 50, 48))
	o.maybePublish(ctx, oracleEvent("G1", 50, 48))
	assert.Equal(t, 1, countGameEvents(b))

	// Cambio de total: nuevo evento.
	o.maybePublish(ctx, oracleEvent("G1", 52, 48))
	assert.Equal(t, 1, countGameEvents(b))
}

func TestOracle_SameTotalDifferentSplitSuppressed(t *testing.T) {
	// Dedup es estrictamente por total, no por par de scores.
	o, b := newTestOracle()
	ctx := context.Background()

	o.maybePublish(ctx, oracleEvent("G1", 50, 48))
	o.maybePublish(ctx, oracleEvent("G1", 48, 50))
	assert.Equal(t, 1, countGameEvents(b))
}

func TestOracle_FirstSeenZeroTotalNotEmitted(t *testing.T) {
	o, b := newTestOracle()
	ctx := context.Background()

	o.maybePublish(ctx, oracleEvent("G1", 0, 0))
	assert.Equal(t, 0, countGameEvents(b))

	// El primer punto sí se emite.
	o.maybePublish(ctx, oracleEvent("G1", 2, 0))
	assert.Equal(t, 1, countGameEvents(b))
}

func TestOracle_FirstSeenNonzeroEmitted(t *testing.T) {
	o, b := newTestOracle()
	o.maybePublish(context.Background(), oracleEvent("G1", 30, 28))
	assert.Equal(t, 1, countGameEvents(b))
}

func TestOracle_ClockSkewGuard(t *testing.T) {
	o, b := newTestOracle()
	ev := oracleEvent("G1", 10, 8)
	ev.StartTime = time.Now().Add(time.Hour) // kickoff en el futuro: frame corrupto

	o.maybePublish(context.Background(), ev)
	assert.Equal(t, 0, countGameEvents(b))
}

func TestOracle_FinalEmittedOnceEvenWithoutTotalChange(t *testing.T) {
	o, b := newTestOracle()
	ctx := context.Background()

	o.maybePublish(ctx, oracleEvent("G1", 90, 88))
	require.Equal(t, 1, countGameEvents(b))

	final := oracleEvent("G1", 90, 88)
	final.IsFinal = true
	o.maybePublish(ctx, final)
	o.maybePublish(ctx, final) // re-emisión del proveedor: suprimida

	events := drainAllGameEvents(b)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsFinal)
}

func drainAllGameEvents(b *bus.Bus) []domain.GameEvent {
	var out []domain.GameEvent
	for {
		select {
		case ev := <-b.GameEvents.Recv():
			out = append(out, ev)
		default:
			return out
		}
	}
}
