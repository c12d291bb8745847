package engine

// oracle.go — agente de ingesta de marcadores.
//
// Corre un loop de polling por feed configurado. Dedup estricto por cambio
// de total (no por secuencia del proveedor: los proveedores re-emiten frames
// viejos). Un fallo transitorio de HTTP hace backoff exponencial acotado;
// el loop nunca termina por errores.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/bus"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

const (
	oracleBackoffBase = 500 * time.Millisecond
	oracleBackoffMax  = 5 * time.Second

	// Guard de clock skew: un partido cuyo kickoff está más de esto en el
	// futuro es un frame corrupto del proveedor.
	maxKickoffSkew = 10 * time.Minute
)

// Oracle sondea los score feeds y publica GameEvent al bus.
type Oracle struct {
	bus      *bus.Bus
	feeds    []ports.ScoreFeed
	interval time.Duration

	mu         sync.Mutex
	lastTotal  map[string]int // game_id → último total visto (emitido, o 0 registrado sin emitir)
	finalSeen  map[string]bool
	published  int64
}

// NewOracle crea el Oracle para los feeds dados.
func NewOracle(b *bus.Bus, feeds []ports.ScoreFeed, interval time.Duration) *Oracle {
	return &Oracle{
		bus:       b,
		feeds:     feeds,
		interval:  interval,
		lastTotal: make(map[string]int),
		finalSeen: make(map[string]bool),
	}
}

// Run lanza un loop por feed y bloquea hasta que ctx se cancele.
// Si un feed falla, loguea y sigue; los demás no se ven afectados.
func (o *Oracle) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, feed := range o.feeds {
		wg.Add(1)
		go func(f ports.ScoreFeed) {
			defer wg.Done()
			o.runFeed(ctx, f)
		}(feed)
	}
	wg.Wait()
}

func (o *Oracle) runFeed(ctx context.Context, feed ports.ScoreFeed) {
	slog.Info("oracle feed starting", "feed", feed.Name(), "interval", o.interval)
	consecutiveErrs := 0

	for {
		pollStart := time.Now()

		events, err := feed.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveErrs++
			backoff := minDuration(oracleBackoffBase*time.Duration(1<<min(consecutiveErrs, 4)), oracleBackoffMax)
			if consecutiveErrs == 1 || consecutiveErrs%50 == 0 {
				slog.Warn("oracle poll error", "feed", feed.Name(), "count", consecutiveErrs, "err", err)
			}
			if !sleepUntil(ctx, backoff) {
				return
			}
			continue
		}
		consecutiveErrs = 0

		for _, ev := range events {
			o.maybePublish(ctx, ev)
		}

		elapsed := time.Since(pollStart)
		if !sleepUntil(ctx, o.interval-elapsed) {
			return
		}
	}
}

// maybePublish aplica el guard de skew y el dedup por total, y publica.
func (o *Oracle) maybePublish(ctx context.Context, ev domain.GameEvent) {
	if !ev.StartTime.IsZero() && time.Until(ev.StartTime) > maxKickoffSkew {
		slog.Debug("oracle dropped future-kickoff record", "game_id", ev.GameID, "start", ev.StartTime)
		return
	}

	o.mu.Lock()
	if ev.IsFinal {
		if o.finalSeen[ev.GameID] {
			o.mu.Unlock()
			return
		}
		o.finalSeen[ev.GameID] = true
		o.lastTotal[ev.GameID] = ev.TotalScore
		o.mu.Unlock()
		o.publish(ctx, ev)
		return
	}

	prev, seen := o.lastTotal[ev.GameID]
	if seen && prev == ev.TotalScore {
		o.mu.Unlock()
		return
	}
	if !seen && ev.TotalScore == 0 {
		// Primer avistamiento sin puntos: registrar sin emitir.
		o.lastTotal[ev.GameID] = 0
		o.mu.Unlock()
		return
	}
	o.lastTotal[ev.GameID] = ev.TotalScore
	o.mu.Unlock()

	o.publish(ctx, ev)
}

func (o *Oracle) publish(ctx context.Context, ev domain.GameEvent) {
	if err := o.bus.GameEvents.Publish(ctx, ev); err != nil {
		return
	}
	o.mu.Lock()
	o.published++
	o.mu.Unlock()
	slog.Debug("oracle published",
		"game_id", ev.GameID,
		"sport", ev.Sport,
		"score", formatScore(ev),
		"total", ev.TotalScore,
		"final", ev.IsFinal,
		"provider", ev.Provider,
	)
}

func formatScore(ev domain.GameEvent) string {
	return fmt.Sprintf("%d-%d", ev.AwayScore, ev.HomeScore)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func sleepUntil(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
