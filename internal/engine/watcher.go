package engine

// watcher.go — agente de estado de mercado.
//
// El trabajo pesado (reconexión, secuencias, re-snapshots) vive en el
// stream client; el Watcher lo corre, expone la suscripción dinámica al
// Brain y drena el canal de telemetría de updates.

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/alejandrodnm/kalshibot/internal/bus"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// Watcher mantiene la réplica local del orderbook vía el stream del exchange.
type Watcher struct {
	bus     *bus.Bus
	stream  ports.MarketStream
	cache   *domain.BookCache
	risk    *domain.RiskState
	updates atomic.Int64
}

// NewWatcher crea el Watcher sobre un stream y una cache ya construidos.
func NewWatcher(b *bus.Bus, stream ports.MarketStream, cache *domain.BookCache, risk *domain.RiskState) *Watcher {
	return &Watcher{bus: b, stream: stream, cache: cache, risk: risk}
}

// Subscribe registra tickers de interés. La llama el Brain al construir el
// threshold map de un partido.
func (w *Watcher) Subscribe(tickers []string) {
	w.stream.Subscribe(tickers)
}

// Run corre el stream y el drenaje de telemetría hasta que ctx se cancele.
// El stream solo termina por sí mismo ante un fallo de auth, que acá se
// traduce a halt global: sin stream confiable no hay edge evaluable.
func (w *Watcher) Run(ctx context.Context) {
	go w.drainUpdates(ctx)
	if err := w.stream.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("watcher stream exited", "err", err)
		w.risk.Halt("stream_auth_failure")
	}
}

func (w *Watcher) drainUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.bus.MarketUpdates.Recv():
			if n := w.updates.Add(1); n%1000 == 0 {
				slog.Debug("market updates applied", "count", n, "cached_tickers", w.cache.Len())
			}
		}
	}
}
