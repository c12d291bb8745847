package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// ScoreFeed es un adapter de un proveedor de marcadores en vivo.
// Cada Poll devuelve los partidos en curso ya normalizados a GameEvent;
// el pipeline compone un feed por deporte configurado y nunca ve
// estructuras específicas del proveedor.
type ScoreFeed interface {
	// Name identifica al proveedor para logging, p.ej. "espn:ncaa_basketball".
	Name() string

	// Poll consulta los partidos en curso. Un error es transitorio:
	// el Oracle reintenta con backoff y el loop nunca termina.
	Poll(ctx context.Context) ([]domain.GameEvent, error)
}
