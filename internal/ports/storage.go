package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// FillJournal persiste cada FillReport como registro de auditoría.
// Write-only: nunca se lee al arrancar — el estado del proceso es
// puramente en memoria por diseño.
type FillJournal interface {
	Append(ctx context.Context, report domain.FillReport) error
	Close() error
}

// Notifier presenta el resumen de la sesión al usuario.
type Notifier interface {
	// SessionSummary imprime fills, contadores por partido y P&L al cierre.
	SessionSummary(summary domain.SessionSummary)
}
