package domain

import "time"

// OrderRequest es una orden límite de compra lista para firmar y enviar.
type OrderRequest struct {
	Ticker        string
	Side          Side
	Quantity      int
	LimitPrice    int // cents
	ClientOrderID string
}

// OrderResult es la respuesta del exchange a una orden.
type OrderResult struct {
	OrderID        string
	Status         string // "executed" | "resting" | "canceled" | "rejected" ...
	FilledQuantity int
	AvgPrice       int // cents; 0 si no hubo fill
}

// FillRow es una fila del resumen de sesión.
type FillRow struct {
	Ticker   string
	Side     Side
	Quantity int
	AvgPrice int
	Status   FillStatus
	Latency  time.Duration
	At       time.Time
}

// SessionSummary es el estado final de la sesión para el notifier.
type SessionSummary struct {
	Fills          []FillRow
	TradesPerGame  map[string]int
	RealizedPnL    int // cents
	OpenExposure   int // cents
	Halted         bool
	HaltReason     string
	DroppedByQueue map[string]int64
}
