package strategy

// Net payout de un contrato YES ganador después del fee del exchange:
// fee del 7% sobre el payout de 100 → 93 cents netos. Cualquier ask por
// debajo de eso, en un contrato que el marcador ya garantizó, es edge.
const (
	ContractPayoutCents = 100
	FeeRate             = 0.07
	NetPayoutCents      = 93
)

// Edge devuelve el edge en cents para un ask YES dado. Puede ser negativo.
func Edge(yesAskCents int) int {
	return NetPayoutCents - yesAskCents
}

// HasEdge devuelve true si el edge alcanza el mínimo configurado.
func HasEdge(yesAskCents, minEdgeCents int) bool {
	return Edge(yesAskCents) >= minEdgeCents
}

// MaxTradeablePrice es el ask YES máximo que todavía deja minEdgeCents.
func MaxTradeablePrice(minEdgeCents int) int {
	return NetPayoutCents - minEdgeCents
}

// LimitPrice calcula el precio límite de la orden: ask más la tolerancia de
// slippage, acotado por el máximo tradeable más la misma tolerancia.
func LimitPrice(yesAskCents, slippageCents, minEdgeCents int) int {
	return min(yesAskCents+slippageCents, MaxTradeablePrice(minEdgeCents)+slippageCents)
}
