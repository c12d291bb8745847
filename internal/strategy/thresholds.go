package strategy

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// ThresholdEntry es una línea tradeable de un partido.
// Triggered se latchea tras la primera señal: una línea nunca dispara dos veces.
type ThresholdEntry struct {
	Ticker    string
	Line      int // el mercado resuelve YES si total >= Line
	Triggered bool
}

// ThresholdMap mapea (sport, game_id) → líneas ordenadas ascendentes.
// Se construye una vez por partido e inmutable salvo el latch Triggered.
type ThresholdMap struct {
	mu      sync.Mutex
	entries map[domain.Sport]map[string][]*ThresholdEntry
}

// NewThresholdMap crea un mapa vacío.
func NewThresholdMap() *ThresholdMap {
	return &ThresholdMap{entries: make(map[domain.Sport]map[string][]*ThresholdEntry)}
}

// Register registra las líneas de un partido. Idempotente: si el partido ya
// está registrado, no se reemplaza (el mapa es inmutable por vida del partido).
func (m *ThresholdMap) Register(sport domain.Sport, gameID string, entries []*ThresholdEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[sport] == nil {
		m.entries[sport] = make(map[string][]*ThresholdEntry)
	}
	if _, ok := m.entries[sport][gameID]; ok {
		return
	}
	m.entries[sport][gameID] = entries
	slog.Info("threshold map registered",
		"sport", sport, "game_id", gameID, "lines", len(entries))
}

// Unregister elimina un partido terminado.
func (m *ThresholdMap) Unregister(sport domain.Sport, gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.entries[sport]; ok {
		delete(g, gameID)
	}
}

// Entries devuelve las líneas registradas de un partido (nil si no hay).
func (m *ThresholdMap) Entries(sport domain.Sport, gameID string) []*ThresholdEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.entries[sport]; ok {
		return g[gameID]
	}
	return nil
}

// Has devuelve true si el partido ya tiene mapa construido.
func (m *ThresholdMap) Has(sport domain.Sport, gameID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.entries[sport]
	if !ok {
		return false
	}
	_, ok = g[gameID]
	return ok
}

// BuildEntries construye las líneas de un partido a partir de los tickers de
// mercado de la serie. Un ticker entra si parsea con la gramática de la serie
// y su run de equipos se resuelve contra los códigos del partido; si no
// resuelve, el mercado queda fuera (no-match no es fatal).
//
// Las líneas por debajo del total actual entran ya latcheadas: se cruzaron
// antes de que viéramos el partido y el mercado ya repreció. Una línea igual
// al total actual queda viva — el cruce es el que disparó esta construcción.
func BuildEntries(tickers []string, seriesPrefix string, ev domain.GameEvent, resolver *Resolver) []*ThresholdEntry {
	entries := make([]*ThresholdEntry, 0, len(tickers))
	for _, t := range tickers {
		parsed, err := ParseTicker(t, seriesPrefix)
		if err != nil {
			slog.Debug("ticker descartado", "ticker", t, "err", err)
			continue
		}
		if _, _, ok := resolver.SplitTeamRun(parsed.TeamRun, ev.AwayTeam, ev.HomeTeam); !ok {
			slog.Debug("ticker sin resolución de equipos",
				"ticker", t, "away", ev.AwayTeam, "home", ev.HomeTeam)
			continue
		}
		entries = append(entries, &ThresholdEntry{
			Ticker:    t,
			Line:      parsed.Line,
			Triggered: parsed.Line < ev.TotalScore,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Line < entries[j].Line })
	return entries
}
