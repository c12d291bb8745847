package storage

// journal.go — journal de fills en SQLite (pure Go, sin CGo).
//
// Write-only por diseño: el proceso nunca lo lee al arrancar. Todo el estado
// operativo vive en memoria y se pierde en el restart; esto es solo el
// registro de auditoría de lo que el Sniper reportó.

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS fills (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    signal_id   TEXT     NOT NULL,
    order_id    TEXT,
    ticker      TEXT     NOT NULL,
    side        TEXT     NOT NULL,
    game_id     TEXT     NOT NULL,
    filled_qty  INTEGER  NOT NULL DEFAULT 0,
    avg_price   INTEGER  NOT NULL DEFAULT 0,
    status      TEXT     NOT NULL,
    reason      TEXT,
    latency_us  INTEGER  NOT NULL DEFAULT 0,
    recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_game   ON fills(game_id);
CREATE INDEX IF NOT EXISTS idx_fills_ticker ON fills(ticker);
`

// FillJournal implementa ports.FillJournal sobre SQLite.
type FillJournal struct {
	db *sql.DB
	mu sync.Mutex
}

// NewFillJournal abre (o crea) la base en la ruta dada y aplica el schema.
func NewFillJournal(path string) (*FillJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewFillJournal: open %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewFillJournal: apply schema: %w", err)
	}
	return &FillJournal{db: db}, nil
}

// Append persiste un FillReport. Un error acá no corta el pipeline:
// el caller lo loguea y sigue.
func (j *FillJournal) Append(ctx context.Context, r domain.FillReport) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO fills (signal_id, order_id, ticker, side, game_id,
			filled_qty, avg_price, status, reason, latency_us, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SignalID, r.OrderID, r.Ticker, string(r.Side), r.GameID,
		r.FilledQuantity, r.AvgPrice, string(r.Status), r.Reason,
		r.Latency.Microseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.FillJournal.Append: %w", err)
	}
	return nil
}

// Close cierra la conexión limpiamente.
func (j *FillJournal) Close() error {
	return j.db.Close()
}
