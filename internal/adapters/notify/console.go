package notify

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// Console implementa ports.Notifier: imprime el resumen de sesión al cierre.
type Console struct {
	out io.Writer
}

// NewConsole crea un notifier de consola sobre stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// SessionSummary imprime los fills de la sesión, el estado de riesgo final
// y los contadores de drops del bus.
func (c *Console) SessionSummary(s domain.SessionSummary) {
	fmt.Fprintf(c.out, "\n=== session summary ===\n")
	fmt.Fprintf(c.out, "realized P&L: %s   open exposure: %s\n",
		cents(s.RealizedPnL), cents(s.OpenExposure))
	if s.Halted {
		fmt.Fprintf(c.out, "HALTED: %s\n", s.HaltReason)
	}

	if len(s.Fills) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Ticker", "Side", "Qty", "AvgPx", "Status", "Latency")
		for _, f := range s.Fills {
			table.Append(
				f.Ticker,
				string(f.Side),
				fmt.Sprintf("%d", f.Quantity),
				fmt.Sprintf("%d¢", f.AvgPrice),
				string(f.Status),
				fmt.Sprintf("%.1fms", float64(f.Latency.Microseconds())/1000),
			)
		}
		table.Render()
	} else {
		fmt.Fprintln(c.out, "no fills this session")
	}

	if len(s.TradesPerGame) > 0 {
		games := make([]string, 0, len(s.TradesPerGame))
		for g := range s.TradesPerGame {
			games = append(games, g)
		}
		sort.Strings(games)
		fmt.Fprintln(c.out, "trades per game:")
		for _, g := range games {
			fmt.Fprintf(c.out, "  %s: %d\n", g, s.TradesPerGame[g])
		}
	}

	for ch, n := range s.DroppedByQueue {
		if n > 0 {
			fmt.Fprintf(c.out, "dropped on %s: %d\n", ch, n)
		}
	}
}

func cents(v int) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}
