package sports

// espn.go — adapter del scoreboard público de ESPN. Gratis, sin API key.
//
//	NCAA basketball:  .../sports/basketball/mens-college-basketball/scoreboard
//	Premier League:   .../sports/soccer/eng.1/scoreboard
//	Champions League: .../sports/soccer/UEFA.CHAMPIONS/scoreboard
//
// Reemplazo drop-in de SportsDataIOFeed detrás de ports.ScoreFeed.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

const espnBaseURL = "https://site.api.espn.com/apis/site/v2/sports"

// ESPNFeed sondea el scoreboard de ESPN para un deporte.
type ESPNFeed struct {
	sport domain.Sport
	url   string
	http  *http.Client
}

// NewESPNFeed crea el feed para un deporte. espnPath viene de markets.yaml,
// p.ej. "basketball/mens-college-basketball".
func NewESPNFeed(sport domain.Sport, espnPath string) *ESPNFeed {
	return &ESPNFeed{
		sport: sport,
		url:   fmt.Sprintf("%s/%s/scoreboard", espnBaseURL, espnPath),
		http: &http.Client{
			Timeout: 4 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Name implementa ports.ScoreFeed.
func (f *ESPNFeed) Name() string {
	return fmt.Sprintf("espn:%s", f.sport)
}

// Poll devuelve los partidos en vivo (y finales) del scoreboard.
// Un registro malformado se saltea; nunca tumba el loop del Oracle.
func (f *ESPNFeed) Poll(ctx context.Context) ([]domain.GameEvent, error) {
	receivedAt := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("sports.ESPNFeed.Poll: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sports.ESPNFeed.Poll: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sports.ESPNFeed.Poll: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sports.ESPNFeed.Poll: status %d", resp.StatusCode)
	}

	var sb espnScoreboard
	if err := json.Unmarshal(body, &sb); err != nil {
		return nil, fmt.Errorf("sports.ESPNFeed.Poll: decode: %w", err)
	}

	events := make([]domain.GameEvent, 0, len(sb.Events))
	for _, raw := range sb.Events {
		if ev, ok := espnToGameEvent(raw, f.sport, f.Name(), receivedAt); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}
