package sports

// sportsdataio.go — adapter de SportsData.io (REST, requiere API key).
//
//	NCAA basketball: GET {base}/GamesByDate/{date}
//	Soccer:          GET {base}/GamesByDate/{competition}/{date}
//
// La fecha va en formato 2006-JAN-02 (el formato de SportsData.io).

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// SportsDataIOFeed sondea SportsData.io para un deporte.
type SportsDataIOFeed struct {
	sport         domain.Sport
	apiKey        string
	baseURL       string
	competitionID int // 0 = sin filtro de competición (basketball)
	http          *http.Client
}

// NewSportsDataIOFeed crea el feed. competitionID aplica solo a soccer.
func NewSportsDataIOFeed(sport domain.Sport, apiKey, baseURL string, competitionID int) *SportsDataIOFeed {
	return &SportsDataIOFeed{
		sport:         sport,
		apiKey:        apiKey,
		baseURL:       strings.TrimRight(baseURL, "/"),
		competitionID: competitionID,
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
func (f *SportsDataIOFeed) Name() string {
	return fmt.Sprintf("sportsdata_io:%s", f.sport)
}

// Poll devuelve los partidos en vivo (y finales) de la fecha actual UTC.
func (f *SportsDataIOFeed) Poll(ctx context.Context) ([]domain.GameEvent, error) {
	receivedAt := time.Now()
	date := strings.ToUpper(time.Now().UTC().Format("2006-Jan-02"))

	url := fmt.Sprintf("%s/GamesByDate/%s", f.baseURL, date)
	if f.competitionID > 0 {
		url = fmt.Sprintf("%s/GamesByDate/%d/%s", f.baseURL, f.competitionID, date)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("sports.SportsDataIOFeed.Poll: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", f.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sports.SportsDataIOFeed.Poll: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sports.SportsDataIOFeed.Poll: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sports.SportsDataIOFeed.Poll: status %d", resp.StatusCode)
	}

	var games []sdioGame
	if err := json.Unmarshal(body, &games); err != nil {
		return nil, fmt.Errorf("sports.SportsDataIOFeed.Poll: decode: %w", err)
	}

	events := make([]domain.GameEvent, 0, len(games))
	for _, raw := range games {
		if ev, ok := sdioToGameEvent(raw, f.sport, f.Name(), receivedAt); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}
