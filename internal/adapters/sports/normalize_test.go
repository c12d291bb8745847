package sports

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

func espnLiveEvent(homeScore, awayScore string, status string) espnEvent {
	return espnEvent{
		ID:   "401234",
		Date: "2026-02-19T23:00Z",
		Competitions: []espnCompetition{{
			Status: espnStatus{Period: 2, DisplayClock: "04:22", Type: espnStatusType{Name: status}},
			Competitors: []espnCompetitor{
				{HomeAway: "home", Score: homeScore, Team: espnTeam{Abbreviation: "RADF"}},
				{HomeAway: "away", Score: awayScore, Team: espnTeam{Abbreviation: "WEBB"}},
			},
		}},
	}
}

func TestESPNNormalize_LiveGame(t *testing.T) {
	ev, ok := espnToGameEvent(espnLiveEvent("91", "87", "STATUS_IN_PROGRESS"),
		domain.SportNCAABasketball, "espn:ncaa_basketball", time.Now())

	require.True(t, ok)
	assert.Equal(t, "401234", ev.GameID)
	assert.Equal(t, "RADF", ev.HomeTeam)
	assert.Equal(t, "WEBB", ev.AwayTeam)
	assert.Equal(t, 91, ev.HomeScore)
	assert.Equal(t, 87, ev.AwayScore)
	assert.Equal(t, 178, ev.TotalScore) // invariante total = home + away
	assert.Equal(t, 2, ev.Period)
	assert.False(t, ev.IsFinal)
	assert.False(t, ev.StartTime.IsZero())
}

func TestESPNNormalize_FinalGame(t *testing.T) {
	ev, ok := espnToGameEvent(espnLiveEvent("91", "87", "STATUS_FINAL"),
		domain.SportNCAABasketball, "espn:ncaa_basketball", time.Now())
	require.True(t, ok)
	assert.True(t, ev.IsFinal)
}

func TestESPNNormalize_ScheduledGameSkipped(t *testing.T) {
	_, ok := espnToGameEvent(espnLiveEvent("0", "0", "STATUS_SCHEDULED"),
		domain.SportNCAABasketball, "espn", time.Now())
	assert.False(t, ok)
}

func TestESPNNormalize_MalformedScoreSkipped(t *testing.T) {
	_, ok := espnToGameEvent(espnLiveEvent("", "87", "STATUS_IN_PROGRESS"),
		domain.SportNCAABasketball, "espn", time.Now())
	assert.False(t, ok)
}

func TestESPNNormalize_MissingCompetitorsSkipped(t *testing.T) {
	raw := espnEvent{ID: "x", Competitions: []espnCompetition{{
		Status: espnStatus{Type: espnStatusType{Name: "STATUS_IN_PROGRESS"}},
	}}}
	_, ok := espnToGameEvent(raw, domain.SportNCAABasketball, "espn", time.Now())
	assert.False(t, ok)
}

func sdioLiveGame(status string) sdioGame {
	h, a := 91, 87
	tm, ts := 4, 22
	return sdioGame{
		GameID:               json.Number("20477"),
		Status:               status,
		HomeTeam:             "RADF",
		AwayTeam:             "WEBB",
		HomeTeamScore:        &h,
		AwayTeamScore:        &a,
		Quarter:              "2",
		TimeRemainingMinutes: &tm,
		TimeRemainingSeconds: &ts,
		DateTime:             "2026-02-19T18:00:00",
	}
}

func TestSDIONormalize_LiveGame(t *testing.T) {
	ev, ok := sdioToGameEvent(sdioLiveGame("InProgress"), domain.SportNCAABasketball, "sportsdata_io:ncaa_basketball", time.Now())

	require.True(t, ok)
	assert.Equal(t, "20477", ev.GameID)
	assert.Equal(t, 178, ev.TotalScore)
	assert.Equal(t, "Q2 04:22", ev.GameClock)
	assert.False(t, ev.IsFinal)
}

func TestSDIONormalize_FinalVariants(t *testing.T) {
	for _, status := range []string{"Final", "F/OT", "F/2OT"} {
		ev, ok := sdioToGameEvent(sdioLiveGame(status), domain.SportNCAABasketball, "sdio", time.Now())
		require.True(t, ok, status)
		assert.True(t, ev.IsFinal, status)
	}
}

func TestSDIONormalize_NullScoresAreZero(t *testing.T) {
	g := sdioLiveGame("InProgress")
	g.HomeTeamScore = nil
	g.AwayTeamScore = nil
	ev, ok := sdioToGameEvent(g, domain.SportNCAABasketball, "sdio", time.Now())
	require.True(t, ok)
	assert.Equal(t, 0, ev.TotalScore)
}

func TestSDIONormalize_ScheduledSkipped(t *testing.T) {
	_, ok := sdioToGameEvent(sdioLiveGame("Scheduled"), domain.SportNCAABasketball, "sdio", time.Now())
	assert.False(t, ok)
}
