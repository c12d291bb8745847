package sports

// normalize.go — traduce los JSON específicos de cada proveedor a GameEvent.
// El Oracle y el Brain nunca ven estructuras del proveedor.

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

var espnLiveStatuses = map[string]bool{
	"STATUS_IN_PROGRESS": true,
	"STATUS_HALFTIME":    true,
	"STATUS_DELAYED":     true,
	"STATUS_EXTRA_TIME":  true,
	"STATUS_PENALTY":     true,
}

var espnFinalStatuses = map[string]bool{
	"STATUS_FINAL":     true,
	"STATUS_FINAL_OT":  true,
	"STATUS_FULL_TIME": true,
}

// espnToGameEvent normaliza un evento del scoreboard de ESPN.
// Devuelve (zero, false) si el partido no está en vivo ni terminado,
// o si el registro viene malformado (esto último se loguea acá) — el
// caller lo saltea.
func espnToGameEvent(raw espnEvent, sport domain.Sport, provider string, receivedAt time.Time) (domain.GameEvent, bool) {
	if len(raw.Competitions) == 0 {
		slog.Debug("espn: malformed record skipped", "id", raw.ID, "why", "no competitions")
		return domain.GameEvent{}, false
	}
	comp := raw.Competitions[0]
	statusName := comp.Status.Type.Name
	isFinal := espnFinalStatuses[statusName]
	if !espnLiveStatuses[statusName] && !isFinal {
		return domain.GameEvent{}, false
	}

	var home, away *espnCompetitor
	for i := range comp.Competitors {
		switch comp.Competitors[i].HomeAway {
		case "home":
			home = &comp.Competitors[i]
		case "away":
			away = &comp.Competitors[i]
		}
	}
	if home == nil || away == nil {
		slog.Debug("espn: malformed record skipped", "id", raw.ID, "why", "missing home/away competitor")
		return domain.GameEvent{}, false
	}

	homeScore, err1 := strconv.Atoi(home.Score)
	awayScore, err2 := strconv.Atoi(away.Score)
	if err1 != nil || err2 != nil {
		slog.Debug("espn: malformed record skipped", "id", raw.ID, "why", "non-numeric score")
		return domain.GameEvent{}, false
	}

	ev := domain.NewGameEvent(sport, raw.ID, home.Team.Abbreviation, away.Team.Abbreviation,
		homeScore, awayScore, receivedAt)
	ev.EventID = fmt.Sprintf("%s-%d-%d", raw.ID, homeScore, awayScore)
	ev.GameClock = comp.Status.DisplayClock
	ev.Period = comp.Status.Period
	ev.IsFinal = isFinal
	ev.Provider = provider
	if t, err := time.Parse("2006-01-02T15:04Z", raw.Date); err == nil {
		ev.StartTime = t
	} else if t, err := time.Parse(time.RFC3339, raw.Date); err == nil {
		ev.StartTime = t
	}
	return ev, true
}

var sdioLiveStatuses = map[string]bool{
	"InProgress":   true,
	"Halftime":     true,
	"DelayedStart": true,
	"Delayed":      true,
}

var sdioFinalStatuses = map[string]bool{
	"Final":   true,
	"F/OT":    true,
	"F/2OT":   true,
	"F/3OT":   true,
	"Forfeit": true,
}

// sdioToGameEvent normaliza un partido de SportsData.io.
func sdioToGameEvent(raw sdioGame, sport domain.Sport, provider string, receivedAt time.Time) (domain.GameEvent, bool) {
	isFinal := sdioFinalStatuses[raw.Status]
	if !sdioLiveStatuses[raw.Status] && !isFinal {
		return domain.GameEvent{}, false
	}

	gameID := raw.GameID.String()
	if gameID == "" {
		gameID = raw.GameIDAlt.String()
	}
	if gameID == "" {
		return domain.GameEvent{}, false
	}

	homeScore, awayScore := 0, 0
	if raw.HomeTeamScore != nil {
		homeScore = *raw.HomeTeamScore
	}
	if raw.AwayTeamScore != nil {
		awayScore = *raw.AwayTeamScore
	}

	period := 0
	if raw.Quarter != "" {
		period, _ = strconv.Atoi(raw.Quarter)
	}
	if period == 0 {
		if p, err := raw.Period.Int64(); err == nil {
			period = int(p)
		}
	}

	ev := domain.NewGameEvent(sport, gameID, raw.HomeTeam, raw.AwayTeam,
		homeScore, awayScore, receivedAt)
	ev.EventID = fmt.Sprintf("%s-%d-%d", gameID, homeScore, awayScore)
	ev.Period = period
	if raw.TimeRemainingMinutes != nil && raw.TimeRemainingSeconds != nil {
		ev.GameClock = fmt.Sprintf("Q%d %02d:%02d", period, *raw.TimeRemainingMinutes, *raw.TimeRemainingSeconds)
	} else {
		ev.GameClock = fmt.Sprintf("Q%d", period)
	}
	ev.IsFinal = isFinal
	ev.Provider = provider
	if t, err := time.Parse("2006-01-02T15:04:05", raw.DateTime); err == nil {
		ev.StartTime = t
	}
	return ev, true
}
