package sports

import "encoding/json"

// ESPN scoreboard DTOs.

type espnScoreboard struct {
	Events []espnEvent `json:"events"`
}

type espnEvent struct {
	ID           string            `json:"id"`
	Date         string            `json:"date"`
	Competitions []espnCompetition `json:"competitions"`
}

type espnCompetition struct {
	Status      espnStatus       `json:"status"`
	Competitors []espnCompetitor `json:"competitors"`
}

type espnStatus struct {
	Period       int            `json:"period"`
	DisplayClock string         `json:"displayClock"`
	Type         espnStatusType `json:"type"`
}

type espnStatusType struct {
	Name string `json:"name"`
}

type espnCompetitor struct {
	HomeAway string   `json:"homeAway"`
	Score    string   `json:"score"`
	Team     espnTeam `json:"team"`
}

type espnTeam struct {
	Abbreviation string `json:"abbreviation"`
}

// SportsData.io DTOs. Los scores llegan a veces como null — los campos
// *int quedan en nil y el normalizador los trata como 0.

type sdioGame struct {
	GameID               json.Number `json:"GameID"`
	GameIDAlt            json.Number `json:"GameId"`
	Status               string      `json:"Status"`
	HomeTeam             string      `json:"HomeTeam"`
	AwayTeam             string      `json:"AwayTeam"`
	HomeTeamScore        *int        `json:"HomeTeamScore"`
	AwayTeamScore        *int        `json:"AwayTeamScore"`
	Quarter              string      `json:"Quarter"`
	Period               json.Number `json:"Period"`
	TimeRemainingMinutes *int        `json:"TimeRemainingMinutes"`
	TimeRemainingSeconds *int        `json:"TimeRemainingSeconds"`
	DateTime             string      `json:"DateTime"`
}
