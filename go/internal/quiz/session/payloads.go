package session

import (
	"time"

	"github.com/mcdev12/quizhub/go/internal/models"
)

type QuestionPayload struct {
	Question models.Question `json:"question"`
	Index    int             `json:"index"`
	Total    int             `json:"total"`
	Duration int             `json:"duration"`
}

type StartingPayload struct {
	Title   string `json:"title"`
	Seconds int    `json:"seconds"`
}

type PlayerInfo struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Answered bool    `json:"answered"`
}

type PlayersPayload struct {
	Players []PlayerInfo `json:"players"`
}

type LobbyPayload struct {
	Locked bool `json:"locked"`
}

type HistogramPayload struct {
	Counts []int `json:"counts"`
}

type ScoresPayload struct {
	Scores []models.FinalScore `json:"scores"`
}

type GradingAnswer struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type GradingPayload struct {
	Question string          `json:"question"`
	Points   int             `json:"points"`
	Answers  []GradingAnswer `json:"answers"`
}

type BannedPayload struct {
	Reason string `json:"reason"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

// RoomSummary is the administrative view of a room.
type RoomSummary struct {
	RoomID    string    `json:"roomId"`
	GameID    string    `json:"gameId"`
	GameTitle string    `json:"gameTitle"`
	State     string    `json:"state"`
	Players   int       `json:"players"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"createdAt"`
}
