package models

import "time"

// FinalScore is one line of the end-of-game leaderboard.
type FinalScore struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	BonusCount int     `json:"bonusCount"`
}

// GameResult summarises a finished game for the history store.
type GameResult struct {
	RoomID    string       `json:"roomId"`
	GameID    string       `json:"gameId"`
	GameTitle string       `json:"gameTitle"`
	StartedAt time.Time    `json:"startedAt"`
	EndedAt   time.Time    `json:"endedAt"`
	Scores    []FinalScore `json:"scores"`
}

// ChatMessage is a single line of a room's chat log.
type ChatMessage struct {
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
