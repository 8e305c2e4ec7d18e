package analytics

import (
	"time"

	"quizroom/internal/game"
)

// GameRecap is the stored result of one room.
type GameRecap struct {
	RoomCode    string          `json:"code"`
	Status      string          `json:"status"`
	StartedAt   *time.Time      `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at"`
	Leaderboard []game.Standing `json:"leaderboard"`
}

type PlayerLifetimeStats struct {
	UserID         string  `json:"username"`
	GamesPlayed    int     `json:"games_played"`
	TotalScore     int     `json:"total_score"`
	BestGame       int     `json:"best_game"`
	WinCount       int     `json:"wins"`
	CorrectAnswers int     `json:"correct_answers"`
	BestStreak     int     `json:"best_streak"`
	Accuracy       float64 `json:"accuracy"`
}
