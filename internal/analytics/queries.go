package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"quizroom/internal/apperr"
	"quizroom/internal/db"
	"quizroom/internal/game"
)

type Queries struct {
	DB *sql.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database.Conn()}
}

// GameLeaderboard reads a room's final standings back from the store, for
// rooms no longer held in memory.
func (q *Queries) GameLeaderboard(ctx context.Context, code string) (*GameRecap, error) {
	recap := &GameRecap{RoomCode: code}

	var host string
	var started, ended sql.NullTime
	err := q.DB.QueryRowContext(ctx, `
		SELECT host_id, status, started_at, ended_at FROM rooms WHERE code = $1
	`, code).Scan(&host, &recap.Status, &started, &ended)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("room %s: %w", code, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting room: %w", err)
	}
	if started.Valid {
		recap.StartedAt = &started.Time
	}
	if ended.Valid {
		recap.EndedAt = &ended.Time
	}

	rows, err := q.DB.QueryContext(ctx, `
		SELECT user_id, score FROM room_players
		WHERE room_code = $1
		ORDER BY score DESC, position
	`, code)
	if err != nil {
		return nil, fmt.Errorf("getting room players: %w", err)
	}
	defer rows.Close()

	recap.Leaderboard = []game.Standing{}
	for rows.Next() {
		var s game.Standing
		if err := rows.Scan(&s.Username, &s.Score); err != nil {
			return nil, err
		}
		s.IsHost = s.Username == host
		recap.Leaderboard = append(recap.Leaderboard, s)
	}
	return recap, rows.Err()
}

// PlayerLifetimeStats aggregates a player's completed games.
func (q *Queries) PlayerLifetimeStats(ctx context.Context, userID string) (*PlayerLifetimeStats, error) {
	stats := &PlayerLifetimeStats{UserID: userID}

	var answered int
	err := q.DB.QueryRowContext(ctx, `
		WITH ranked AS (
			SELECT rp.user_id, rp.score, rp.correct_answers, rp.best_streak, rp.total_questions,
				RANK() OVER (PARTITION BY rp.room_code ORDER BY rp.score DESC) AS rank
			FROM room_players rp
			JOIN rooms r ON r.code = rp.room_code
			WHERE r.status = 'completed'
		)
		SELECT
			COUNT(*),
			COALESCE(SUM(score), 0),
			COALESCE(MAX(score), 0),
			COUNT(*) FILTER (WHERE rank = 1),
			COALESCE(SUM(correct_answers), 0),
			COALESCE(MAX(best_streak), 0),
			COALESCE(SUM(total_questions), 0)
		FROM ranked
		WHERE user_id = $1
	`, userID).Scan(&stats.GamesPlayed, &stats.TotalScore, &stats.BestGame, &stats.WinCount,
		&stats.CorrectAnswers, &stats.BestStreak, &answered)
	if err != nil {
		return nil, fmt.Errorf("getting lifetime stats: %w", err)
	}
	if stats.GamesPlayed == 0 {
		return nil, fmt.Errorf("player %s has no completed games: %w", userID, apperr.ErrNotFound)
	}
	stats.Accuracy = accuracy(stats.CorrectAnswers, answered)
	return stats, nil
}

// accuracy is the percentage of correct answers, to one decimal place.
func accuracy(correct, answered int) float64 {
	if answered == 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(correct)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(answered)))
	f, _ := pct.Round(1).Float64()
	return f
}
