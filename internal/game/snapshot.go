package game

import (
	"fmt"
	"sort"
	"time"

	"quizroom/internal/apperr"
)

// Snapshot is an immutable view of a room. Treat its slices as read-only: one
// snapshot is shared by every subscriber it is broadcast to.
type Snapshot struct {
	Code            string         `json:"code"`
	Status          Status         `json:"status"`
	Host            string         `json:"host"`
	CurrentQuestion int            `json:"current_question"`
	TotalQuestions  int            `json:"total_questions"`
	MaxPlayers      int            `json:"max_players"`
	Question        *QuestionView  `json:"current_question_data"`
	AnswerKey       []QuestionView `json:"answer_key,omitempty"`
	Players         []PlayerView   `json:"players"`
	Version         uint64         `json:"version"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at"`
	EndedAt         *time.Time     `json:"ended_at"`
}

// QuestionView carries the correct answer only in a completed game's answer key.
type QuestionView struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	TimeLimit     float64  `json:"time_limit"`
	CorrectAnswer *int     `json:"correct_answer,omitempty"`
}

type PlayerView struct {
	Username       string  `json:"username"`
	Color          string  `json:"color"`
	Score          int     `json:"score"`
	IsReady        bool    `json:"is_ready"`
	HasAnswered    bool    `json:"has_answered"`
	IsHost         bool    `json:"is_host"`
	CorrectAnswers int     `json:"correct_answers"`
	CurrentStreak  int     `json:"current_streak"`
	BestStreak     int     `json:"best_streak"`
	AverageTime    float64 `json:"average_time"`
	TotalQuestions int     `json:"total_questions"`
}

func (g *Game) Snapshot() Snapshot {
	snap := Snapshot{
		Code:            g.code,
		Status:          g.status,
		Host:            g.hostID,
		CurrentQuestion: g.current,
		TotalQuestions:  g.quiz.Len(),
		MaxPlayers:      g.maxPlayers,
		Version:         g.version,
		CreatedAt:       g.createdAt,
		StartedAt:       timePtr(g.startedAt),
		EndedAt:         timePtr(g.endedAt),
	}

	switch g.status {
	case StatusInProgress:
		if g.current < g.quiz.Len() {
			q := g.quiz.Questions[g.current]
			snap.Question = &QuestionView{
				Text:      q.Text,
				Options:   append([]string(nil), q.Options...),
				TimeLimit: q.TimeLimitSeconds,
			}
		}
	case StatusCompleted:
		snap.AnswerKey = make([]QuestionView, 0, g.quiz.Len())
		for _, q := range g.quiz.Questions {
			correct := q.CorrectIndex
			snap.AnswerKey = append(snap.AnswerKey, QuestionView{
				Text:          q.Text,
				Options:       append([]string(nil), q.Options...),
				TimeLimit:     q.TimeLimitSeconds,
				CorrectAnswer: &correct,
			})
		}
	}

	list := g.Players.GetList()
	snap.Players = make([]PlayerView, 0, len(list))
	for _, p := range list {
		snap.Players = append(snap.Players, PlayerView{
			Username:       p.ID,
			Color:          p.Color,
			Score:          p.Score,
			IsReady:        p.Ready,
			HasAnswered:    p.HasAnswered(),
			IsHost:         p.ID == g.hostID,
			CorrectAnswers: p.CorrectAnswers,
			CurrentStreak:  p.CurrentStreak,
			BestStreak:     p.BestStreak,
			AverageTime:    p.RoundedAverageTime(),
			TotalQuestions: p.TotalAnswered,
		})
	}
	return snap
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Player returns the view of one player, if present.
func (s Snapshot) Player(username string) (PlayerView, bool) {
	for _, p := range s.Players {
		if p.Username == username {
			return p, true
		}
	}
	return PlayerView{}, false
}

type Standing struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
	IsHost   bool   `json:"is_host"`
}

// Leaderboard ranks players by score, ties in join order.
func (s Snapshot) Leaderboard() []Standing {
	board := make([]Standing, 0, len(s.Players))
	for _, p := range s.Players {
		board = append(board, Standing{Username: p.Username, Score: p.Score, IsHost: p.IsHost})
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	return board
}

type OptionCount struct {
	Answer string `json:"answer"`
	Count  int    `json:"count"`
}

type Distribution struct {
	Distribution  []OptionCount `json:"distribution"`
	CorrectAnswer *string       `json:"correct_answer"`
	AllAnswered   bool          `json:"all_answered"`
}

// Distribution counts answers per option for the current question. The
// correct option is revealed once every player has answered.
func (g *Game) Distribution() (Distribution, error) {
	if g.status != StatusInProgress || g.current >= g.quiz.Len() {
		return Distribution{}, fmt.Errorf("distribution %s: game is %s: %w", g.code, g.status, apperr.ErrInvalidTransition)
	}
	q := g.quiz.Questions[g.current]
	counts := make([]int, len(q.Options))
	for _, p := range g.Players.GetList() {
		if p.Answer != nil && *p.Answer >= 0 && *p.Answer < len(counts) {
			counts[*p.Answer]++
		}
	}

	d := Distribution{
		Distribution: make([]OptionCount, len(q.Options)),
		AllAnswered:  g.Players.AllAnswered(),
	}
	for i, opt := range q.Options {
		d.Distribution[i] = OptionCount{Answer: opt, Count: counts[i]}
	}
	if d.AllAnswered {
		text := q.Options[q.CorrectIndex]
		d.CorrectAnswer = &text
	}
	return d, nil
}
