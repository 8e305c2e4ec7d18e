package players

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnswerResult is the outcome of a player's answer to one question. A repeat
// submission for the same question gets the first result back with Duplicate set.
type AnswerResult struct {
	IsCorrect bool `json:"is_correct"`
	Points    int  `json:"points_awarded"`
	NewScore  int  `json:"new_score"`
	Duplicate bool `json:"duplicate,omitempty"`
}

type Player struct {
	ID       string
	Color    string
	Score    int
	Ready    bool
	JoinedAt time.Time

	// Answer and AnswerTime are set at most once per question.
	Answer     *int
	AnswerTime *float64
	result     AnswerResult

	CurrentStreak  int
	BestStreak     int
	TotalAnswered  int
	CorrectAnswers int
	AverageTime    float64
}

func (p *Player) HasAnswered() bool {
	return p.Answer != nil
}

// RecordAnswer stores the answer for the current question and updates score
// and statistics. If the player already answered, nothing changes and the
// earlier result is returned.
func (p *Player) RecordAnswer(option int, elapsed float64, correct bool, points int) AnswerResult {
	if p.Answer != nil {
		r := p.result
		r.Duplicate = true
		return r
	}

	p.Answer = &option
	p.AnswerTime = &elapsed
	p.Score += points
	p.TotalAnswered++
	if correct {
		p.CorrectAnswers++
		p.CurrentStreak++
		p.BestStreak = max(p.BestStreak, p.CurrentStreak)
	} else {
		p.CurrentStreak = 0
	}
	n := float64(p.TotalAnswered)
	p.AverageTime = (p.AverageTime*(n-1) + elapsed) / n

	p.result = AnswerResult{IsCorrect: correct, Points: points, NewScore: p.Score}
	return p.result
}

// CloseQuestion clears the current answer. A player who did not answer
// correctly loses their streak, including players who never answered.
func (p *Player) CloseQuestion() {
	if p.Answer == nil || !p.result.IsCorrect {
		p.CurrentStreak = 0
	}
	p.Answer = nil
	p.AnswerTime = nil
	p.result = AnswerResult{}
}

// RoundedAverageTime is the average answer time rounded to two decimals.
func (p *Player) RoundedAverageTime() float64 {
	return decimal.NewFromFloat(p.AverageTime).Round(2).InexactFloat64()
}
