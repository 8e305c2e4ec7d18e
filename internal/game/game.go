package game

import (
	"fmt"
	"time"

	"quizroom/internal/apperr"
	"quizroom/internal/players"
	"quizroom/internal/quiz"
	"quizroom/internal/scoring"
)

type Status string

const (
	StatusWaiting    = Status("waiting")
	StatusInProgress = Status("in_progress")
	StatusCompleted  = Status("completed")
)

const DefaultMaxPlayers = 10

type Config struct {
	MaxPlayers int
	Now        func() time.Time
}

func DefaultConfig() Config {
	return Config{
		MaxPlayers: DefaultMaxPlayers,
		Now:        time.Now,
	}
}

// Game is the authoritative state of one room. It is not safe for concurrent
// use: the room hub runs every call inside the room's exclusive section.
type Game struct {
	code       string
	hostID     string
	quiz       quiz.Definition
	maxPlayers int
	now        func() time.Time

	status    Status
	current   int
	version   uint64
	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	Players *players.Store
}

// New creates a waiting game with the host already joined and ready. The
// definition is expected to have passed quiz validation.
func New(code, hostID string, def quiz.Definition, cfg Config) *Game {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = DefaultMaxPlayers
	}
	g := &Game{
		code:       code,
		hostID:     hostID,
		quiz:       def,
		maxPlayers: cfg.MaxPlayers,
		now:        cfg.Now,
		status:     StatusWaiting,
		Players:    players.NewStore(),
	}
	g.createdAt = g.now()
	g.Players.SetReady(hostID, true, g.createdAt)
	return g
}

func (g *Game) Code() string       { return g.code }
func (g *Game) HostID() string     { return g.hostID }
func (g *Game) Status() Status     { return g.status }
func (g *Game) Version() uint64    { return g.version }
func (g *Game) CurrentIndex() int  { return g.current }
func (g *Game) EndedAt() time.Time { return g.endedAt }

func (g *Game) touch() {
	g.version++
}

// Join admits a new player while the room is waiting.
func (g *Game) Join(userID string) error {
	if g.status != StatusWaiting {
		return fmt.Errorf("join %s: game is %s: %w", g.code, g.status, apperr.ErrInvalidTransition)
	}
	if g.Players.Count() >= g.maxPlayers {
		return fmt.Errorf("join %s: %w", g.code, apperr.ErrRoomFull)
	}
	if _, err := g.Players.Add(userID, g.now()); err != nil {
		return err
	}
	g.touch()
	return nil
}

// SetReady upserts the player's ready flag. Only allowed before the game
// starts; a new player counts against the room limit like Join.
func (g *Game) SetReady(userID string, ready bool) error {
	if g.status != StatusWaiting {
		return fmt.Errorf("ready %s: game is %s: %w", g.code, g.status, apperr.ErrInvalidTransition)
	}
	if err := g.admit(userID); err != nil {
		return err
	}
	g.Players.SetReady(userID, ready, g.now())
	g.touch()
	return nil
}

// admit fails with ErrRoomFull when userID would be a new player past the limit.
func (g *Game) admit(userID string) error {
	if g.Players.Get(userID) == nil && g.Players.Count() >= g.maxPlayers {
		return fmt.Errorf("%s: %w", g.code, apperr.ErrRoomFull)
	}
	return nil
}

func (g *Game) Start(callerID string) error {
	if callerID != g.hostID {
		return fmt.Errorf("start %s: only the host can start the game: %w", g.code, apperr.ErrForbidden)
	}
	if g.status != StatusWaiting {
		return fmt.Errorf("start %s: game is %s: %w", g.code, g.status, apperr.ErrInvalidTransition)
	}
	if g.quiz.Len() == 0 {
		return fmt.Errorf("start %s: no questions: %w", g.code, apperr.ErrCorruptState)
	}
	g.status = StatusInProgress
	g.current = 0
	g.startedAt = g.now()
	g.touch()
	return nil
}

// AdvanceQuestion closes the current question for every player and moves on,
// completing the game after the last question.
func (g *Game) AdvanceQuestion(callerID string) error {
	if callerID != g.hostID {
		return fmt.Errorf("next %s: only the host can advance: %w", g.code, apperr.ErrForbidden)
	}
	if g.status != StatusInProgress {
		return fmt.Errorf("next %s: game is %s: %w", g.code, g.status, apperr.ErrInvalidTransition)
	}
	g.Players.CloseQuestion()
	g.current++
	if g.current >= g.quiz.Len() {
		g.complete()
	}
	g.touch()
	return nil
}

func (g *Game) complete() {
	g.status = StatusCompleted
	if g.endedAt.IsZero() {
		g.endedAt = g.now()
	}
}

// SubmitAnswer scores the player's answer to the current question. The player
// is created on first submission, within the room limit. A second submission for the same question
// changes nothing and returns the first result with Duplicate set.
func (g *Game) SubmitAnswer(userID string, option int, elapsed float64) (players.AnswerResult, error) {
	if g.status != StatusInProgress {
		return players.AnswerResult{}, fmt.Errorf("answer %s: game is %s: %w", g.code, g.status, apperr.ErrInvalidTransition)
	}
	if g.current < 0 || g.current >= g.quiz.Len() {
		return players.AnswerResult{}, fmt.Errorf("answer %s: question %d of %d: %w", g.code, g.current, g.quiz.Len(), apperr.ErrCorruptState)
	}

	if p := g.Players.Get(userID); p != nil && p.HasAnswered() {
		return p.RecordAnswer(option, elapsed, false, 0), nil
	}

	q := g.quiz.Questions[g.current]
	if option < 0 || option >= len(q.Options) {
		return players.AnswerResult{}, fmt.Errorf("answer %s: option %d of %d: %w", g.code, option, len(q.Options), apperr.ErrInvalidInput)
	}

	correct := option == q.CorrectIndex
	points, err := scoring.Score(correct, elapsed, q.TimeLimitSeconds)
	if err != nil {
		return players.AnswerResult{}, fmt.Errorf("answer %s: question %d: %w: %w", g.code, g.current, apperr.ErrCorruptState, err)
	}

	if err := g.admit(userID); err != nil {
		return players.AnswerResult{}, err
	}
	p, _ := g.Players.GetOrCreate(userID, g.now())
	res := p.RecordAnswer(option, scoring.ClampElapsed(elapsed, q.TimeLimitSeconds), correct, points)
	g.touch()
	return res, nil
}

// Abort ends the game immediately after an invariant violation.
func (g *Game) Abort() {
	if g.status == StatusCompleted {
		return
	}
	g.complete()
	g.touch()
}
