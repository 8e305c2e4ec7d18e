package game

import "quizroom/internal/players"

// Kind tells the hub which event announces an applied command.
type Kind int

const (
	KindStateUpdate Kind = iota
	KindStarted
	KindAdvanced
	KindAnswered
)

// Outcome describes what an applied command did.
type Outcome struct {
	Kind   Kind
	Player string
	Option int
	Answer players.AnswerResult
}

// Command is one mutation of a game, applied inside the room's exclusive section.
type Command interface {
	Name() string
	Apply(g *Game) (Outcome, error)
}

type Join struct{ UserID string }

func (Join) Name() string { return "join" }

func (c Join) Apply(g *Game) (Outcome, error) {
	return Outcome{Kind: KindStateUpdate, Player: c.UserID}, g.Join(c.UserID)
}

type SetReady struct {
	UserID string
	Ready  bool
}

func (SetReady) Name() string { return "player_ready" }

func (c SetReady) Apply(g *Game) (Outcome, error) {
	return Outcome{Kind: KindStateUpdate, Player: c.UserID}, g.SetReady(c.UserID, c.Ready)
}

type Start struct{ UserID string }

func (Start) Name() string { return "start_game" }

func (c Start) Apply(g *Game) (Outcome, error) {
	return Outcome{Kind: KindStarted, Player: c.UserID}, g.Start(c.UserID)
}

type Advance struct{ UserID string }

func (Advance) Name() string { return "next_question" }

func (c Advance) Apply(g *Game) (Outcome, error) {
	return Outcome{Kind: KindAdvanced, Player: c.UserID}, g.AdvanceQuestion(c.UserID)
}

// SubmitAnswer carries the elapsed time in seconds; NaN means not reported.
type SubmitAnswer struct {
	UserID  string
	Option  int
	Elapsed float64
}

func (SubmitAnswer) Name() string { return "submit_answer" }

func (c SubmitAnswer) Apply(g *Game) (Outcome, error) {
	res, err := g.SubmitAnswer(c.UserID, c.Option, c.Elapsed)
	if err != nil {
		return Outcome{}, err
	}
	if res.Duplicate {
		return Outcome{Kind: KindStateUpdate, Player: c.UserID, Answer: res}, nil
	}
	return Outcome{Kind: KindAnswered, Player: c.UserID, Option: c.Option, Answer: res}, nil
}
