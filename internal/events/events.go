package events

import "quizroom/internal/game"

// Outbound message types.
const (
	GameState       = "game_state"
	GameStateUpdate = "game_state_update"
	GameStarted     = "game_started"
	NextQuestion    = "next_question"
	AnswerSubmitted = "answer_submitted"
	GameError       = "game_error"
	Error           = "error"
)

// Event is one outbound message. Game points at a shared immutable snapshot.
type Event struct {
	Type      string         `json:"type"`
	Game      *game.Snapshot `json:"game,omitempty"`
	Player    string         `json:"player,omitempty"`
	Answer    *int           `json:"answer,omitempty"`
	IsCorrect *bool          `json:"is_correct,omitempty"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
}

func State(snap *game.Snapshot) Event {
	return Event{Type: GameState, Game: snap}
}

// ForOutcome returns the events announcing an applied command, in delivery order.
func ForOutcome(out game.Outcome, snap *game.Snapshot) []Event {
	switch out.Kind {
	case game.KindStarted:
		return []Event{{Type: GameStarted, Game: snap}}
	case game.KindAdvanced:
		return []Event{{Type: NextQuestion, Game: snap}}
	case game.KindAnswered:
		option, correct := out.Option, out.Answer.IsCorrect
		return []Event{
			{Type: AnswerSubmitted, Player: out.Player, Answer: &option, IsCorrect: &correct},
			{Type: GameStateUpdate, Game: snap},
		}
	default:
		return []Event{{Type: GameStateUpdate, Game: snap}}
	}
}

// Fatal announces that the room was terminated after an internal failure.
func Fatal(message string, snap *game.Snapshot) []Event {
	return []Event{
		{Type: GameError, Message: message},
		{Type: GameStateUpdate, Game: snap},
	}
}

// Failure is the error reply sent only to the connection that issued a command.
func Failure(code, message string) Event {
	return Event{Type: Error, Code: code, Message: message}
}
