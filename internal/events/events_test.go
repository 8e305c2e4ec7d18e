package events

import (
	"encoding/json"
	"testing"

	"quizroom/internal/game"
	"quizroom/internal/players"
)

func TestForOutcome_Answered(t *testing.T) {
	snap := &game.Snapshot{Code: "ABC123"}
	out := game.Outcome{
		Kind:   game.KindAnswered,
		Player: "alice",
		Option: 2,
		Answer: players.AnswerResult{IsCorrect: true, Points: 900, NewScore: 900},
	}
	evs := ForOutcome(out, snap)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Type != AnswerSubmitted || evs[1].Type != GameStateUpdate {
		t.Errorf("types = %q, %q", evs[0].Type, evs[1].Type)
	}

	var wire map[string]any
	data, _ := json.Marshal(evs[0])
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatal(err)
	}
	if wire["player"] != "alice" || wire["answer"] != float64(2) || wire["is_correct"] != true {
		t.Errorf("answer_submitted wire = %v", wire)
	}
	if _, ok := wire["game"]; ok {
		t.Error("answer_submitted should not carry a snapshot")
	}
}

func TestForOutcome_Types(t *testing.T) {
	snap := &game.Snapshot{}
	cases := map[game.Kind]string{
		game.KindStarted:     GameStarted,
		game.KindAdvanced:    NextQuestion,
		game.KindStateUpdate: GameStateUpdate,
	}
	for kind, want := range cases {
		evs := ForOutcome(game.Outcome{Kind: kind}, snap)
		if len(evs) != 1 || evs[0].Type != want || evs[0].Game != snap {
			t.Errorf("ForOutcome(%d) = %+v, want one %q event", kind, evs, want)
		}
	}
}

func TestFalseIsCorrectIsSerialized(t *testing.T) {
	evs := ForOutcome(game.Outcome{Kind: game.KindAnswered, Player: "bob"}, &game.Snapshot{})
	data, _ := json.Marshal(evs[0])
	var wire map[string]any
	json.Unmarshal(data, &wire)
	if v, ok := wire["is_correct"]; !ok || v != false {
		t.Errorf("is_correct = %v (present %v), want false", v, ok)
	}
	if v, ok := wire["answer"]; !ok || v != float64(0) {
		t.Errorf("answer = %v (present %v), want 0", v, ok)
	}
}
