package quiz

import (
	"errors"
	"testing"

	"quizroom/internal/apperr"
)

func TestParse_CorrectAnswerIndex(t *testing.T) {
	def, err := Parse([]byte(`{
		"title": "Capitals",
		"questions": [
			{"question": "Capital of France?", "options": ["Berlin", "Paris", "Rome", "Madrid"], "correct_answer": 1}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if def.Title != "Capitals" {
		t.Errorf("Title = %q, want %q", def.Title, "Capitals")
	}
	q := def.Questions[0]
	if q.CorrectIndex != 1 {
		t.Errorf("CorrectIndex = %d, want 1", q.CorrectIndex)
	}
	if q.TimeLimitSeconds != DefaultTimePerQuestion {
		t.Errorf("TimeLimitSeconds = %v, want %v", q.TimeLimitSeconds, DefaultTimePerQuestion)
	}
}

func TestParse_CorrectAnswerLetter(t *testing.T) {
	def, err := Parse([]byte(`{
		"timePerQuestion": 20,
		"questions": [
			{"question": "2+2?", "options": ["3", "4", "5", "6"], "correctAnswer": "b"}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if def.Questions[0].CorrectIndex != 1 {
		t.Errorf("CorrectIndex = %d, want 1", def.Questions[0].CorrectIndex)
	}
	if def.Questions[0].TimeLimitSeconds != 20 {
		t.Errorf("TimeLimitSeconds = %v, want 20", def.Questions[0].TimeLimitSeconds)
	}
}

func TestParse_CorrectKeyAndOptionText(t *testing.T) {
	def, err := Parse([]byte(`{"questions": [
		{"text": "Largest planet?", "options": ["Mars", "Jupiter"], "correct": 1, "time_limit": 12.5},
		{"question": "Red planet?", "options": ["Mars", "Venus"], "correct_answer": "mars"}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	if def.Questions[0].Text != "Largest planet?" || def.Questions[0].CorrectIndex != 1 {
		t.Errorf("question 1 = %+v", def.Questions[0])
	}
	if def.Questions[0].TimeLimitSeconds != 12.5 {
		t.Errorf("TimeLimitSeconds = %v, want 12.5", def.Questions[0].TimeLimitSeconds)
	}
	if def.Questions[1].CorrectIndex != 0 {
		t.Errorf("question 2 CorrectIndex = %d, want 0", def.Questions[1].CorrectIndex)
	}
}

func TestParse_OptionObjects(t *testing.T) {
	def, err := Parse([]byte(`{"questions": [
		{"question": "Pick C", "options": [
			{"text": "A"}, {"text": "B"}, {"text": "C", "isCorrect": true}
		]}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	q := def.Questions[0]
	if q.CorrectIndex != 2 {
		t.Errorf("CorrectIndex = %d, want 2", q.CorrectIndex)
	}
	if len(q.Options) != 3 || q.Options[2] != "C" {
		t.Errorf("Options = %v", q.Options)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed json":      `{"questions": [`,
		"no questions":        `{"questions": []}`,
		"missing answer":      `{"questions": [{"question": "Q", "options": ["a", "b"]}]}`,
		"index out of range":  `{"questions": [{"question": "Q", "options": ["a", "b"], "correct_answer": 2}]}`,
		"negative index":      `{"questions": [{"question": "Q", "options": ["a", "b"], "correct_answer": -1}]}`,
		"letter out of range": `{"questions": [{"question": "Q", "options": ["a", "b"], "correctAnswer": "D"}]}`,
		"unknown answer text": `{"questions": [{"question": "Q", "options": ["a", "b"], "correct_answer": "zebra"}]}`,
		"fractional index":    `{"questions": [{"question": "Q", "options": ["a", "b"], "correct_answer": 0.5}]}`,
		"single option":       `{"questions": [{"question": "Q", "options": ["a"], "correct_answer": 0}]}`,
		"empty option":        `{"questions": [{"question": "Q", "options": ["a", ""], "correct_answer": 0}]}`,
		"missing text":        `{"questions": [{"options": ["a", "b"], "correct_answer": 0}]}`,
		"zero time limit":     `{"timePerQuestion": 0, "questions": [{"question": "Q", "options": ["a", "b"], "correct_answer": 0}]}`,
		"two flagged correct": `{"questions": [{"question": "Q", "options": [{"text": "a", "isCorrect": true}, {"text": "b", "isCorrect": true}]}]}`,
	}
	for name, body := range cases {
		_, err := Parse([]byte(body))
		if !errors.Is(err, apperr.ErrConfiguration) {
			t.Errorf("%s: error = %v, want ErrConfiguration", name, err)
		}
	}
}

func TestDefinition_Validate(t *testing.T) {
	def := Definition{Questions: []Question{
		{Text: "Q", Options: []string{"a", "b"}, CorrectIndex: 1, TimeLimitSeconds: 30},
	}}
	if err := def.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	def.Questions[0].CorrectIndex = 2
	if err := def.Validate(); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("Validate() error = %v, want ErrConfiguration", err)
	}
}
