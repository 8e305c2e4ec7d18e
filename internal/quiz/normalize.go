package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"quizroom/internal/apperr"
)

// Parse normalizes quiz JSON from any of the shapes produced by the content
// sources into a validated Definition. The correct answer may be given as
// correct_answer (index), correctAnswer (letter), correct, or an option object
// flagged with isCorrect. A question without a resolvable answer is rejected.
func Parse(data []byte) (Definition, error) {
	var raw rawQuiz
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return Definition{}, fmt.Errorf("decoding quiz: %w: %v", apperr.ErrConfiguration, err)
	}
	return raw.normalize()
}

type rawQuiz struct {
	Title           string        `json:"title"`
	Topic           string        `json:"topic"`
	TimePerQuestion *float64      `json:"timePerQuestion"`
	Questions       []rawQuestion `json:"questions"`
}

type rawQuestion struct {
	Question      string      `json:"question"`
	Text          string      `json:"text"`
	Options       []rawOption `json:"options"`
	CorrectAnswer *answerRef  `json:"correct_answer"`
	CorrectLetter *answerRef  `json:"correctAnswer"`
	Correct       *answerRef  `json:"correct"`
	TimeLimit     *float64    `json:"time_limit"`
}

// rawOption is either a bare string or {"text": ..., "isCorrect": ...}.
type rawOption struct {
	Text      string
	IsCorrect bool
}

func (o *rawOption) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		o.Text = s
		return nil
	}
	var obj struct {
		Text       string `json:"text"`
		Option     string `json:"option"`
		IsCorrect  bool   `json:"isCorrect"`
		IsCorrect2 bool   `json:"is_correct"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("option must be a string or object: %w", err)
	}
	o.Text = obj.Text
	if o.Text == "" {
		o.Text = obj.Option
	}
	o.IsCorrect = obj.IsCorrect || obj.IsCorrect2
	return nil
}

// answerRef is an index, a letter (A = 0) or the text of the correct option.
type answerRef struct {
	index int
	text  string
	isIdx bool
}

func (a *answerRef) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		if f != float64(int(f)) {
			return fmt.Errorf("answer index %v is not an integer", f)
		}
		a.index, a.isIdx = int(f), true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("answer must be a number or string: %w", err)
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		a.index, a.isIdx = n, true
		return nil
	}
	if len(s) == 1 {
		c := strings.ToUpper(s)[0]
		if c >= 'A' && c <= 'Z' {
			a.index, a.isIdx = int(c-'A'), true
			return nil
		}
	}
	a.text = s
	return nil
}

func (a *answerRef) resolve(options []string) (int, bool) {
	if a.isIdx {
		return a.index, true
	}
	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), a.text) {
			return i, true
		}
	}
	return 0, false
}

func (r rawQuiz) normalize() (Definition, error) {
	def := Definition{Title: r.Title}
	if def.Title == "" {
		def.Title = r.Topic
	}
	defaultLimit := float64(DefaultTimePerQuestion)
	if r.TimePerQuestion != nil {
		defaultLimit = *r.TimePerQuestion
	}

	for i, rq := range r.Questions {
		q, err := rq.normalize(defaultLimit)
		if err != nil {
			return Definition{}, fmt.Errorf("question %d: %w", i+1, err)
		}
		def.Questions = append(def.Questions, q)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func (rq rawQuestion) normalize(defaultLimit float64) (Question, error) {
	q := Question{Text: rq.Question, TimeLimitSeconds: defaultLimit}
	if q.Text == "" {
		q.Text = rq.Text
	}
	if rq.TimeLimit != nil {
		q.TimeLimitSeconds = *rq.TimeLimit
	}

	flagged := -1
	for i, o := range rq.Options {
		q.Options = append(q.Options, o.Text)
		if o.IsCorrect {
			if flagged >= 0 {
				return Question{}, fmt.Errorf("more than one option marked correct: %w", apperr.ErrConfiguration)
			}
			flagged = i
		}
	}

	for _, ref := range []*answerRef{rq.CorrectAnswer, rq.CorrectLetter, rq.Correct} {
		if ref == nil {
			continue
		}
		idx, ok := ref.resolve(q.Options)
		if !ok {
			return Question{}, fmt.Errorf("correct answer %q matches no option: %w", ref.text, apperr.ErrConfiguration)
		}
		q.CorrectIndex = idx
		return q, nil
	}
	if flagged >= 0 {
		q.CorrectIndex = flagged
		return q, nil
	}
	return Question{}, fmt.Errorf("missing correct answer: %w", apperr.ErrConfiguration)
}
