package quiz

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"quizroom/internal/apperr"
)

// DefaultTimePerQuestion applies when neither the quiz nor the question sets a limit.
const DefaultTimePerQuestion = 30

// Question is the canonical single-correct-answer multiple choice question.
type Question struct {
	Text             string   `json:"question" validate:"required"`
	Options          []string `json:"options" validate:"min=2,dive,required"`
	CorrectIndex     int      `json:"correct_answer" validate:"gte=0"`
	TimeLimitSeconds float64  `json:"time_limit" validate:"gt=0"`
}

// Definition is the ordered question list a room plays through.
type Definition struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions" validate:"required,min=1,dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(Question)
		if q.CorrectIndex >= len(q.Options) {
			sl.ReportError(q.CorrectIndex, "CorrectIndex", "correct_answer", "ltoptions", "")
		}
	}, Question{})
	return v
}

// Validate reports ErrConfiguration when the definition cannot be played.
func (d Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid quiz: %w: %v", apperr.ErrConfiguration, err)
	}
	return nil
}

// Len returns the number of questions.
func (d Definition) Len() int {
	return len(d.Questions)
}
