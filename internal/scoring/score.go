package scoring

import (
	"fmt"
	"math"

	"quizroom/internal/apperr"
)

const (
	MaxPoints = 1000
	MinPoints = 100

	minTimeFactor = 0.1
	decayRate     = 0.9
)

// Score returns the points for one answer. A correct answer earns between
// MinPoints and MaxPoints, decaying linearly with elapsed time. Elapsed values
// that are NaN, infinite or past the limit count as the full time limit;
// negative values count as zero.
func Score(isCorrect bool, elapsed, timeLimit float64) (int, error) {
	if !(timeLimit > 0) || math.IsInf(timeLimit, 1) {
		return 0, fmt.Errorf("time limit %v: %w", timeLimit, apperr.ErrConfiguration)
	}
	if !isCorrect {
		return 0, nil
	}

	elapsed = ClampElapsed(elapsed, timeLimit)
	factor := math.Max(minTimeFactor, 1.0-(elapsed/timeLimit)*decayRate)
	return int(math.Floor(MaxPoints * factor)), nil
}

// ClampElapsed bounds an answer time to [0, timeLimit]. Missing (NaN) or
// infinite values count as the full limit.
func ClampElapsed(elapsed, timeLimit float64) float64 {
	switch {
	case math.IsNaN(elapsed) || elapsed > timeLimit:
		return timeLimit
	case elapsed < 0:
		return 0
	}
	return elapsed
}
