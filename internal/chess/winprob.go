package chess

import (
	"errors"
	"fmt"
	"math"

	"github.com/park285/chess-train/internal/position"
)

// DefaultMateSaturation is the win probability given to the mating side.
const DefaultMateSaturation = 0.99

var ErrInvalidSaturation = errors.New("mate saturation must be in (0.5, 1]")

// NoEvaluationError means a score cannot be turned into a probability.
type NoEvaluationError struct {
	Mate   int
	Reason string
}

func (e *NoEvaluationError) Error() string {
	if e.Reason != "" {
		return "no evaluation: " + e.Reason
	}
	return fmt.Sprintf("no centipawn evaluation: mate in %d", e.Mate)
}

// Probability holds the win chances of both sides. The two values sum to one.
type Probability struct {
	White float64
	Black float64
}

func (p Probability) For(side position.Side) float64 {
	if side == position.Black {
		return p.Black
	}
	return p.White
}

// Estimate maps a centipawn score, seen from relative, onto win chances with
// the logistic curve 1/(1+10^(-cp/400)).
func Estimate(cp int, relative position.Side) Probability {
	if cp == 0 {
		return Probability{White: 0.5, Black: 0.5}
	}
	p := 1 / (1 + math.Pow(10, -float64(cp)/400))
	return split(p, relative)
}

func split(p float64, side position.Side) Probability {
	if side == position.Black {
		return Probability{White: 1 - p, Black: p}
	}
	return Probability{White: p, Black: 1 - p}
}

// EstimateScore is Estimate for an engine score. Mate scores have no
// centipawn value and fail with *NoEvaluationError.
func EstimateScore(score Score, relative position.Side) (Probability, error) {
	if !score.Set {
		return Probability{}, &NoEvaluationError{Reason: "engine reported no score"}
	}
	if score.IsMate {
		return Probability{}, &NoEvaluationError{Mate: score.Mate}
	}
	return Estimate(score.CP, relative), nil
}

// SaturatedEstimate is EstimateScore with mate scores pinned to bound for the
// mating side. "mate 0" means the side to move is already mated.
func SaturatedEstimate(score Score, relative position.Side, bound float64) (Probability, error) {
	if !(bound > 0.5 && bound <= 1) {
		return Probability{}, fmt.Errorf("%w: %v", ErrInvalidSaturation, bound)
	}
	if !score.Set || !score.IsMate {
		return EstimateScore(score, relative)
	}
	if score.Mate > 0 {
		return split(bound, relative), nil
	}
	return split(1-bound, relative), nil
}
