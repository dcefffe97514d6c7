// Package scoring computes a synthetic availability score for an instant
// as a weighted blend of heuristic sub-factors.
package scoring

import (
	"fmt"
	"math"
	"time"
)

// Factor is one named availability signal. Score must return a value in
// [0,1] for the given instant and must be deterministic for a fixed
// instant so that results are reproducible under test.
type Factor interface {
	Name() string
	Score(at time.Time) float64
}

// Weights defines the relative importance of each sub-factor.
// All weights must sum to 1.0 (±0.001 tolerance) and none may be
// negative.
type Weights struct {
	TimeOfDay     float64
	DayOfWeek     float64
	Location      float64
	Weather       float64
	Social        float64
	Device        float64
	Legal         float64
	Entertainment float64
}

// DefaultWeights returns the standard weight distribution.
func DefaultWeights() Weights {
	return Weights{
		TimeOfDay:     0.25,
		DayOfWeek:     0.15,
		Location:      0.10,
		Weather:       0.10,
		Social:        0.15,
		Device:        0.10,
		Legal:         0.05,
		Entertainment: 0.10,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.TimeOfDay + w.DayOfWeek + w.Location + w.Weather +
		w.Social + w.Device + w.Legal + w.Entertainment
}

// Validate checks that the weights sum to 1.0 and none are negative.
func (w Weights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, v := range []float64{
		w.TimeOfDay, w.DayOfWeek, w.Location, w.Weather,
		w.Social, w.Device, w.Legal, w.Entertainment,
	} {
		if v < 0 {
			return fmt.Errorf("negative weight: %v", v)
		}
	}
	return nil
}

// Engine blends the time-of-day and day-of-week curves with the injected
// signal factors into a single score in [0,100]. The engine itself is
// stateless and deterministic for a fixed factor set.
type Engine struct {
	factors map[string]Factor
	weights Weights
}

// NewEngine builds an Engine from weights and signal factors. Factors are
// matched to weight slots by Name; a slot with no matching factor scores
// neutral (0.5). Invalid weights are rejected up front.
func NewEngine(weights Weights, factors ...Factor) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}

	byName := make(map[string]Factor, len(factors))
	for _, f := range factors {
		byName[f.Name()] = f
	}
	return &Engine{weights: weights, factors: byName}, nil
}

// Score computes the availability score for at, in [0,100].
func (e *Engine) Score(at time.Time) float64 {
	score := e.weights.TimeOfDay*timeOfDayCurve(at.Hour()) +
		e.weights.DayOfWeek*dayOfWeekCurve(at.Weekday()) +
		e.weights.Location*e.signal(FactorLocation, at) +
		e.weights.Weather*e.signal(FactorWeather, at) +
		e.weights.Social*e.signal(FactorSocial, at) +
		e.weights.Device*e.signal(FactorDevice, at) +
		e.weights.Legal*e.signal(FactorLegal, at) +
		e.weights.Entertainment*e.signal(FactorEntertainment, at)
	return score * 100
}

func (e *Engine) signal(name string, at time.Time) float64 {
	f, ok := e.factors[name]
	if !ok {
		return 0.5
	}
	v := f.Score(at)
	// Factors promise [0,1]; a misbehaving one must not push the blend
	// outside the score domain.
	return math.Max(0, math.Min(1, v))
}

// timeOfDayCurve models how reachable people are across the day:
// low overnight, a ramp through the morning, a lunch dip, and a prime
// evening window.
func timeOfDayCurve(hour int) float64 {
	switch {
	case hour < 6:
		return 0.15
	case hour < 9:
		return 0.5
	case hour < 12:
		return 0.7
	case hour < 14:
		return 0.6
	case hour < 18:
		return 0.75
	case hour < 22:
		return 0.9
	default:
		return 0.4
	}
}

// dayOfWeekCurve favors the weekend and Friday.
func dayOfWeekCurve(day time.Weekday) float64 {
	switch day {
	case time.Saturday:
		return 0.9
	case time.Friday:
		return 0.8
	case time.Sunday:
		return 0.7
	case time.Monday, time.Tuesday, time.Wednesday, time.Thursday:
		return 0.6
	default:
		return 0.6
	}
}
