package experiment

import (
	"errors"
	"math"
)

// ErrNoGuesses is returned when a part is scored before any guess was made.
// The reward would be a division by zero.
var ErrNoGuesses = errors.New("cannot score a part with no guesses")

// Result is the outcome of scoring one part's guesses
type Result struct {
	NCorrect int
	NGuesses int
	Reward   float64
}

// Score computes the fraction of guesses equal to the goal word. Repeated
// guesses are counted every time they appear.
func Score(guesses []string, goal string) (Result, error) {
	if len(guesses) == 0 {
		return Result{}, ErrNoGuesses
	}
	correct := 0
	for _, g := range guesses {
		if g == goal {
			correct++
		}
	}
	return Result{
		NCorrect: correct,
		NGuesses: len(guesses),
		Reward:   float64(correct) / float64(len(guesses)),
	}, nil
}

// RoundTo rounds x to the given number of decimal places
func RoundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Payment converts reward points to the bonus owed: one dollar per ten
// points, never negative
func Payment(totalReward float64) float64 {
	if totalReward <= 0 {
		return 0
	}
	return RoundTo(totalReward/10, 2)
}
