package experiment

import "unicode/utf8"

// Guess length bounds, in letters
const (
	MinGuessLength = 3
	MaxGuessLength = 8
)

// ValidGuess reports whether candidate can be spelled from the letter pool.
// A nil pool accepts anything. Otherwise the candidate must be 3-8 letters
// long and use each letter no more often than it appears in the pool.
func ValidGuess(candidate string, allowed *string) bool {
	if allowed == nil {
		return true
	}
	n := utf8.RuneCountInString(candidate)
	if n < MinGuessLength || n > MaxGuessLength {
		return false
	}
	return bagContains(countRunes(*allowed), countRunes(candidate))
}

func countRunes(s string) map[rune]int {
	counts := make(map[rune]int, len(s))
	for _, r := range s {
		counts[r]++
	}
	return counts
}

// bagContains reports whether every letter in sub is available in bag at
// least as many times
func bagContains(bag, sub map[rune]int) bool {
	for r, n := range sub {
		if n > bag[r] {
			return false
		}
	}
	return true
}
