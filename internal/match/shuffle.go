package match

import (
	"math/rand"

	"trivia-match/internal/domain"
)

// Shuffle returns min(n, len(bank)) questions picked with an unbiased
// Fisher-Yates shuffle of a copy of bank. The input is not modified.
func Shuffle(rnd *rand.Rand, bank []domain.Question, n int) []domain.Question {
	out := make([]domain.Question, len(bank))
	copy(out, bank)
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	if n < 0 {
		n = 0
	}
	if n < len(out) {
		out = out[:n]
	}
	return out
}
