package service

import (
	"math/rand/v2"

	"github.com/quizpoint/quizpoint-backend/internal/model"
)

// Score counts correct answers. answers is in presentation order; shuffled
// maps presentation position to original question index; correct holds the
// correct option index per original question. No partial credit, no negative
// marking. Out-of-range shuffle entries count as wrong rather than panicking.
func Score(correct, shuffled, answers []int32) int {
	score := 0
	for p, ans := range answers {
		if ans == model.Unanswered || p >= len(shuffled) {
			continue
		}
		orig := shuffled[p]
		if orig < 0 || int(orig) >= len(correct) {
			continue
		}
		if ans == correct[orig] {
			score++
		}
	}
	return score
}

// Eligible reports whether a user may take a quiz. Empty quiz scope fields
// are wildcards matching any user value.
func Eligible(quiz *model.Quiz, user *model.User) bool {
	return (quiz.Year == "" || quiz.Year == user.Year) &&
		(quiz.Branch == "" || quiz.Branch == user.Branch) &&
		(quiz.Division == "" || quiz.Division == user.Division)
}

// shuffledIndices returns a uniform random permutation of [0, n).
func shuffledIndices(n int) []int32 {
	perm := rand.Perm(n)
	out := make([]int32, n)
	for i, v := range perm {
		out[i] = int32(v)
	}
	return out
}
