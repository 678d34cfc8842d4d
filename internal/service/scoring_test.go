package service

import (
	"testing"

	"github.com/quizpoint/quizpoint-backend/internal/model"
)

func TestScoreAllCorrect(t *testing.T) {
	correct := []int32{0, 1, 2, 3}
	shuffled := []int32{2, 0, 3, 1}

	// Answer each presentation position with the correct option of the
	// original question it maps to.
	answers := make([]int32, len(shuffled))
	for p, orig := range shuffled {
		answers[p] = correct[orig]
	}

	if got := Score(correct, shuffled, answers); got != 4 {
		t.Errorf("expected score 4, got %d", got)
	}
}

func TestScoreUnansweredNotCounted(t *testing.T) {
	correct := []int32{0, 0, 0}
	shuffled := []int32{0, 1, 2}
	answers := []int32{0, model.Unanswered, 1}

	// Position 0 correct, position 1 unanswered, position 2 wrong.
	if got := Score(correct, shuffled, answers); got != 1 {
		t.Errorf("expected score 1, got %d", got)
	}
}

func TestScoreIdentityPermutation(t *testing.T) {
	correct := []int32{1, 2, 0}
	shuffled := []int32{0, 1, 2}
	answers := []int32{1, 0, 0}

	if got := Score(correct, shuffled, answers); got != 2 {
		t.Errorf("expected score 2, got %d", got)
	}
}

func TestScoreOutOfRangeShuffleEntry(t *testing.T) {
	correct := []int32{0}
	shuffled := []int32{5} // corrupt mapping must not panic
	answers := []int32{0}

	if got := Score(correct, shuffled, answers); got != 0 {
		t.Errorf("expected score 0, got %d", got)
	}
}

func TestScoreEmpty(t *testing.T) {
	if got := Score(nil, nil, nil); got != 0 {
		t.Errorf("expected score 0 for empty inputs, got %d", got)
	}
}

func TestEligibleWildcards(t *testing.T) {
	user := &model.User{Year: "2026", Branch: "CS", Division: "A"}

	cases := []struct {
		name string
		quiz model.Quiz
		want bool
	}{
		{"all empty", model.Quiz{}, true},
		{"exact match", model.Quiz{Year: "2026", Branch: "CS", Division: "A"}, true},
		{"year only", model.Quiz{Year: "2026"}, true},
		{"wrong year", model.Quiz{Year: "2025"}, false},
		{"wrong branch", model.Quiz{Year: "2026", Branch: "ME"}, false},
		{"wrong division", model.Quiz{Division: "B"}, false},
	}

	for _, tc := range cases {
		if got := Eligible(&tc.quiz, user); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestShuffledIndicesIsPermutation(t *testing.T) {
	for _, n := range []int{0, 1, 5, 100} {
		out := shuffledIndices(n)
		if len(out) != n {
			t.Fatalf("n=%d: expected length %d, got %d", n, n, len(out))
		}
		seen := make(map[int32]bool, n)
		for _, v := range out {
			if v < 0 || int(v) >= n {
				t.Fatalf("n=%d: index %d out of range", n, v)
			}
			if seen[v] {
				t.Fatalf("n=%d: duplicate index %d", n, v)
			}
			seen[v] = true
		}
	}
}
