package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/quizpoint/quizpoint-backend/internal/model"
)

func TestQuestionsFromRequestNormalizesDuplicateOrder(t *testing.T) {
	quizID := uuid.New()

	// Two questions tie on order_num; the stored order must still be dense
	// and unique so the presentation and scoring scans always agree.
	req := &model.ReplaceQuestionsRequest{
		Questions: []model.AddQuestionRequest{
			{QuestionText: "first", Options: []string{"a", "b"}, CorrectOption: 0, OrderNum: 1},
			{QuestionText: "second", Options: []string{"a", "b"}, CorrectOption: 1, OrderNum: 1},
			{QuestionText: "third", Options: []string{"a", "b"}, CorrectOption: 0, OrderNum: 0},
		},
	}

	questions, err := questionsFromRequest(quizID, req)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	// Hint 0 sorts first; the tied pair keeps its request order.
	wantTexts := []string{"third", "first", "second"}
	for i, q := range questions {
		if q.QuestionText != wantTexts[i] {
			t.Fatalf("position %d: expected %q, got %q", i, wantTexts[i], q.QuestionText)
		}
		if q.OrderNum != i {
			t.Errorf("position %d: expected dense order_num %d, got %d", i, i, q.OrderNum)
		}
		if q.QuizID != quizID {
			t.Errorf("position %d: quiz id not applied", i)
		}
	}
}

func TestQuestionsFromRequestKeepsRequestOrderWithoutHints(t *testing.T) {
	req := &model.ReplaceQuestionsRequest{
		Questions: []model.AddQuestionRequest{
			{QuestionText: "q0", Options: []string{"a", "b"}, CorrectOption: 0},
			{QuestionText: "q1", Options: []string{"a", "b"}, CorrectOption: 1},
			{QuestionText: "q2", Options: []string{"a", "b"}, CorrectOption: 0},
		},
	}

	questions, err := questionsFromRequest(uuid.New(), req)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	for i, q := range questions {
		if q.QuestionText != req.Questions[i].QuestionText || q.OrderNum != i {
			t.Errorf("position %d: expected %q/order %d, got %q/%d",
				i, req.Questions[i].QuestionText, i, q.QuestionText, q.OrderNum)
		}
	}
}

func TestQuestionsFromRequestRejectsOutOfRangeCorrectOption(t *testing.T) {
	req := &model.ReplaceQuestionsRequest{
		Questions: []model.AddQuestionRequest{
			{QuestionText: "bad", Options: []string{"a", "b"}, CorrectOption: 2},
		},
	}

	if _, err := questionsFromRequest(uuid.New(), req); !errors.Is(err, ErrInvalidQuestion) {
		t.Errorf("expected ErrInvalidQuestion, got %v", err)
	}
}
