package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/quizpoint/quizpoint-backend/internal/model"
	"github.com/quizpoint/quizpoint-backend/internal/repository"
)

// ResultService exposes finalized attempts to reporting. Results are
// append-only; nothing here mutates them.
type ResultService struct {
	resultRepo *repository.ResultRepository
}

// NewResultService creates a new ResultService.
func NewResultService(resultRepo *repository.ResultRepository) *ResultService {
	return &ResultService{resultRepo: resultRepo}
}

// ListMine retrieves a student's own results.
func (s *ResultService) ListMine(ctx context.Context, userID int) ([]model.QuizResult, error) {
	return s.resultRepo.ListByUser(ctx, userID)
}

// ListByQuiz retrieves a quiz's results with cohort filters and pagination.
func (s *ResultService) ListByQuiz(ctx context.Context, quizID uuid.UUID, page, perPage int, year, branch, division *string) ([]model.ResultRow, int64, error) {
	return s.resultRepo.ListByQuiz(ctx, quizID, page, perPage, year, branch, division)
}
