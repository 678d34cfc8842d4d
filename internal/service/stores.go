package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quizpoint/quizpoint-backend/internal/model"
)

// Store contracts consumed by the session lifecycle manager. The repository
// package provides the PostgreSQL implementations; tests substitute in-memory
// doubles. Missing rows are reported as pgx.ErrNoRows in every implementation.

// SessionStore persists active attempt state.
type SessionStore interface {
	Create(ctx context.Context, s *model.QuizSession) error
	GetActive(ctx context.Context, userID int, quizID uuid.UUID) (*model.QuizSession, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuizSession, error)
	UpdateAnswers(ctx context.Context, id uuid.UUID, answers []int32) (int64, error)
	Heartbeat(ctx context.Context, userID int, quizID uuid.UUID) (int64, error)
	IncrementViolation(ctx context.Context, id uuid.UUID) (int, error)
	ListActive(ctx context.Context) ([]model.QuizSession, error)
	// Claim atomically takes ownership of a session for one sweep pass.
	Claim(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error)
	Unclaim(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ResultStore persists finalized attempts.
type ResultStore interface {
	Exists(ctx context.Context, userID int, quizID uuid.UUID) (bool, error)
	// Finalize writes the result and deletes the session as one atomic unit.
	// Returns false when a concurrent finalization already created the result.
	Finalize(ctx context.Context, res *model.QuizResult) (bool, error)
}

// QuizStore is the read-only quiz lookup the session engine consumes.
type QuizStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
}

// QuestionStore supplies question counts and correct answers for scoring.
type QuestionStore interface {
	CountByQuiz(ctx context.Context, quizID uuid.UUID) (int, error)
	CorrectOptions(ctx context.Context, quizID uuid.UUID) ([]int32, error)
}

// UserStore is the read-only account lookup the session engine consumes.
type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
}
