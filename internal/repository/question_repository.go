package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizpoint/quizpoint-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ReplaceAll atomically swaps a quiz's question set.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, quizID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id = $1`, quizID); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (quiz_id, question_text, options, correct_option, order_num)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			quizID, q.QuestionText, q.Options, q.CorrectOption, q.OrderNum,
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// ListByQuiz retrieves a quiz's questions in presentation order.
func (r *QuestionRepository) ListByQuiz(ctx context.Context, quizID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, question_text, options, correct_option, order_num
		 FROM questions
		 WHERE quiz_id = $1
		 ORDER BY order_num ASC, id ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.QuestionText, &q.Options, &q.CorrectOption, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CorrectOptions returns the ordered correct-answer indices for scoring.
func (r *QuestionRepository) CorrectOptions(ctx context.Context, quizID uuid.UUID) ([]int32, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT correct_option FROM questions WHERE quiz_id = $1 ORDER BY order_num ASC, id ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var correct []int32
	for rows.Next() {
		var c int32
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		correct = append(correct, c)
	}
	return correct, rows.Err()
}

// CountByQuiz returns the number of questions in a quiz.
func (r *QuestionRepository) CountByQuiz(ctx context.Context, quizID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE quiz_id = $1`, quizID).Scan(&n)
	return n, err
}
