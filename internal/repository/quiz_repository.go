package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizpoint/quizpoint-backend/internal/model"
)

// QuizRepository handles quiz data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

const quizColumns = `id, title, author_id, timer_minutes, year, branch, division, is_published, created_at, updated_at`

func scanQuiz(row interface{ Scan(dest ...any) error }) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := row.Scan(&q.ID, &q.Title, &q.AuthorID, &q.TimerMinutes,
		&q.Year, &q.Branch, &q.Division, &q.IsPublished, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Create inserts a new quiz.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quizzes (title, author_id, timer_minutes, year, branch, division)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, is_published, created_at, updated_at`,
		q.Title, q.AuthorID, q.TimerMinutes, q.Year, q.Branch, q.Division,
	).Scan(&q.ID, &q.IsPublished, &q.CreatedAt, &q.UpdatedAt)
}

// GetByID retrieves a quiz by id.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
}

// Update applies an explicit partial update. Nil pointer fields keep the
// stored value; empty strings on scope fields are meaningful (wildcard).
func (r *QuizRepository) Update(ctx context.Context, id uuid.UUID, req *model.UpdateQuizRequest) (*model.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx,
		`UPDATE quizzes SET
			title         = COALESCE(NULLIF($2, ''), title),
			timer_minutes = COALESCE($3, timer_minutes),
			year          = COALESCE($4, year),
			branch        = COALESCE($5, branch),
			division      = COALESCE($6, division),
			is_published  = COALESCE($7, is_published),
			updated_at    = NOW()
		 WHERE id = $1
		 RETURNING `+quizColumns,
		id, req.Title, req.TimerMinutes, req.Year, req.Branch, req.Division, req.IsPublished))
}

// Delete removes a quiz; questions cascade via FK.
func (r *QuizRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	return tag.RowsAffected(), err
}

// ListByAuthor retrieves all quizzes authored by an admin, newest first.
func (r *QuizRepository) ListByAuthor(ctx context.Context, authorID int) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE author_id = $1 ORDER BY created_at DESC`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, rows.Err()
}

// ListPublished retrieves all published quizzes; eligibility filtering is the
// service's job.
func (r *QuizRepository) ListPublished(ctx context.Context) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE is_published ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, rows.Err()
}
