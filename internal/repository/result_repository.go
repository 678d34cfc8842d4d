package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizpoint/quizpoint-backend/internal/model"
)

// ResultRepository handles finalized attempt storage. Results are immutable
// and unique per (quiz, user).
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

const resultColumns = `id, quiz_id, user_id, session_id, answers, score, total,
	roll_no, year, branch, division, submission_type, violation_message,
	violation_count, started_at, submitted_at`

// Exists reports whether a result already exists for the (user, quiz) pair.
func (r *ResultRepository) Exists(ctx context.Context, userID int, quizID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM quiz_results WHERE quiz_id = $1 AND user_id = $2)`,
		quizID, userID).Scan(&exists)
	return exists, err
}

// Finalize atomically persists a result and deletes the session row. Returns
// whether the result was inserted: false means a concurrent finalization won
// the race — the session is still removed, but no duplicate result is written.
func (r *ResultRepository) Finalize(ctx context.Context, res *model.QuizResult) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var inserted bool
	err = tx.QueryRow(ctx,
		`WITH ins AS (
			INSERT INTO quiz_results
				(quiz_id, user_id, session_id, answers, score, total,
				 roll_no, year, branch, division, submission_type,
				 violation_message, violation_count, started_at, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (quiz_id, user_id) DO NOTHING
			RETURNING id
		)
		SELECT COUNT(*) = 1 FROM ins`,
		res.QuizID, res.UserID, res.SessionID, res.Answers, res.Score, res.Total,
		res.RollNo, res.Year, res.Branch, res.Division, res.SubmissionType,
		res.ViolationMessage, res.ViolationCount, res.StartedAt, res.SubmittedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("insert result: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM quiz_sessions WHERE id = $1`, res.SessionID); err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ListByUser retrieves a student's results, newest first.
func (r *ResultRepository) ListByUser(ctx context.Context, userID int) ([]model.QuizResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM quiz_results WHERE user_id = $1 ORDER BY submitted_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.QuizResult
	for rows.Next() {
		var res model.QuizResult
		if err := rows.Scan(&res.ID, &res.QuizID, &res.UserID, &res.SessionID,
			&res.Answers, &res.Score, &res.Total, &res.RollNo, &res.Year,
			&res.Branch, &res.Division, &res.SubmissionType, &res.ViolationMessage,
			&res.ViolationCount, &res.StartedAt, &res.SubmittedAt); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ListByQuiz retrieves a quiz's results with optional cohort filters and
// pagination, joined with live user names for reporting.
func (r *ResultRepository) ListByQuiz(ctx context.Context, quizID uuid.UUID, page, perPage int, year, branch, division *string) ([]model.ResultRow, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := `
		FROM quiz_results qr
		JOIN users u ON qr.user_id = u.id
		WHERE qr.quiz_id = $1
	`
	args := []any{quizID}

	if year != nil && *year != "" {
		args = append(args, *year)
		baseQuery += fmt.Sprintf(" AND qr.year = $%d", len(args))
	}
	if branch != nil && *branch != "" {
		args = append(args, *branch)
		baseQuery += fmt.Sprintf(" AND qr.branch = $%d", len(args))
	}
	if division != nil && *division != "" {
		args = append(args, *division)
		baseQuery += fmt.Sprintf(" AND qr.division = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT qr.id, qr.quiz_id, qr.user_id, qr.session_id, qr.answers, qr.score, qr.total,
			qr.roll_no, qr.year, qr.branch, qr.division, qr.submission_type,
			qr.violation_message, qr.violation_count, qr.started_at, qr.submitted_at,
			u.name
		` + baseQuery + `
		ORDER BY qr.roll_no ASC
		LIMIT $` + fmt.Sprintf("%d", len(args)+1) + ` OFFSET $` + fmt.Sprintf("%d", len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.ResultRow
	for rows.Next() {
		var row model.ResultRow
		if err := rows.Scan(&row.ID, &row.QuizID, &row.UserID, &row.SessionID,
			&row.Answers, &row.Score, &row.Total, &row.RollNo, &row.Year,
			&row.Branch, &row.Division, &row.SubmissionType, &row.ViolationMessage,
			&row.ViolationCount, &row.StartedAt, &row.SubmittedAt, &row.Name); err != nil {
			return nil, 0, err
		}
		results = append(results, row)
	}

	return results, total, rows.Err()
}
