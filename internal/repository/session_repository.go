package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizpoint/quizpoint-backend/internal/model"
)

// SessionRepository handles active quiz session data access. Finalized
// attempts never live here — finalization deletes the row (see ResultRepository).
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, quiz_id, user_id, shuffled_indices, answers, started_at,
	timer_seconds, violation_count, last_heartbeat, last_saved_at, is_active,
	is_processing, processing_since`

func scanSession(row interface{ Scan(dest ...any) error }) (*model.QuizSession, error) {
	s := &model.QuizSession{}
	err := row.Scan(&s.ID, &s.QuizID, &s.UserID, &s.ShuffledIndices, &s.Answers,
		&s.StartedAt, &s.TimerSeconds, &s.ViolationCount, &s.LastHeartbeat,
		&s.LastSavedAt, &s.IsActive, &s.IsProcessing, &s.ProcessingSince)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new active session. A partial unique index on
// (quiz_id, user_id) WHERE is_active makes concurrent starts collide; the
// loser gets pgx.ErrNoRows from the RETURNING scan.
func (r *SessionRepository) Create(ctx context.Context, s *model.QuizSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quiz_sessions
			(quiz_id, user_id, shuffled_indices, answers, timer_seconds, last_heartbeat, last_saved_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 ON CONFLICT (quiz_id, user_id) WHERE is_active DO NOTHING
		 RETURNING id, started_at, last_heartbeat, last_saved_at`,
		s.QuizID, s.UserID, s.ShuffledIndices, s.Answers, s.TimerSeconds,
	).Scan(&s.ID, &s.StartedAt, &s.LastHeartbeat, &s.LastSavedAt)
}

// GetActive retrieves the active session for a (user, quiz) pair.
func (r *SessionRepository) GetActive(ctx context.Context, userID int, quizID uuid.UUID) (*model.QuizSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM quiz_sessions
		 WHERE quiz_id = $1 AND user_id = $2 AND is_active`, quizID, userID))
}

// GetByID retrieves a session by id.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuizSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = $1`, id))
}

// UpdateAnswers replaces the answer set wholesale and refreshes liveness.
func (r *SessionRepository) UpdateAnswers(ctx context.Context, id uuid.UUID, answers []int32) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_sessions
		 SET answers = $2, last_heartbeat = NOW(), last_saved_at = NOW()
		 WHERE id = $1 AND is_active`, id, answers)
	return tag.RowsAffected(), err
}

// Heartbeat refreshes last_heartbeat only.
func (r *SessionRepository) Heartbeat(ctx context.Context, userID int, quizID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_sessions
		 SET last_heartbeat = NOW()
		 WHERE quiz_id = $1 AND user_id = $2 AND is_active`, quizID, userID)
	return tag.RowsAffected(), err
}

// IncrementViolation bumps the violation counter and refreshes liveness,
// returning the new count.
func (r *SessionRepository) IncrementViolation(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`UPDATE quiz_sessions
		 SET violation_count = violation_count + 1, last_heartbeat = NOW()
		 WHERE id = $1 AND is_active
		 RETURNING violation_count`, id).Scan(&count)
	return count, err
}

// ListActive retrieves every active session for the sweep.
func (r *SessionRepository) ListActive(ctx context.Context) ([]model.QuizSession, error) {
	return r.listActive(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE is_active ORDER BY started_at ASC`)
}

// ListActiveByQuiz retrieves a quiz's active sessions for the live monitor.
func (r *SessionRepository) ListActiveByQuiz(ctx context.Context, quizID uuid.UUID) ([]model.QuizSession, error) {
	return r.listActive(ctx,
		`SELECT `+sessionColumns+`
		 FROM quiz_sessions WHERE is_active AND quiz_id = $1 ORDER BY started_at ASC`, quizID)
}

func (r *SessionRepository) listActive(ctx context.Context, query string, args ...any) ([]model.QuizSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.QuizSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Claim marks a session as being processed by a sweep pass. The conditional
// UPDATE is the store's compare-and-swap: two concurrent ticks can never both
// win. A claim older than staleBefore is treated as abandoned (crashed sweep)
// and re-claimed instead of starving the session forever.
func (r *SessionRepository) Claim(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_sessions
		 SET is_processing = TRUE, processing_since = NOW()
		 WHERE id = $1 AND is_active
		   AND (NOT is_processing OR processing_since < $2)`,
		id, staleBefore)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Unclaim releases a claimed session that turned out not to need finalizing.
func (r *SessionRepository) Unclaim(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE quiz_sessions
		 SET is_processing = FALSE, processing_since = NULL
		 WHERE id = $1`, id)
	return err
}

// Delete removes a session row outside the finalize transaction. Used only to
// clean up orphans whose result already exists.
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM quiz_sessions WHERE id = $1`, id)
	return err
}
