package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizpoint/quizpoint-backend/internal/config"
	"github.com/quizpoint/quizpoint-backend/internal/model"
	"github.com/rs/zerolog"
)

// Session lifecycle errors.
var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrNoQuestions      = errors.New("quiz has no questions")
	ErrNotEligible      = errors.New("user is not eligible for this quiz")
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	ErrSessionNotFound  = errors.New("no active session")
	ErrInvalidAnswers   = errors.New("invalid answers payload")
	ErrAlreadySubmitted = errors.New("quiz already submitted")
)

// ActiveSessionError rejects a duplicate start and surfaces the winner's
// session id so the client can resume it.
type ActiveSessionError struct {
	SessionID uuid.UUID
	TimeLeft  int
}

func (e *ActiveSessionError) Error() string {
	return fmt.Sprintf("an active session already exists: %s", e.SessionID)
}

// disconnectGrace is how stale a heartbeat must be, once the timer has
// expired, for the finalization to be recorded as a disconnect.
const disconnectGrace = 30 * time.Second

// claimStaleMargin extends the sweep interval to form the bound past which a
// claimed-but-unfinalized session is considered abandoned and reclaimed.
const claimStaleMargin = 60 * time.Second

// StartResult is returned from a successful session start.
type StartResult struct {
	SessionID uuid.UUID `json:"session_id"`
	TimeLeft  int       `json:"time_left"`
}

// SubmitResult is returned from any finalization path.
type SubmitResult struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// SessionService owns the quiz attempt lifecycle: creation, answer updates,
// heartbeats, violation tracking, manual submission and the periodic sweep
// that auto-submits expired or abandoned attempts. All finalization paths
// funnel through one score+persist+delete sequence guarded against
// double-finalization.
type SessionService struct {
	sessions  SessionStore
	results   ResultStore
	quizzes   QuizStore
	questions QuestionStore
	users     UserStore

	disconnectThreshold time.Duration
	claimStaleAfter     time.Duration
	log                 zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessions SessionStore,
	results ResultStore,
	quizzes QuizStore,
	questions QuestionStore,
	users UserStore,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:            sessions,
		results:             results,
		quizzes:             quizzes,
		questions:           questions,
		users:               users,
		disconnectThreshold: cfg.DisconnectThreshold(),
		claimStaleAfter:     cfg.SweepInterval + claimStaleMargin,
		log:                 log.With().Str("component", "session_service").Logger(),
		now:                 time.Now,
	}
}

// Start creates a new attempt for (user, quiz). Attempts are one-shot: a
// finalized result or an active session for the pair rejects the start.
func (s *SessionService) Start(ctx context.Context, userID int, quizID uuid.UUID) (*StartResult, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if !quiz.IsPublished {
		return nil, ErrQuizNotFound
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !Eligible(quiz, user) {
		return nil, ErrNotEligible
	}

	attempted, err := s.results.Exists(ctx, userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("check result: %w", err)
	}
	if attempted {
		return nil, ErrAlreadyAttempted
	}

	if existing, err := s.sessions.GetActive(ctx, userID, quizID); err == nil {
		return nil, &ActiveSessionError{SessionID: existing.ID, TimeLeft: existing.TimeLeft(s.now())}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check active session: %w", err)
	}

	count, err := s.questions.CountByQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if count == 0 {
		return nil, ErrNoQuestions
	}

	answers := make([]int32, count)
	for i := range answers {
		answers[i] = model.Unanswered
	}

	session := &model.QuizSession{
		QuizID:          quizID,
		UserID:          userID,
		ShuffledIndices: shuffledIndices(count),
		Answers:         answers,
		TimerSeconds:    quiz.TimerMinutes * 60,
		IsActive:        true,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start detected: the partial unique index let exactly
			// one insert through. Surface the winner's session id.
			existing, fetchErr := s.sessions.GetActive(ctx, userID, quizID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			return nil, &ActiveSessionError{SessionID: existing.ID, TimeLeft: existing.TimeLeft(s.now())}
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &StartResult{SessionID: session.ID, TimeLeft: session.TimerSeconds}, nil
}

// GetActive returns the attempt snapshot for (user, quiz), or nil when there
// is none. An expired-but-unswept session is reported as absent — the read
// path never finalizes as a side effect, the sweep will get to it.
func (s *SessionService) GetActive(ctx context.Context, userID int, quizID uuid.UUID) (*model.SessionView, error) {
	session, err := s.sessions.GetActive(ctx, userID, quizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}

	timeLeft := session.TimeLeft(s.now())
	if timeLeft <= 0 {
		return nil, nil
	}

	return &model.SessionView{
		SessionID:       session.ID,
		QuizID:          session.QuizID,
		Answers:         session.Answers,
		ShuffledIndices: session.ShuffledIndices,
		TimeLeft:        timeLeft,
		ViolationCount:  session.ViolationCount,
	}, nil
}

// UpdateAnswers replaces the session's answers wholesale and refreshes the
// heartbeat. The payload must cover every presentation position.
func (s *SessionService) UpdateAnswers(ctx context.Context, sessionID uuid.UUID, userID int, quizID uuid.UUID, answers []int32) error {
	session, err := s.getOwnedSession(ctx, sessionID, userID, quizID)
	if err != nil {
		return err
	}

	if len(answers) != len(session.Answers) {
		return ErrInvalidAnswers
	}
	for _, a := range answers {
		if a < model.Unanswered {
			return ErrInvalidAnswers
		}
	}

	rows, err := s.sessions.UpdateAnswers(ctx, sessionID, answers)
	if err != nil {
		return fmt.Errorf("update answers: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Heartbeat refreshes the session's liveness signal.
func (s *SessionService) Heartbeat(ctx context.Context, userID int, quizID uuid.UUID) error {
	rows, err := s.sessions.Heartbeat(ctx, userID, quizID)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ReportViolation records a proctoring violation. Minor violations increment
// the counter and refresh the heartbeat; major violations are not counted
// here — the client escalates those through an immediate submit.
func (s *SessionService) ReportViolation(ctx context.Context, sessionID uuid.UUID, userID int, quizID uuid.UUID, isMajor bool) (int, error) {
	session, err := s.getOwnedSession(ctx, sessionID, userID, quizID)
	if err != nil {
		return 0, err
	}

	if isMajor {
		return session.ViolationCount, nil
	}

	count, err := s.sessions.IncrementViolation(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("increment violation: %w", err)
	}
	return count, nil
}

// Submit is the manual finalization path.
func (s *SessionService) Submit(ctx context.Context, sessionID uuid.UUID, userID int, submissionType, violationMessage string) (*SubmitResult, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID || !session.IsActive {
		return nil, ErrSessionNotFound
	}

	return s.finalize(ctx, session, model.NormalizeSubmissionType(submissionType), violationMessage)
}

// getOwnedSession fetches a session and verifies all three identifiers.
func (s *SessionService) getOwnedSession(ctx context.Context, sessionID uuid.UUID, userID int, quizID uuid.UUID) (*model.QuizSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID || session.QuizID != quizID || !session.IsActive {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// finalize is the single score+persist+delete sequence every submission path
// funnels through. The duplicate check inside the store's Finalize
// transaction is the authoritative guard; the Exists pre-check just fails
// fast without computing a score.
func (s *SessionService) finalize(ctx context.Context, session *model.QuizSession, submissionType model.SubmissionType, violationMessage string) (*SubmitResult, error) {
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	quiz, err := s.quizzes.GetByID(ctx, session.QuizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if !Eligible(quiz, user) {
		return nil, ErrNotEligible
	}

	exists, err := s.results.Exists(ctx, session.UserID, session.QuizID)
	if err != nil {
		return nil, fmt.Errorf("check result: %w", err)
	}
	if exists {
		// A concurrent finalization won. Remove the orphaned session row.
		if delErr := s.sessions.Delete(ctx, session.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("session_id", session.ID.String()).Msg("Failed to delete orphaned session")
		}
		return nil, ErrAlreadySubmitted
	}

	correct, err := s.questions.CorrectOptions(ctx, session.QuizID)
	if err != nil {
		return nil, fmt.Errorf("load correct options: %w", err)
	}

	score := Score(correct, session.ShuffledIndices, session.Answers)
	total := len(session.Answers)

	result := &model.QuizResult{
		QuizID:           session.QuizID,
		UserID:           session.UserID,
		SessionID:        session.ID,
		Answers:          session.Answers,
		Score:            score,
		Total:            total,
		RollNo:           user.RollNo,
		Year:             user.Year,
		Branch:           user.Branch,
		Division:         user.Division,
		SubmissionType:   submissionType,
		ViolationMessage: violationMessage,
		ViolationCount:   session.ViolationCount,
		StartedAt:        session.StartedAt,
		SubmittedAt:      s.now(),
	}

	inserted, err := s.results.Finalize(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	if !inserted {
		return nil, ErrAlreadySubmitted
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("quiz_id", session.QuizID.String()).
		Int("user_id", session.UserID).
		Int("score", score).
		Str("submission_type", string(submissionType)).
		Msg("Session finalized")

	return &SubmitResult{Score: score, Total: total}, nil
}

// SweepOnce evaluates every active session once, finalizing those whose
// timer expired or whose heartbeat went stale. Each session is processed
// independently: one failure is logged and the pass moves on. Returns how
// many sessions were finalized.
func (s *SessionService) SweepOnce(ctx context.Context) (int, error) {
	sessions, err := s.sessions.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}

	finalized := 0
	for i := range sessions {
		if done, err := s.sweepSession(ctx, &sessions[i]); err != nil {
			s.log.Error().Err(err).
				Str("session_id", sessions[i].ID.String()).
				Msg("Sweep failed for session, continuing")
		} else if done {
			finalized++
		}
	}
	return finalized, nil
}

func (s *SessionService) sweepSession(ctx context.Context, stale *model.QuizSession) (bool, error) {
	now := s.now()

	claimed, err := s.sessions.Claim(ctx, stale.ID, now.Add(-s.claimStaleAfter))
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		return false, nil
	}

	// Re-read after the claim: a heartbeat or answer update may have landed
	// between the listing and the claim.
	session, err := s.sessions.GetByID(ctx, stale.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil // Finalized by a manual submit in the meantime.
		}
		return false, fmt.Errorf("refetch: %w", err)
	}

	timeLeft := time.Duration(session.TimerSeconds)*time.Second - now.Sub(session.StartedAt)
	heartbeatAge := now.Sub(session.LastHeartbeat)

	var submissionType model.SubmissionType
	switch {
	case timeLeft <= 0 && heartbeatAge > disconnectGrace:
		submissionType = model.SubmissionTimeUpDisconnect
	case timeLeft <= 0:
		submissionType = model.SubmissionTimeUp
	case heartbeatAge > s.disconnectThreshold:
		submissionType = model.SubmissionDisconnected
	default:
		if err := s.sessions.Unclaim(ctx, session.ID); err != nil {
			return false, fmt.Errorf("unclaim: %w", err)
		}
		return false, nil
	}

	if _, err := s.finalize(ctx, session, submissionType, ""); err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			// Manual submit won the race; finalize already removed the
			// orphaned session. Nothing lost, nothing duplicated.
			s.log.Warn().
				Str("session_id", session.ID.String()).
				Msg("Sweep found an existing result, dropped orphaned session")
			return false, nil
		}
		return false, err
	}
	return true, nil
}
