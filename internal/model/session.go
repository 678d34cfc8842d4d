package model

import (
	"time"

	"github.com/google/uuid"
)

// Unanswered marks an answer slot the student has not filled in yet.
const Unanswered int32 = -1

// QuizSession is a student's in-progress attempt. Exactly one active session
// may exist per (user, quiz); the row is deleted when the attempt finalizes.
type QuizSession struct {
	ID     uuid.UUID `json:"id"`
	QuizID uuid.UUID `json:"quiz_id"`
	UserID int       `json:"user_id"`

	// ShuffledIndices is a fixed permutation of [0, questionCount) mapping
	// presentation position to original question index.
	ShuffledIndices []int32 `json:"shuffled_indices"`
	// Answers holds one option index per presentation position, or Unanswered.
	Answers []int32 `json:"answers"`

	StartedAt      time.Time `json:"started_at"`
	TimerSeconds   int       `json:"timer_seconds"`
	ViolationCount int       `json:"violation_count"`
	LastHeartbeat  time.Time `json:"last_heartbeat"`
	LastSavedAt    time.Time `json:"last_saved_at"`
	IsActive       bool      `json:"is_active"`

	// IsProcessing claims the session for a sweep pass so concurrent ticks
	// never finalize the same attempt twice. ProcessingSince bounds how long
	// a crashed claim can starve the session before it is reclaimed.
	IsProcessing    bool       `json:"-"`
	ProcessingSince *time.Time `json:"-"`
}

// TimeLeft returns whole seconds remaining on the attempt's timer, floored at zero.
func (s *QuizSession) TimeLeft(now time.Time) int {
	left := s.TimerSeconds - int(now.Sub(s.StartedAt).Seconds())
	if left < 0 {
		return 0
	}
	return left
}

// SessionView is the snapshot returned to the quiz-taking client.
type SessionView struct {
	SessionID       uuid.UUID `json:"session_id"`
	QuizID          uuid.UUID `json:"quiz_id"`
	Answers         []int32   `json:"answers"`
	ShuffledIndices []int32   `json:"shuffled_indices"`
	TimeLeft        int       `json:"time_left"`
	ViolationCount  int       `json:"violation_count"`
}

// UpdateAnswersRequest replaces the session's answers wholesale.
type UpdateAnswersRequest struct {
	Answers []int32 `json:"answers" binding:"required"`
}

// ReportViolationRequest reports a proctoring violation. Major violations are
// not counted here; the client escalates them via an immediate submit.
type ReportViolationRequest struct {
	IsMajor bool `json:"is_major"`
}

// SubmitRequest finalizes the attempt. SubmissionType defaults to Manual.
type SubmitRequest struct {
	SubmissionType   string `json:"submission_type" binding:"omitempty,max=50"`
	ViolationMessage string `json:"violation_message" binding:"omitempty,max=500"`
}
