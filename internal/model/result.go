package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionType records which path finalized an attempt.
type SubmissionType string

const (
	SubmissionManual           SubmissionType = "Manual"
	SubmissionTimeUp           SubmissionType = "Time Up"
	SubmissionTimeUpDisconnect SubmissionType = "Time Up: Disconnected"
	SubmissionDisconnected     SubmissionType = "Disconnected"
)

// NormalizeSubmissionType coerces unknown or blank values to Manual.
func NormalizeSubmissionType(raw string) SubmissionType {
	switch SubmissionType(raw) {
	case SubmissionTimeUp, SubmissionTimeUpDisconnect, SubmissionDisconnected, SubmissionManual:
		return SubmissionType(raw)
	default:
		return SubmissionManual
	}
}

// QuizResult is a finalized, immutable scored attempt. Unique per (user, quiz).
// RollNo/Year/Branch/Division snapshot the student at submission time so later
// account edits do not rewrite history.
type QuizResult struct {
	ID               uuid.UUID      `json:"id"`
	QuizID           uuid.UUID      `json:"quiz_id"`
	UserID           int            `json:"user_id"`
	SessionID        uuid.UUID      `json:"session_id"`
	Answers          []int32        `json:"answers"`
	Score            int            `json:"score"`
	Total            int            `json:"total"`
	RollNo           string         `json:"roll_no"`
	Year             string         `json:"year"`
	Branch           string         `json:"branch"`
	Division         string         `json:"division"`
	SubmissionType   SubmissionType `json:"submission_type"`
	ViolationMessage string         `json:"violation_message"`
	ViolationCount   int            `json:"violation_count"`
	StartedAt        time.Time      `json:"started_at"`
	SubmittedAt      time.Time      `json:"submitted_at"`
}

// ResultRow is a result joined with live student identity for admin reports.
type ResultRow struct {
	QuizResult
	Name string `json:"name"`
}
