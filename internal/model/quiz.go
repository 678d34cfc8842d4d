package model

import (
	"time"

	"github.com/google/uuid"
)

// Quiz represents an authored quiz. Year/Branch/Division form the access
// scope: an empty field is a wildcard matching any student value.
type Quiz struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	AuthorID     int       `json:"author_id"`
	TimerMinutes int       `json:"timer_minutes"`
	Year         string    `json:"year"`
	Branch       string    `json:"branch"`
	Division     string    `json:"division"`
	IsPublished  bool      `json:"is_published"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateQuizRequest is the payload for creating a new quiz.
type CreateQuizRequest struct {
	Title        string `json:"title" binding:"required,min=3,max=255"`
	TimerMinutes int    `json:"timer_minutes" binding:"required,min=1,max=480"`
	Year         string `json:"year" binding:"omitempty,max=10"`
	Branch       string `json:"branch" binding:"omitempty,max=50"`
	Division     string `json:"division" binding:"omitempty,max=10"`
}

// UpdateQuizRequest is the payload for updating an existing quiz. Every field
// is enumerated explicitly; absent fields leave the stored value untouched.
type UpdateQuizRequest struct {
	Title        string  `json:"title" binding:"omitempty,min=3,max=255"`
	TimerMinutes *int    `json:"timer_minutes" binding:"omitempty,min=1,max=480"`
	Year         *string `json:"year" binding:"omitempty,max=10"`
	Branch       *string `json:"branch" binding:"omitempty,max=50"`
	Division     *string `json:"division" binding:"omitempty,max=10"`
	IsPublished  *bool   `json:"is_published" binding:"omitempty"`
}

// QuizPayload is the Redis-cached payload sent to students (no correct answers).
type QuizPayload struct {
	QuizID       uuid.UUID            `json:"quiz_id"`
	Title        string               `json:"title"`
	TimerMinutes int                  `json:"timer_minutes"`
	Questions    []QuestionForStudent `json:"questions"`
}

// LobbyQuiz is a quiz as shown in the student lobby, with attempt status.
type LobbyQuiz struct {
	Quiz
	Attempted bool `json:"attempted"`
	Active    bool `json:"active"`
	Score     *int `json:"score,omitempty"`
	Total     *int `json:"total,omitempty"`
}
