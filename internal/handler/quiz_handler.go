package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizpoint/quizpoint-backend/internal/middleware"
	"github.com/quizpoint/quizpoint-backend/internal/model"
	"github.com/quizpoint/quizpoint-backend/internal/response"
	"github.com/quizpoint/quizpoint-backend/internal/service"
	"github.com/quizpoint/quizpoint-backend/internal/validator"
	"github.com/rs/zerolog"
)

// QuizHandler serves quiz authoring (admin) and the student lobby/paper views.
type QuizHandler struct {
	quizzes  *service.QuizService
	users    *service.UserService
	sessions *service.SessionService
	log      zerolog.Logger
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizzes *service.QuizService, users *service.UserService, sessions *service.SessionService, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		quizzes:  quizzes,
		users:    users,
		sessions: sessions,
		log:      log.With().Str("handler", "quiz").Logger(),
	}
}

// parseQuizID reads the :quizId path param. Writes the error response itself.
func parseQuizID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("quizId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /admin/quizzes.
func (h *QuizHandler) Create(c *gin.Context) {
	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	quiz, err := h.quizzes.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		h.log.Error().Err(err).Msg("Quiz creation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, quiz)
}

// List handles GET /admin/quizzes.
func (h *QuizHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizzes, err := h.quizzes.ListByAuthor(c.Request.Context(), claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("Quiz listing failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, quizzes)
}

// Get handles GET /admin/quizzes/:quizId.
func (h *QuizHandler) Get(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	quiz, questions, err := h.quizzes.Get(c.Request.Context(), quizID)
	if err != nil {
		if errors.Is(err, service.ErrQuizNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Quiz fetch failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz, "questions": questions})
}

// Update handles PATCH /admin/quizzes/:quizId.
func (h *QuizHandler) Update(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizzes.Update(c.Request.Context(), quizID, &req)
	if err != nil {
		if errors.Is(err, service.ErrQuizNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Quiz update failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, quiz)
}

// Delete handles DELETE /admin/quizzes/:quizId.
func (h *QuizHandler) Delete(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	if err := h.quizzes.Delete(c.Request.Context(), quizID); err != nil {
		if errors.Is(err, service.ErrQuizNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Quiz deletion failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ReplaceQuestions handles PUT /admin/quizzes/:quizId/questions.
func (h *QuizHandler) ReplaceQuestions(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.quizzes.ReplaceQuestions(c.Request.Context(), quizID, &req); err != nil {
		switch {
		case errors.Is(err, service.ErrQuizNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
		case errors.Is(err, service.ErrInvalidQuestion):
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"correct_option": "must index one of the provided options",
			})
		default:
			h.log.Error().Err(err).Msg("Question replacement failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"replaced": true})
}

// Lobby handles GET /quizzes. Students see eligible published quizzes with
// attempt status.
func (h *QuizHandler) Lobby(c *gin.Context) {
	claims := middleware.GetClaims(c)

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	lobby, err := h.quizzes.Lobby(c.Request.Context(), user)
	if err != nil {
		h.log.Error().Err(err).Msg("Lobby build failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, lobby)
}

// Paper handles GET /quizzes/:quizId/paper. Returns the question payload in
// the caller's session order; requires a live session.
func (h *QuizHandler) Paper(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	view, err := h.sessions.GetActive(c.Request.Context(), claims.UserID, quizID)
	if err != nil {
		h.log.Error().Err(err).Msg("Active session lookup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if view == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}

	payload, err := h.quizzes.GetPayload(c.Request.Context(), quizID)
	if err != nil {
		if errors.Is(err, service.ErrQuizNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Payload fetch failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"paper":   service.ReorderForSession(payload, view.ShuffledIndices),
		"session": view,
	})
}
