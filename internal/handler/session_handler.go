package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizpoint/quizpoint-backend/internal/middleware"
	"github.com/quizpoint/quizpoint-backend/internal/model"
	"github.com/quizpoint/quizpoint-backend/internal/response"
	"github.com/quizpoint/quizpoint-backend/internal/service"
	"github.com/quizpoint/quizpoint-backend/internal/validator"
	"github.com/quizpoint/quizpoint-backend/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SessionHandler serves the quiz attempt lifecycle endpoints.
type SessionHandler struct {
	sessions *service.SessionService
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, rdb *redis.Client, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		rdb:      rdb,
		log:      log.With().Str("handler", "session").Logger(),
	}
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// Start handles POST /quizzes/:quizId/session.
func (h *SessionHandler) Start(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	result, err := h.sessions.Start(c.Request.Context(), claims.UserID, quizID)
	if err != nil {
		var active *service.ActiveSessionError
		switch {
		case errors.As(err, &active):
			response.FailWithData(c, http.StatusConflict, response.ErrSessionActive, gin.H{
				"session_id": active.SessionID,
				"time_left":  active.TimeLeft,
			})
		case errors.Is(err, service.ErrQuizNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
		case errors.Is(err, service.ErrNotEligible):
			response.Fail(c, http.StatusForbidden, response.ErrNotEligible)
		case errors.Is(err, service.ErrAlreadyAttempted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadyAttempted)
		default:
			h.log.Error().Err(err).Msg("Session start failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// GetActive handles GET /quizzes/:quizId/session.
func (h *SessionHandler) GetActive(c *gin.Context) {
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

	response.Success(c, http.StatusOK, view)
}

// UpdateAnswers handles PUT /quizzes/:quizId/session/:sessionId/answers.
func (h *SessionHandler) UpdateAnswers(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	var req model.UpdateAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.sessions.UpdateAnswers(c.Request.Context(), sessionID, claims.UserID, quizID, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		case errors.Is(err, service.ErrInvalidAnswers):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidAnswers)
		default:
			h.log.Error().Err(err).Msg("Answer update failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// Heartbeat handles POST /quizzes/:quizId/session/heartbeat.
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	if err := h.sessions.Heartbeat(c.Request.Context(), claims.UserID, quizID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
			return
		}
		h.log.Error().Err(err).Msg("Heartbeat failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"alive": true})
}

// ReportViolation handles POST /quizzes/:quizId/session/:sessionId/violation.
func (h *SessionHandler) ReportViolation(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	// The body is optional: a bare report counts as a minor violation.
	var req model.ReportViolationRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	count, err := h.sessions.ReportViolation(c.Request.Context(), sessionID, claims.UserID, quizID, req.IsMajor)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
			return
		}
		h.log.Error().Err(err).Msg("Violation report failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// Queue the audit record. Best-effort: the counter above is authoritative.
	h.enqueueAudit(c, sessionID, claims.UserID, quizID, req.IsMajor)

	response.Success(c, http.StatusOK, gin.H{"violation_count": count})
}

// Submit handles POST /quizzes/:quizId/session/:sessionId/submit.
func (h *SessionHandler) Submit(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	// The body is optional: a bare submit means Manual.
	var req model.SubmitRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	result, err := h.sessions.Submit(c.Request.Context(), sessionID, claims.UserID, req.SubmissionType, req.ViolationMessage)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		case errors.Is(err, service.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, service.ErrNotEligible):
			response.Fail(c, http.StatusForbidden, response.ErrNotEligible)
		default:
			h.log.Error().Err(err).Msg("Submission failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

func (h *SessionHandler) enqueueAudit(c *gin.Context, sessionID uuid.UUID, userID int, quizID uuid.UUID, isMajor bool) {
	payload := &worker.ViolationPayload{
		SessionID: sessionID.String(),
		UserID:    userID,
		QuizID:    quizID.String(),
		IsMajor:   isMajor,
		Timestamp: time.Now().Unix(),
	}
	if err := worker.EnqueueViolation(c.Request.Context(), h.rdb, payload); err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Violation audit enqueue failed")
	}
}
