package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quizpoint/quizpoint-backend/internal/middleware"
	"github.com/quizpoint/quizpoint-backend/internal/response"
	"github.com/quizpoint/quizpoint-backend/internal/service"
	"github.com/rs/zerolog"
)

// ResultHandler serves finalized attempt reporting.
type ResultHandler struct {
	results *service.ResultService
	log     zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(results *service.ResultService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		results: results,
		log:     log.With().Str("handler", "result").Logger(),
	}
}

// ListMine handles GET /results. A student's own finalized attempts.
func (h *ResultHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)

	results, err := h.results.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("Result listing failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, results)
}

// ListByQuiz handles GET /admin/quizzes/:quizId/results with cohort filters
// (?year=&branch=&division=) and pagination (?page=&per_page=).
func (h *ResultHandler) ListByQuiz(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	var year, branch, division *string
	if v := c.Query("year"); v != "" {
		year = &v
	}
	if v := c.Query("branch"); v != "" {
		branch = &v
	}
	if v := c.Query("division"); v != "" {
		division = &v
	}

	rows, total, err := h.results.ListByQuiz(c.Request.Context(), quizID, page, perPage, year, branch, division)
	if err != nil {
		h.log.Error().Err(err).Msg("Quiz result listing failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}

	response.SuccessWithPagination(c, http.StatusOK, rows, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}
