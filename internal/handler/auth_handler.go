package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizpoint/quizpoint-backend/internal/middleware"
	"github.com/quizpoint/quizpoint-backend/internal/model"
	"github.com/quizpoint/quizpoint-backend/internal/response"
	"github.com/quizpoint/quizpoint-backend/internal/service"
	"github.com/quizpoint/quizpoint-backend/internal/validator"
	"github.com/rs/zerolog"
)

// AuthHandler serves registration, login, logout and password reset.
type AuthHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	mailer service.Mailer
	log    zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, users *service.UserService, mailer service.Mailer, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		users:  users,
		mailer: mailer,
		log:    log.With().Str("handler", "auth").Logger(),
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.users.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		h.log.Error().Err(err).Msg("Registration failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		// Indistinguishable from a bad password on purpose.
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.auth.GenerateToken(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, service.ErrLoginActive) {
			response.Fail(c, http.StatusConflict, response.ErrLoginActive)
			return
		}
		h.log.Error().Err(err).Int("user_id", user.ID).Msg("Token generation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.LoginResponse{Token: token, User: *user})
}

// Logout handles POST /auth/logout. Frees the single-device login slot.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.auth.ClearLoginSession(c.Request.Context(), claims.UserID); err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("Logout failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// ForgotPassword handles POST /auth/forgot-password. Always answers 200 so the
// endpoint cannot be used to probe which emails exist.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ok := gin.H{"sent": true}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Success(c, http.StatusOK, ok)
		return
	}

	otp, err := h.auth.IssueResetOTP(c.Request.Context(), user.Email)
	if err != nil {
		h.log.Error().Err(err).Msg("OTP issue failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if err := h.mailer.SendResetOTP(c.Request.Context(), user.Email, otp); err != nil {
		h.log.Error().Err(err).Msg("OTP delivery failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, ok)
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidOTP)
		return
	}

	if err := h.auth.ConsumeResetOTP(c.Request.Context(), user.Email, req.OTP); err != nil {
		if errors.Is(err, service.ErrInvalidOTP) {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidOTP)
			return
		}
		h.log.Error().Err(err).Msg("OTP verification failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if err := h.users.ResetPassword(c.Request.Context(), user.ID, req.Password); err != nil {
		h.log.Error().Err(err).Int("user_id", user.ID).Msg("Password reset failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// Changing the password ends any live login on the old credentials.
	if err := h.auth.ClearLoginSession(c.Request.Context(), user.ID); err != nil {
		h.log.Warn().Err(err).Int("user_id", user.ID).Msg("Login session clear failed after reset")
	}

	response.Success(c, http.StatusOK, gin.H{"reset": true})
}
