package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizpoint/quizpoint-backend/internal/model"
	"github.com/quizpoint/quizpoint-backend/internal/response"
	"github.com/quizpoint/quizpoint-backend/internal/service"
)

// CheckSingleDeviceSession enforces the one-device login policy for students:
// the token's JTI must match the live login session in Redis. A stale JTI
// means the login was superseded or reset. Admin tokens pass through.
// Must run after RequireAuth.
func CheckSingleDeviceSession(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.Role == model.RoleStudent {
			if err := auth.ValidateLoginSession(c.Request.Context(), claims.UserID, claims.ID); err != nil {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrLoginInvalidated)
				return
			}
		}

		c.Next()
	}
}
