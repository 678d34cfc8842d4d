package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizpoint/quizpoint-backend/internal/config"
	"github.com/quizpoint/quizpoint-backend/internal/handler"
	"github.com/quizpoint/quizpoint-backend/internal/middleware"
	"github.com/quizpoint/quizpoint-backend/internal/response"
	"github.com/quizpoint/quizpoint-backend/internal/service"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth    *handler.AuthHandler
	Quiz    *handler.QuizHandler
	Session *handler.SessionHandler
	Result  *handler.ResultHandler
	WS      *handler.WSHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(cfg *config.Config, auth *service.AuthService, h *Handlers) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(response.RequestIDMiddleware())
	r.Use(middleware.Compression())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	// Auth endpoints are rate-limited against brute force.
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	authGroup := api.Group("/auth", authLimiter.Middleware())
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/forgot-password", h.Auth.ForgotPassword)
		authGroup.POST("/reset-password", h.Auth.ResetPassword)
	}

	// Any authenticated user.
	authed := api.Group("", middleware.RequireAuth(auth))
	{
		authed.POST("/auth/logout", h.Auth.Logout)
		authed.GET("/auth/me", h.Auth.Me)
	}

	// Student endpoints: single-device login enforced.
	student := api.Group("",
		middleware.RequireAuth(auth),
		middleware.RequireStudent(),
		middleware.CheckSingleDeviceSession(auth),
	)
	{
		student.GET("/quizzes", h.Quiz.Lobby)
		student.GET("/quizzes/:quizId/paper", h.Quiz.Paper)

		student.POST("/quizzes/:quizId/session", h.Session.Start)
		student.GET("/quizzes/:quizId/session", h.Session.GetActive)
		student.POST("/quizzes/:quizId/session/heartbeat", h.Session.Heartbeat)
		student.PUT("/quizzes/:quizId/session/:sessionId/answers", h.Session.UpdateAnswers)
		student.POST("/quizzes/:quizId/session/:sessionId/violation", h.Session.ReportViolation)
		student.POST("/quizzes/:quizId/session/:sessionId/submit", h.Session.Submit)

		student.GET("/results", h.Result.ListMine)
	}

	// Admin endpoints.
	admin := api.Group("/admin",
		middleware.RequireAuth(auth),
		middleware.RequireAdmin(),
	)
	{
		admin.POST("/quizzes", h.Quiz.Create)
		admin.GET("/quizzes", h.Quiz.List)
		admin.GET("/quizzes/:quizId", h.Quiz.Get)
		admin.PATCH("/quizzes/:quizId", h.Quiz.Update)
		admin.DELETE("/quizzes/:quizId", h.Quiz.Delete)
		admin.PUT("/quizzes/:quizId/questions", h.Quiz.ReplaceQuestions)
		admin.GET("/quizzes/:quizId/results", h.Result.ListByQuiz)
		admin.GET("/quizzes/:quizId/monitor", h.WS.Monitor)
	}

	return r
}
