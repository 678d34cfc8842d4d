package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizpoint/quizpoint-backend/internal/config"
	"github.com/quizpoint/quizpoint-backend/internal/database"
	"github.com/quizpoint/quizpoint-backend/internal/handler"
	"github.com/quizpoint/quizpoint-backend/internal/logger"
	"github.com/quizpoint/quizpoint-backend/internal/repository"
	"github.com/quizpoint/quizpoint-backend/internal/router"
	"github.com/quizpoint/quizpoint-backend/internal/service"
	"github.com/quizpoint/quizpoint-backend/internal/validator"
	"github.com/quizpoint/quizpoint-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer bootCancel()

	pool, err := database.NewPostgresPool(bootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(bootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer rdb.Close()

	validator.Setup()

	// Repositories.
	userRepo := repository.NewUserRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)

	// Services.
	authService := service.NewAuthService(cfg, rdb)
	userService := service.NewUserService(userRepo, authService)
	quizService := service.NewQuizService(quizRepo, questionRepo, sessionRepo, resultRepo, rdb, log)
	sessionService := service.NewSessionService(sessionRepo, resultRepo, quizRepo, questionRepo, userRepo, cfg, log)
	resultService := service.NewResultService(resultRepo)
	mailer := service.NewLogMailer(log)

	// Handlers.
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, userService, mailer, log),
		Quiz:    handler.NewQuizHandler(quizService, userService, sessionService, log),
		Session: handler.NewSessionHandler(sessionService, rdb, log),
		Result:  handler.NewResultHandler(resultService, log),
		WS:      handler.NewWSHandler(sessionRepo, userRepo, cfg, log),
	}

	// Warm the quiz payload caches before accepting traffic.
	if err := quizService.PrewarmAllCaches(bootCtx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed, continuing with lazy loads")
	}

	// Background workers run on a cancellable context tied to shutdown.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweepWorker := worker.NewSweepWorker(sessionService, cfg.SweepInterval, log)
	go sweepWorker.Start(workerCtx)

	violationWorker := worker.NewViolationWorker(pool, rdb, log)
	go violationWorker.Start(workerCtx)

	engine := router.Setup(cfg, authService, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Block until SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	// Stop the workers after the HTTP surface drains so in-flight requests can
	// still enqueue; the violation worker flushes its buffer on cancel.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}
