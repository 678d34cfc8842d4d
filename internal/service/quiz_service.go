package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizpoint/quizpoint-backend/internal/config"
	"github.com/quizpoint/quizpoint-backend/internal/model"
	"github.com/quizpoint/quizpoint-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrInvalidQuestion rejects a question whose correct option is out of range.
var ErrInvalidQuestion = errors.New("correct option out of range")

// payloadCacheTTL bounds staleness if an invalidation is ever missed.
const payloadCacheTTL = 12 * time.Hour

// QuizService handles quiz authoring and the student-facing payload cache.
type QuizService struct {
	quizRepo     *repository.QuizRepository
	questionRepo *repository.QuestionRepository
	sessionRepo  *repository.SessionRepository
	resultRepo   *repository.ResultRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	quizRepo *repository.QuizRepository,
	questionRepo *repository.QuestionRepository,
	sessionRepo *repository.SessionRepository,
	resultRepo *repository.ResultRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		quizRepo:     quizRepo,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		resultRepo:   resultRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "quiz_service").Logger(),
	}
}

// Create inserts a new unpublished quiz.
func (s *QuizService) Create(ctx context.Context, authorID int, req *model.CreateQuizRequest) (*model.Quiz, error) {
	quiz := &model.Quiz{
		Title:        req.Title,
		AuthorID:     authorID,
		TimerMinutes: req.TimerMinutes,
		Year:         req.Year,
		Branch:       req.Branch,
		Division:     req.Division,
	}
	if err := s.quizRepo.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	return quiz, nil
}

// Get retrieves a quiz with its full question set (correct answers included —
// admin use only).
func (s *QuizService) Get(ctx context.Context, id uuid.UUID) (*model.Quiz, []model.Question, error) {
	quiz, err := s.quizRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrQuizNotFound
		}
		return nil, nil, fmt.Errorf("get quiz: %w", err)
	}
	questions, err := s.questionRepo.ListByQuiz(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	return quiz, questions, nil
}

// Update applies a partial quiz update and invalidates the payload cache.
func (s *QuizService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateQuizRequest) (*model.Quiz, error) {
	quiz, err := s.quizRepo.Update(ctx, id, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	s.invalidatePayload(ctx, id)
	return quiz, nil
}

// Delete removes a quiz and its cached payload.
func (s *QuizService) Delete(ctx context.Context, id uuid.UUID) error {
	rows, err := s.quizRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if rows == 0 {
		return ErrQuizNotFound
	}
	s.invalidatePayload(ctx, id)
	return nil
}

// ListByAuthor retrieves an admin's quizzes.
func (s *QuizService) ListByAuthor(ctx context.Context, authorID int) ([]model.Quiz, error) {
	return s.quizRepo.ListByAuthor(ctx, authorID)
}

// ReplaceQuestions swaps a quiz's question set atomically and invalidates the
// payload cache.
func (s *QuizService) ReplaceQuestions(ctx context.Context, quizID uuid.UUID, req *model.ReplaceQuestionsRequest) error {
	if _, err := s.quizRepo.GetByID(ctx, quizID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("get quiz: %w", err)
	}

	questions, err := questionsFromRequest(quizID, req)
	if err != nil {
		return err
	}

	if err := s.questionRepo.ReplaceAll(ctx, quizID, questions); err != nil {
		return fmt.Errorf("replace questions: %w", err)
	}
	s.invalidatePayload(ctx, quizID)
	return nil
}

// questionsFromRequest validates a bulk question payload and normalizes its
// ordering. Client order_num values are sort hints only: stored values are
// reassigned to a dense 0..n-1 sequence (stable on the request order) so the
// presentation scan and the scoring scan can never disagree on ties.
func questionsFromRequest(quizID uuid.UUID, req *model.ReplaceQuestionsRequest) ([]model.Question, error) {
	questions := make([]model.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		if int(q.CorrectOption) >= len(q.Options) {
			return nil, ErrInvalidQuestion
		}
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("marshal options: %w", err)
		}
		questions = append(questions, model.Question{
			QuizID:        quizID,
			QuestionText:  q.QuestionText,
			Options:       opts,
			CorrectOption: q.CorrectOption,
			OrderNum:      q.OrderNum,
		})
	}

	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderNum < questions[j].OrderNum
	})
	for i := range questions {
		questions[i].OrderNum = i
	}
	return questions, nil
}

// GetPayload returns the student-facing payload (no correct answers) from the
// Redis cache, self-healing from PostgreSQL on a miss.
func (s *QuizService) GetPayload(ctx context.Context, quizID uuid.UUID) (*model.QuizPayload, error) {
	key := config.CacheKey.QuizPayloadKey(quizID.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var payload model.QuizPayload
		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			return &payload, nil
		}
		// Corrupt cache entry: fall through and rebuild.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("payload cache lookup: %w", err)
	}

	payload, err := s.buildPayload(ctx, quizID)
	if err != nil {
		return nil, err
	}
	s.cachePayload(ctx, payload)
	return payload, nil
}

// PrewarmAllCaches loads every published quiz payload into Redis before the
// server accepts traffic, avoiding a thundering herd of lazy loads.
func (s *QuizService) PrewarmAllCaches(ctx context.Context) error {
	quizzes, err := s.quizRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published: %w", err)
	}

	for i := range quizzes {
		payload, err := s.buildPayload(ctx, quizzes[i].ID)
		if err != nil {
			s.log.Warn().Err(err).Str("quiz_id", quizzes[i].ID.String()).Msg("Prewarm skipped quiz")
			continue
		}
		s.cachePayload(ctx, payload)
	}

	s.log.Info().Int("count", len(quizzes)).Msg("Quiz payload caches prewarmed")
	return nil
}

// Lobby returns the published quizzes a student is eligible for, overlaid
// with attempt status.
func (s *QuizService) Lobby(ctx context.Context, user *model.User) ([]model.LobbyQuiz, error) {
	quizzes, err := s.quizRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}

	results, err := s.resultRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	resultMap := make(map[uuid.UUID]*model.QuizResult, len(results))
	for i := range results {
		resultMap[results[i].QuizID] = &results[i]
	}

	lobby := make([]model.LobbyQuiz, 0, len(quizzes))
	for i := range quizzes {
		quiz := quizzes[i]
		if !Eligible(&quiz, user) {
			continue
		}

		entry := model.LobbyQuiz{Quiz: quiz}
		if res, ok := resultMap[quiz.ID]; ok {
			entry.Attempted = true
			entry.Score = &res.Score
			entry.Total = &res.Total
		} else {
			_, err := s.sessionRepo.GetActive(ctx, user.ID, quiz.ID)
			switch {
			case err == nil:
				entry.Active = true
			case errors.Is(err, pgx.ErrNoRows):
				// No attempt yet.
			default:
				return nil, fmt.Errorf("check active session: %w", err)
			}
		}
		lobby = append(lobby, entry)
	}
	return lobby, nil
}

// ReorderForSession rearranges a payload's questions into a session's
// presentation order.
func ReorderForSession(payload *model.QuizPayload, shuffled []int32) *model.QuizPayload {
	out := &model.QuizPayload{
		QuizID:       payload.QuizID,
		Title:        payload.Title,
		TimerMinutes: payload.TimerMinutes,
		Questions:    make([]model.QuestionForStudent, 0, len(shuffled)),
	}
	for _, orig := range shuffled {
		if orig < 0 || int(orig) >= len(payload.Questions) {
			continue
		}
		out.Questions = append(out.Questions, payload.Questions[orig])
	}
	return out
}

func (s *QuizService) buildPayload(ctx context.Context, quizID uuid.UUID) (*model.QuizPayload, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	questions, err := s.questionRepo.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	payload := &model.QuizPayload{
		QuizID:       quiz.ID,
		Title:        quiz.Title,
		TimerMinutes: quiz.TimerMinutes,
		Questions:    make([]model.QuestionForStudent, 0, len(questions)),
	}
	for _, q := range questions {
		payload.Questions = append(payload.Questions, model.QuestionForStudent{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			OrderNum:     q.OrderNum,
		})
	}
	return payload, nil
}

func (s *QuizService) cachePayload(ctx context.Context, payload *model.QuizPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	key := config.CacheKey.QuizPayloadKey(payload.QuizID.String())
	if err := s.rdb.Set(ctx, key, raw, payloadCacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", payload.QuizID.String()).Msg("Payload cache write failed")
	}
}

func (s *QuizService) invalidatePayload(ctx context.Context, quizID uuid.UUID) {
	key := config.CacheKey.QuizPayloadKey(quizID.String())
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Payload cache invalidation failed")
	}
}
