package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizpoint/quizpoint-backend/internal/config"
	"github.com/quizpoint/quizpoint-backend/internal/model"
	"github.com/rs/zerolog"
)

// ─── In-memory store doubles ───────────────────────────────────────────

type memStores struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[uuid.UUID]*model.QuizSession
	results  map[string]*model.QuizResult
	quizzes  map[uuid.UUID]*model.Quiz
	correct  map[uuid.UUID][]int32
	users    map[int]*model.User
}

func pairKey(userID int, quizID uuid.UUID) string {
	return fmt.Sprintf("%d|%s", userID, quizID)
}

func newMemStores(now func() time.Time) *memStores {
	return &memStores{
		now:      now,
		sessions: make(map[uuid.UUID]*model.QuizSession),
		results:  make(map[string]*model.QuizResult),
		quizzes:  make(map[uuid.UUID]*model.Quiz),
		correct:  make(map[uuid.UUID][]int32),
		users:    make(map[int]*model.User),
	}
}

func (m *memStores) Create(_ context.Context, s *model.QuizSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.IsActive && existing.UserID == s.UserID && existing.QuizID == s.QuizID {
			return pgx.ErrNoRows // unique index collision
		}
	}
	s.ID = uuid.New()
	s.StartedAt = m.now()
	s.LastHeartbeat = m.now()
	s.LastSavedAt = m.now()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStores) GetActive(_ context.Context, userID int, quizID uuid.UUID) (*model.QuizSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.IsActive && s.UserID == userID && s.QuizID == quizID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStores) GetByID(_ context.Context, id uuid.UUID) (*model.QuizSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memStores) UpdateAnswers(_ context.Context, id uuid.UUID, answers []int32) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsActive {
		return 0, nil
	}
	s.Answers = append([]int32(nil), answers...)
	s.LastHeartbeat = m.now()
	s.LastSavedAt = m.now()
	return 1, nil
}

func (m *memStores) Heartbeat(_ context.Context, userID int, quizID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.IsActive && s.UserID == userID && s.QuizID == quizID {
			s.LastHeartbeat = m.now()
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memStores) IncrementViolation(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsActive {
		return 0, pgx.ErrNoRows
	}
	s.ViolationCount++
	s.LastHeartbeat = m.now()
	return s.ViolationCount, nil
}

func (m *memStores) ListActive(_ context.Context) ([]model.QuizSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.QuizSession
	for _, s := range m.sessions {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStores) Claim(_ context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsActive {
		return false, nil
	}
	if s.IsProcessing && s.ProcessingSince != nil && !s.ProcessingSince.Before(staleBefore) {
		return false, nil
	}
	now := m.now()
	s.IsProcessing = true
	s.ProcessingSince = &now
	return true, nil
}

func (m *memStores) Unclaim(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.IsProcessing = false
		s.ProcessingSince = nil
	}
	return nil
}

func (m *memStores) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memStores) Exists(_ context.Context, userID int, quizID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.results[pairKey(userID, quizID)]
	return ok, nil
}

func (m *memStores) Finalize(_ context.Context, res *model.QuizResult) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(res.UserID, res.QuizID)
	inserted := false
	if _, ok := m.results[key]; !ok {
		cp := *res
		m.results[key] = &cp
		inserted = true
	}
	delete(m.sessions, res.SessionID)
	return inserted, nil
}

func (m *memStores) GetQuizByID(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *q
	return &cp, nil
}

func (m *memStores) CountByQuiz(_ context.Context, quizID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.correct[quizID]), nil
}

func (m *memStores) CorrectOptions(_ context.Context, quizID uuid.UUID) ([]int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int32(nil), m.correct[quizID]...), nil
}

func (m *memStores) GetUserByID(_ context.Context, id int) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

// quizStoreAdapter / userStoreAdapter bridge the method-name mismatch between
// the shared double and the narrow store contracts.
type quizStoreAdapter struct{ m *memStores }

func (a quizStoreAdapter) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	return a.m.GetQuizByID(ctx, id)
}

type userStoreAdapter struct{ m *memStores }

func (a userStoreAdapter) GetByID(ctx context.Context, id int) (*model.User, error) {
	return a.m.GetUserByID(ctx, id)
}

// ─── Test harness ──────────────────────────────────────────────────────

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	svc    *SessionService
	stores *memStores
	clock  *fakeClock
	quizID uuid.UUID
	userID int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	stores := newMemStores(clock.Now)

	cfg := &config.Config{
		SweepInterval:     5 * time.Second,
		HeartbeatInterval: 50 * time.Second,
		ConnectionTimeout: 30 * time.Second,
	}

	svc := NewSessionService(
		stores, stores,
		quizStoreAdapter{stores}, stores,
		userStoreAdapter{stores},
		cfg, zerolog.Nop(),
	)
	svc.now = clock.Now

	quizID := uuid.New()
	stores.quizzes[quizID] = &model.Quiz{
		ID: quizID, Title: "Midterm", TimerMinutes: 10, IsPublished: true,
	}
	stores.correct[quizID] = []int32{0, 2, 1, 3}
	stores.users[1] = &model.User{ID: 1, RollNo: "R1", Year: "2026", Branch: "CS", Division: "A", Role: model.RoleStudent}

	return &testEnv{svc: svc, stores: stores, clock: clock, quizID: quizID, userID: 1}
}

func (e *testEnv) start(t *testing.T) *StartResult {
	t.Helper()
	res, err := e.svc.Start(context.Background(), e.userID, e.quizID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return res
}

func (e *testEnv) session(t *testing.T, id uuid.UUID) *model.QuizSession {
	t.Helper()
	s, err := e.stores.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("session fetch failed: %v", err)
	}
	return s
}

// ─── Start ─────────────────────────────────────────────────────────────

func TestStartCreatesSession(t *testing.T) {
	env := newTestEnv(t)

	res := env.start(t)
	if res.TimeLeft != 600 {
		t.Errorf("expected time_left 600, got %d", res.TimeLeft)
	}

	s := env.session(t, res.SessionID)
	if len(s.ShuffledIndices) != 4 || len(s.Answers) != 4 {
		t.Fatalf("expected 4 indices and answers, got %d/%d", len(s.ShuffledIndices), len(s.Answers))
	}

	seen := make(map[int32]bool)
	for _, v := range s.ShuffledIndices {
		if v < 0 || v >= 4 || seen[v] {
			t.Fatalf("shuffled_indices is not a permutation: %v", s.ShuffledIndices)
		}
		seen[v] = true
	}
	for _, a := range s.Answers {
		if a != model.Unanswered {
			t.Fatalf("expected all answers unanswered, got %v", s.Answers)
		}
	}
}

func TestStartUnknownQuiz(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Start(context.Background(), env.userID, uuid.New())
	if !errors.Is(err, ErrQuizNotFound) {
		t.Errorf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestStartUnpublishedQuiz(t *testing.T) {
	env := newTestEnv(t)
	env.stores.quizzes[env.quizID].IsPublished = false

	_, err := env.svc.Start(context.Background(), env.userID, env.quizID)
	if !errors.Is(err, ErrQuizNotFound) {
		t.Errorf("expected ErrQuizNotFound for unpublished quiz, got %v", err)
	}
}

func TestStartNotEligible(t *testing.T) {
	env := newTestEnv(t)
	env.stores.quizzes[env.quizID].Branch = "ME"

	_, err := env.svc.Start(context.Background(), env.userID, env.quizID)
	if !errors.Is(err, ErrNotEligible) {
		t.Errorf("expected ErrNotEligible, got %v", err)
	}
}

func TestStartNoQuestions(t *testing.T) {
	env := newTestEnv(t)
	env.stores.correct[env.quizID] = nil

	_, err := env.svc.Start(context.Background(), env.userID, env.quizID)
	if !errors.Is(err, ErrNoQuestions) {
		t.Errorf("expected ErrNoQuestions, got %v", err)
	}
}

func TestStartDuplicateSurfacesWinner(t *testing.T) {
	env := newTestEnv(t)
	first := env.start(t)

	env.clock.Advance(30 * time.Second)

	_, err := env.svc.Start(context.Background(), env.userID, env.quizID)
	var active *ActiveSessionError
	if !errors.As(err, &active) {
		t.Fatalf("expected ActiveSessionError, got %v", err)
	}
	if active.SessionID != first.SessionID {
		t.Errorf("expected winner session %s, got %s", first.SessionID, active.SessionID)
	}
	if active.TimeLeft != 570 {
		t.Errorf("expected time_left 570, got %d", active.TimeLeft)
	}
}

func TestStartAfterResultExists(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)

	if _, err := env.svc.Submit(context.Background(), res.SessionID, env.userID, "Manual", ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	_, err := env.svc.Start(context.Background(), env.userID, env.quizID)
	if !errors.Is(err, ErrAlreadyAttempted) {
		t.Errorf("expected ErrAlreadyAttempted, got %v", err)
	}
}

// ─── GetActive ─────────────────────────────────────────────────────────

func TestGetActiveExpiredReportsAbsent(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)

	env.clock.Advance(601 * time.Second)

	view, err := env.svc.GetActive(context.Background(), env.userID, env.quizID)
	if err != nil {
		t.Fatalf("get active failed: %v", err)
	}
	if view != nil {
		t.Errorf("expected nil view for expired session, got %+v", view)
	}

	// The read path never finalizes: the row is still there for the sweep.
	if _, err := env.stores.GetByID(context.Background(), res.SessionID); err != nil {
		t.Errorf("expected session row to survive the read, got %v", err)
	}
}

func TestGetActiveSnapshot(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)

	env.clock.Advance(90 * time.Second)

	view, err := env.svc.GetActive(context.Background(), env.userID, env.quizID)
	if err != nil || view == nil {
		t.Fatalf("expected snapshot, got view=%v err=%v", view, err)
	}
	if view.SessionID != res.SessionID || view.TimeLeft != 510 {
		t.Errorf("unexpected snapshot: %+v", view)
	}
}

// ─── UpdateAnswers ─────────────────────────────────────────────────────

func TestUpdateAnswersValidation(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)
	ctx := context.Background()

	if err := env.svc.UpdateAnswers(ctx, res.SessionID, env.userID, env.quizID, []int32{0, 1}); !errors.Is(err, ErrInvalidAnswers) {
		t.Errorf("expected ErrInvalidAnswers for wrong length, got %v", err)
	}
	if err := env.svc.UpdateAnswers(ctx, res.SessionID, env.userID, env.quizID, []int32{0, -2, 0, 0}); !errors.Is(err, ErrInvalidAnswers) {
		t.Errorf("expected ErrInvalidAnswers for value below -1, got %v", err)
	}

	answers := []int32{0, model.Unanswered, 2, 1}
	if err := env.svc.UpdateAnswers(ctx, res.SessionID, env.userID, env.quizID, answers); err != nil {
		t.Fatalf("valid update failed: %v", err)
	}

	s := env.session(t, res.SessionID)
	for i, a := range answers {
		if s.Answers[i] != a {
			t.Fatalf("expected answers %v, got %v", answers, s.Answers)
		}
	}
}

func TestUpdateAnswersWrongOwner(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)

	err := env.svc.UpdateAnswers(context.Background(), res.SessionID, 99, env.quizID, []int32{0, 0, 0, 0})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for foreign session, got %v", err)
	}
}

// ─── Heartbeat and violations ──────────────────────────────────────────

func TestHeartbeatRefreshesLiveness(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)

	env.clock.Advance(50 * time.Second)
	if err := env.svc.Heartbeat(context.Background(), env.userID, env.quizID); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	s := env.session(t, res.SessionID)
	if !s.LastHeartbeat.Equal(env.clock.Now()) {
		t.Errorf("expected heartbeat at %v, got %v", env.clock.Now(), s.LastHeartbeat)
	}
}

func TestHeartbeatWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	err := env.svc.Heartbeat(context.Background(), env.userID, env.quizID)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestReportViolationCounting(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)
	ctx := context.Background()

	count, err := env.svc.ReportViolation(ctx, res.SessionID, env.userID, env.quizID, false)
	if err != nil || count != 1 {
		t.Fatalf("expected count 1, got %d err=%v", count, err)
	}
	count, err = env.svc.ReportViolation(ctx, res.SessionID, env.userID, env.quizID, false)
	if err != nil || count != 2 {
		t.Fatalf("expected count 2, got %d err=%v", count, err)
	}

	// Major violations are escalated via submit, not counted here.
	count, err = env.svc.ReportViolation(ctx, res.SessionID, env.userID, env.quizID, true)
	if err != nil || count != 2 {
		t.Fatalf("expected major report to leave count at 2, got %d err=%v", count, err)
	}
}

// ─── Submit ────────────────────────────────────────────────────────────

func TestSubmitScoresAndPersists(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)
	ctx := context.Background()

	s := env.session(t, res.SessionID)
	correct := env.stores.correct[env.quizID]

	// Answer the first two presentation positions correctly, leave the rest.
	answers := make([]int32, 4)
	for p := range answers {
		if p < 2 {
			answers[p] = correct[s.ShuffledIndices[p]]
		} else {
			answers[p] = model.Unanswered
		}
	}
	if err := env.svc.UpdateAnswers(ctx, res.SessionID, env.userID, env.quizID, answers); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	submit, err := env.svc.Submit(ctx, res.SessionID, env.userID, "Manual", "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if submit.Score != 2 || submit.Total != 4 {
		t.Errorf("expected 2/4, got %d/%d", submit.Score, submit.Total)
	}

	stored := env.stores.results[pairKey(env.userID, env.quizID)]
	if stored == nil {
		t.Fatal("expected a persisted result")
	}
	if stored.SubmissionType != model.SubmissionManual {
		t.Errorf("expected Manual submission type, got %q", stored.SubmissionType)
	}
	if _, err := env.stores.GetByID(ctx, res.SessionID); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected session deleted after finalize, got %v", err)
	}
}

func TestSubmitUnknownTypeCoercedToManual(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)

	if _, err := env.svc.Submit(context.Background(), res.SessionID, env.userID, "Sabotage", ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	stored := env.stores.results[pairKey(env.userID, env.quizID)]
	if stored.SubmissionType != model.SubmissionManual {
		t.Errorf("expected unknown type coerced to Manual, got %q", stored.SubmissionType)
	}
}

func TestDoubleSubmitKeepsOneResult(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)
	ctx := context.Background()

	if _, err := env.svc.Submit(ctx, res.SessionID, env.userID, "Manual", ""); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	_, err := env.svc.Submit(ctx, res.SessionID, env.userID, "Manual", "")
	if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("expected second submit rejected, got %v", err)
	}
	if len(env.stores.results) != 1 {
		t.Errorf("expected exactly one result, got %d", len(env.stores.results))
	}
}

func TestSubmitAfterConcurrentResultDropsOrphan(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)
	ctx := context.Background()

	// Simulate a concurrent finalization winning the race while the session
	// row lingers.
	env.stores.results[pairKey(env.userID, env.quizID)] = &model.QuizResult{
		QuizID: env.quizID, UserID: env.userID, Score: 3, Total: 4,
	}

	_, err := env.svc.Submit(ctx, res.SessionID, env.userID, "Manual", "")
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if _, err := env.stores.GetByID(ctx, res.SessionID); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected orphaned session removed, got %v", err)
	}
	if env.stores.results[pairKey(env.userID, env.quizID)].Score != 3 {
		t.Error("the winning result must not be overwritten")
	}
}

// ─── Concurrent lifecycle races ────────────────────────────────────────

// activeMissStore hides the active session from a bounded number of GetActive
// calls, so a start request sails past its pre-check and collides on insert.
type activeMissStore struct {
	SessionStore
	mu     sync.Mutex
	misses int
}

func (s *activeMissStore) GetActive(ctx context.Context, userID int, quizID uuid.UUID) (*model.QuizSession, error) {
	s.mu.Lock()
	if s.misses > 0 {
		s.misses--
		s.mu.Unlock()
		return nil, pgx.ErrNoRows
	}
	s.mu.Unlock()
	return s.SessionStore.GetActive(ctx, userID, quizID)
}

func TestStartRecoversWhenInsertCollides(t *testing.T) {
	env := newTestEnv(t)
	first := env.start(t)

	// The pre-check misses once, so the second start reaches the insert, loses
	// on the unique index and must recover the winner from a refetch.
	env.svc.sessions = &activeMissStore{SessionStore: env.stores, misses: 1}

	_, err := env.svc.Start(context.Background(), env.userID, env.quizID)
	var active *ActiveSessionError
	if !errors.As(err, &active) {
		t.Fatalf("expected ActiveSessionError from insert collision, got %v", err)
	}
	if active.SessionID != first.SessionID {
		t.Errorf("expected winner session %s, got %s", first.SessionID, active.SessionID)
	}
	if len(env.stores.sessions) != 1 {
		t.Errorf("expected exactly one session row, got %d", len(env.stores.sessions))
	}
}

func TestConcurrentStartSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const racers = 4
	results := make([]*StartResult, racers)
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.svc.Start(ctx, env.userID, env.quizID)
		}(i)
	}
	wg.Wait()

	var winner *StartResult
	for i := 0; i < racers; i++ {
		if errs[i] == nil {
			if winner != nil {
				t.Fatal("more than one start succeeded")
			}
			winner = results[i]
			continue
		}
		var active *ActiveSessionError
		if !errors.As(errs[i], &active) {
			t.Fatalf("loser %d: expected ActiveSessionError, got %v", i, errs[i])
		}
	}
	if winner == nil {
		t.Fatal("expected exactly one start to succeed")
	}

	for i := 0; i < racers; i++ {
		var active *ActiveSessionError
		if errors.As(errs[i], &active) && active.SessionID != winner.SessionID {
			t.Errorf("loser %d surfaced session %s, winner is %s", i, active.SessionID, winner.SessionID)
		}
	}
	if len(env.stores.sessions) != 1 {
		t.Errorf("expected exactly one session row, got %d", len(env.stores.sessions))
	}
}

func TestConcurrentSubmitSingleResult(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)
	ctx := context.Background()

	const racers = 4
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Submit(ctx, res.SessionID, env.userID, "Manual", "")
		}(i)
	}
	wg.Wait()

	won := 0
	for i := 0; i < racers; i++ {
		switch {
		case errs[i] == nil:
			won++
		case errors.Is(errs[i], ErrAlreadySubmitted) || errors.Is(errs[i], ErrSessionNotFound):
			// Expected loser outcomes.
		default:
			t.Errorf("racer %d: unexpected error %v", i, errs[i])
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one submit to win, got %d", won)
	}
	if len(env.stores.results) != 1 {
		t.Errorf("expected exactly one result, got %d", len(env.stores.results))
	}
	if _, err := env.stores.GetByID(ctx, res.SessionID); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected the session removed, got %v", err)
	}
}

// ─── Sweep ─────────────────────────────────────────────────────────────

func sweptResult(t *testing.T, env *testEnv) *model.QuizResult {
	t.Helper()
	res := env.stores.results[pairKey(env.userID, env.quizID)]
	if res == nil {
		t.Fatal("expected the sweep to finalize a result")
	}
	return res
}

func TestSweepTimeUp(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)
	ctx := context.Background()

	// Timer expired but the client heartbeated recently.
	env.clock.Advance(601 * time.Second)
	if _, err := env.stores.Heartbeat(ctx, env.userID, env.quizID); err != nil {
		t.Fatal(err)
	}

	n, err := env.svc.SweepOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 finalized, got %d err=%v", n, err)
	}
	if got := sweptResult(t, env).SubmissionType; got != model.SubmissionTimeUp {
		t.Errorf("expected %q, got %q", model.SubmissionTimeUp, got)
	}
}

func TestSweepTimeUpDisconnected(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)

	// Timer expired and the last heartbeat is more than 30s old.
	env.clock.Advance(601 * time.Second)

	n, err := env.svc.SweepOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected 1 finalized, got %d err=%v", n, err)
	}
	if got := sweptResult(t, env).SubmissionType; got != model.SubmissionTimeUpDisconnect {
		t.Errorf("expected %q, got %q", model.SubmissionTimeUpDisconnect, got)
	}
}

func TestSweepDisconnectedMidQuiz(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)

	// Timer still running, heartbeat stale past 2*50s + 30s.
	env.clock.Advance(131 * time.Second)

	n, err := env.svc.SweepOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected 1 finalized, got %d err=%v", n, err)
	}
	if got := sweptResult(t, env).SubmissionType; got != model.SubmissionDisconnected {
		t.Errorf("expected %q, got %q", model.SubmissionDisconnected, got)
	}
}

func TestSweepLeavesHealthySessionAlone(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)

	env.clock.Advance(60 * time.Second)

	n, err := env.svc.SweepOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected 0 finalized, got %d err=%v", n, err)
	}

	s := env.session(t, res.SessionID)
	if s.IsProcessing {
		t.Error("expected the claim released after the healthy check")
	}
	if len(env.stores.results) != 0 {
		t.Error("expected no result for a healthy session")
	}
}

func TestSweepSkipsRecentClaim(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)
	ctx := context.Background()

	env.clock.Advance(601 * time.Second)

	// Another sweeper claimed it moments ago.
	if ok, _ := env.stores.Claim(ctx, res.SessionID, env.clock.Now().Add(-65*time.Second)); !ok {
		t.Fatal("setup claim failed")
	}

	n, err := env.svc.SweepOnce(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected claimed session skipped, got %d err=%v", n, err)
	}
}

func TestSweepReclaimsStaleClaim(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)
	ctx := context.Background()

	// A sweeper claimed the session and crashed.
	if ok, _ := env.stores.Claim(ctx, res.SessionID, env.clock.Now()); !ok {
		t.Fatal("setup claim failed")
	}

	// Past the timer and past the claim staleness bound (5s sweep + 60s).
	env.clock.Advance(700 * time.Second)

	n, err := env.svc.SweepOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected stale claim reclaimed and finalized, got %d err=%v", n, err)
	}
}

func TestSweepSnapshotsViolationState(t *testing.T) {
	env := newTestEnv(t)
	res := env.start(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.svc.ReportViolation(ctx, res.SessionID, env.userID, env.quizID, false); err != nil {
			t.Fatal(err)
		}
	}

	env.clock.Advance(601 * time.Second)
	if _, err := env.svc.SweepOnce(ctx); err != nil {
		t.Fatal(err)
	}

	if got := sweptResult(t, env).ViolationCount; got != 3 {
		t.Errorf("expected violation count 3 on the result, got %d", got)
	}
}
