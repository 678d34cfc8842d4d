package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/quizpoint/quizpoint-backend/internal/config"
	"github.com/quizpoint/quizpoint-backend/internal/model"
	"github.com/quizpoint/quizpoint-backend/internal/repository"
	ws "github.com/quizpoint/quizpoint-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// snapshotInterval is how often the monitor pushes a fresh snapshot.
const snapshotInterval = 2 * time.Second

// WSHandler streams live attempt snapshots to the admin monitor.
type WSHandler struct {
	sessionRepo *repository.SessionRepository
	userRepo    *repository.UserRepository
	upgrader    *gorillaws.Upgrader
	log         zerolog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionRepo *repository.SessionRepository, userRepo *repository.UserRepository, cfg *config.Config, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		upgrader:    ws.BuildUpgrader(cfg.AllowedOrigins),
		log:         log.With().Str("handler", "ws_monitor").Logger(),
	}
}

// Monitor handles GET /admin/quizzes/:quizId/monitor. Upgrades to a WebSocket
// and pushes a snapshot of the quiz's active attempts every few seconds until
// the client disconnects.
func (h *WSHandler) Monitor(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written its own error response.
		h.log.Warn().Err(err).Msg("WebSocket upgrade rejected")
		return
	}
	defer conn.Close()

	done := ws.KeepAlive(conn)
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	// Push the first snapshot immediately rather than after one interval.
	if err := h.pushSnapshot(c, conn, quizID); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if err := h.pushSnapshot(c, conn, quizID); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) pushSnapshot(c *gin.Context, conn *gorillaws.Conn, quizID uuid.UUID) error {
	snapshot, err := h.buildSnapshot(c, quizID)
	if err != nil {
		h.log.Error().Err(err).Str("quiz_id", quizID.String()).Msg("Snapshot build failed")
		return ws.WriteEnvelope(conn, ws.NewEnvelope(ws.EventError, gin.H{"message": "snapshot failed"}))
	}
	return ws.WriteEnvelope(conn, ws.NewEnvelope(ws.EventSnapshot, snapshot))
}

func (h *WSHandler) buildSnapshot(c *gin.Context, quizID uuid.UUID) (*ws.Snapshot, error) {
	ctx := c.Request.Context()

	sessions, err := h.sessionRepo.ListActiveByQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	snapshot := &ws.Snapshot{QuizID: quizID.String(), Sessions: make([]ws.MonitorSession, 0, len(sessions))}

	for i := range sessions {
		s := &sessions[i]

		answered := 0
		for _, a := range s.Answers {
			if a != model.Unanswered {
				answered++
			}
		}

		entry := ws.MonitorSession{
			SessionID:      s.ID.String(),
			UserID:         s.UserID,
			TimeLeft:       s.TimeLeft(now),
			Answered:       answered,
			Total:          len(s.Answers),
			ViolationCount: s.ViolationCount,
			HeartbeatAge:   int(now.Sub(s.LastHeartbeat).Seconds()),
		}

		if user, err := h.userRepo.GetByID(ctx, s.UserID); err == nil {
			entry.RollNo = user.RollNo
			entry.Name = user.Name
		}

		snapshot.Sessions = append(snapshot.Sessions, entry)
	}

	return snapshot, nil
}
