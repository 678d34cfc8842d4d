package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// BuildUpgrader returns an upgrader that only admits the configured origins.
// An empty allowlist admits everything (development mode).
func BuildUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
}

// WriteEnvelope sends one frame with a write deadline.
func WriteEnvelope(conn *websocket.Conn, env *Envelope) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

// KeepAlive configures the read side for ping/pong liveness and spawns a
// goroutine draining incoming frames. The returned channel closes when the
// read loop ends, telling the writer the client is gone.
func KeepAlive(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return done
}
