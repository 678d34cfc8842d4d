package websocket

import "encoding/json"

// Event types pushed to monitor clients.
const (
	EventSnapshot = "snapshot"
	EventError    = "error"
)

// Envelope is the wire frame for every monitor message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MonitorSession is one active attempt as shown on the admin monitor.
type MonitorSession struct {
	SessionID      string `json:"session_id"`
	UserID         int    `json:"user_id"`
	RollNo         string `json:"roll_no"`
	Name           string `json:"name"`
	TimeLeft       int    `json:"time_left"`
	Answered       int    `json:"answered"`
	Total          int    `json:"total"`
	ViolationCount int    `json:"violation_count"`
	HeartbeatAge   int    `json:"heartbeat_age"`
}

// Snapshot is the periodic monitor payload for one quiz.
type Snapshot struct {
	QuizID   string           `json:"quiz_id"`
	Sessions []MonitorSession `json:"sessions"`
}

// NewEnvelope marshals data into a wire frame. Marshal failures return an
// error frame instead so the client always receives something parseable.
func NewEnvelope(event string, data interface{}) *Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		return &Envelope{Event: EventError, Data: json.RawMessage(`{"message":"encode failed"}`)}
	}
	return &Envelope{Event: event, Data: raw}
}
