package model

import (
	"testing"
	"time"
)

func TestTimeLeftFlooredAtZero(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s := &QuizSession{StartedAt: start, TimerSeconds: 300}

	if got := s.TimeLeft(start); got != 300 {
		t.Errorf("at start expected 300, got %d", got)
	}
	if got := s.TimeLeft(start.Add(90 * time.Second)); got != 210 {
		t.Errorf("after 90s expected 210, got %d", got)
	}
	if got := s.TimeLeft(start.Add(10 * time.Minute)); got != 0 {
		t.Errorf("past expiry expected 0, got %d", got)
	}
}

func TestNormalizeSubmissionType(t *testing.T) {
	cases := map[string]SubmissionType{
		"Manual":                SubmissionManual,
		"Time Up":               SubmissionTimeUp,
		"Time Up: Disconnected": SubmissionTimeUpDisconnect,
		"Disconnected":          SubmissionDisconnected,
		"":                      SubmissionManual,
		"time up":               SubmissionManual, // case-sensitive on purpose
		"Sabotage":              SubmissionManual,
	}
	for raw, want := range cases {
		if got := NormalizeSubmissionType(raw); got != want {
			t.Errorf("NormalizeSubmissionType(%q) = %q, want %q", raw, got, want)
		}
	}
}
