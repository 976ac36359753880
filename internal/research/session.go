package research

import (
	"log/slog"
	"time"
)

// Status tracks where a research session is in its lifecycle.
type Status string

const (
	StatusCreated      Status = "created"
	StatusThreadOpened Status = "thread_opened"
	StatusRunSubmitted Status = "run_submitted"
	StatusStreaming    Status = "streaming"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusTimedOut     Status = "timed_out"
)

// Session is the transient state of one research exchange. It exists for the
// duration of a ResearchTopic call and is not persisted.
type Session struct {
	ThreadID  string
	RunID     string
	Status    Status
	StartedAt time.Time
}

func newSession() *Session {
	return &Session{Status: StatusCreated, StartedAt: time.Now()}
}

func (s *Session) transition(to Status) {
	slog.Debug("research session transition",
		"from", s.Status,
		"to", to,
		"thread_id", s.ThreadID,
		"run_id", s.RunID)
	s.Status = to
}
