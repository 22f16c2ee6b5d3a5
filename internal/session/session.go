// Package session keeps the per-participant survey state between page
// requests.
package session

import (
	"fmt"
	"sync"
	"time"

	"roadsurvey/internal/models"
	"roadsurvey/internal/survey"
)

// Notice levels, mapped to alert styles by the templates.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notice is a message shown once on the next rendered page.
type Notice struct {
	Level string
	Text  string
}

// Session is one participant's progress through the survey. Callers hold
// the lock while reading or mutating exported fields.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time
	Page      int
	Draw      survey.Draw
	Data      models.Response

	// Submission is set once the survey has been submitted.
	Submission *models.Submission

	notices []Notice
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Notify queues a notice. The caller holds the lock.
func (s *Session) Notify(level, format string, args ...any) {
	s.notices = append(s.notices, Notice{Level: level, Text: fmt.Sprintf(format, args...)})
}

// TakeNotices returns and clears the queued notices. The caller holds the
// lock.
func (s *Session) TakeNotices() []Notice {
	n := s.notices
	s.notices = nil
	return n
}

// Submitted reports whether the survey was submitted. The caller holds
// the lock.
func (s *Session) Submitted() bool {
	return s.Submission != nil
}
