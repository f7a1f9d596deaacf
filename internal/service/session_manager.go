package service

import (
	"context"
	"errors"
	"sync"

	"github.com/pscprep/examengine/internal/model"
)

// ErrNoActiveSession is returned by session lookups when nothing is
// running.
var ErrNoActiveSession = errors.New("no active session")

// ErrSessionInProgress refuses a second concurrent attempt; a learner
// finishes or abandons the running one first.
var ErrSessionInProgress = errors.New("another attempt is already in progress")

// SessionManager owns the single active TestSession. The engine runs one
// timed attempt at a time, matching the one-exam-screen UI it backs.
type SessionManager struct {
	mu      sync.Mutex
	deps    SessionDeps
	current *TestSession
}

func NewSessionManager(deps SessionDeps) *SessionManager {
	return &SessionManager{deps: deps}
}

// Begin creates and starts a session for the given test. A still-running
// session blocks new ones; a finished one is replaced.
func (m *SessionManager) Begin(ctx context.Context, testID int64) (*TestSession, error) {
	m.mu.Lock()
	if m.current != nil {
		switch m.current.Status() {
		case model.StatusInProgress, model.StatusSubmitting:
			m.mu.Unlock()
			return nil, ErrSessionInProgress
		}
		m.current.Close()
	}
	session := NewTestSession(m.deps, testID)
	m.current = session
	m.mu.Unlock()

	if err := session.Start(ctx); err != nil {
		return nil, err
	}
	session.StartTimer()
	return session, nil
}

// Current returns the active session.
func (m *SessionManager) Current() (*TestSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNoActiveSession
	}
	return m.current, nil
}

// End tears down the active session regardless of its state. Intended for
// post-terminal cleanup; an in-progress attempt is ended only through
// submit.
func (m *SessionManager) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}
