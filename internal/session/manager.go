package session

import (
	"context"
	"errors"
	"sync"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/pkg/metrics"
)

// ErrClosed is returned by Start after Shutdown.
var ErrClosed = errors.New("session manager shut down")

// Factory builds the dependencies of a new session for userID.
type Factory func(userID uint) Deps

// Manager keeps at most one live session per user.
type Manager struct {
	factory Factory
	cfg     Config

	mu       sync.Mutex
	sessions map[uint]*Session
	closed   bool
}

func NewManager(factory Factory, cfg Config) *Manager {
	return &Manager{factory: factory, cfg: cfg, sessions: make(map[uint]*Session)}
}

// Start returns the user's live session, creating and loading it if needed.
func (m *Manager) Start(ctx context.Context, userID uint, viewer entity.Author) (*Session, error) {
	if userID == 0 {
		return nil, apperrors.AuthRequired("start a session")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	deps := m.factory(userID)
	s := New(userID, viewer, deps, m.cfg)
	m.sessions[userID] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	s.logger.Info("session started")
	if err := s.Start(ctx, deps.Memberships); err != nil {
		m.End(userID)
		return nil, err
	}
	return s, nil
}

// Get returns the live session of userID.
func (m *Manager) Get(userID uint) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// End discards the user's session. Ending a missing session is a no-op.
func (m *Manager) End(userID uint) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown ends every session and refuses new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[uint]*Session)
	metrics.ActiveSessions.Set(0)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	wg.Wait()
}
