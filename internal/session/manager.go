package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sqlchat/sqlchat/internal/conversation"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/pipeline"
)

type ManagerConfig struct {
	Pipeline    *pipeline.Pipeline
	Connector   Connector
	MaxSessions int
	// IdleTTL evicts sessions untouched for longer than this. Zero disables it.
	IdleTTL time.Duration
	Logger  *slog.Logger
}

// Manager holds in-memory sessions keyed by id. Sessions are owned by the
// principal that created them.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      ManagerConfig
	newID    func() string
	now      func() time.Time
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}
	return &Manager{
		sessions: map[string]*Session{},
		cfg:      cfg,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Create registers a new session. Idle sessions are evicted first when the
// limit would otherwise refuse the request.
func (m *Manager) Create(owner string, variant conversation.Variant) (*Session, error) {
	if m.cfg.MaxSessions > 0 && m.Len() >= m.cfg.MaxSessions {
		m.EvictIdle()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrLimitReached
	}
	id := m.newID()
	s := New(id, owner, variant, m.cfg.Pipeline, m.cfg.Connector, m.cfg.Logger)
	s.now = m.now
	s.touch()
	m.sessions[id] = s
	observability.SetActiveSessions(len(m.sessions))
	m.cfg.Logger.Info("session created",
		slog.String("session_id", id),
		slog.String("owner", owner),
		slog.String("variant", string(variant)),
	)
	return s, nil
}

// Get returns ErrNotFound for unknown ids and for sessions owned by someone else.
func (m *Manager) Get(id, owner string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || s.owner != owner {
		return nil, ErrNotFound
	}
	s.touch()
	return s, nil
}

func (m *Manager) Delete(id, owner string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || s.owner != owner {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	observability.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()
	return s.Close()
}

// List returns the owner's sessions, oldest first.
func (m *Manager) List(owner string) []*Session {
	m.mu.RLock()
	out := make([]*Session, 0)
	for _, s := range m.sessions {
		if s.owner == owner {
			out = append(out, s)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].id < out[j].id
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}

// EvictIdle drops every session whose last activity is older than IdleTTL and
// closes its live connection. It returns the number of evicted sessions.
func (m *Manager) EvictIdle() int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := m.now().UTC().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	evicted := make([]*Session, 0)
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, s)
		}
	}
	observability.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()
	observability.ObserveEvictions(len(evicted))

	for _, s := range evicted {
		if err := s.Close(); err != nil {
			m.cfg.Logger.Warn("close evicted session", slog.String("session_id", s.id), slog.String("error", err.Error()))
		}
		m.cfg.Logger.Info("session evicted",
			slog.String("session_id", s.id),
			slog.String("owner", s.owner),
			slog.Time("last_active", s.LastActive()),
		)
	}
	return len(evicted)
}

// Run evicts idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.cfg.IdleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close closes every live connection and forgets all sessions.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	observability.SetActiveSessions(0)
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
