package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dashboard/internal/dashboard"
	"dashboard/internal/engine"
	"dashboard/internal/metrics"
	"dashboard/internal/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Session is one user's dashboard: its own inputs and published charts over
// the shared store.
type Session struct {
	ID string

	mu       sync.RWMutex
	charts   map[string]models.ChartSpec
	lastSeen time.Time
	disp     *dashboard.Dispatcher
}

func (s *Session) publish(output string, spec models.ChartSpec) {
	s.mu.Lock()
	s.charts[output] = spec
	s.mu.Unlock()
}

// Charts returns a snapshot of the published charts.
func (s *Session) Charts() map[string]models.ChartSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.ChartSpec, len(s.charts))
	for k, v := range s.charts {
		out[k] = v
	}
	return out
}

// Inputs returns the session's current input values.
func (s *Session) Inputs() dashboard.Inputs { return s.disp.Inputs() }

// Config holds the manager's settings.
type Config struct {
	Logger *slog.Logger
	Store  *engine.Store
	TTL    time.Duration
	Clock  clockwork.Clock
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Manager tracks live sessions. All sessions read the same store.
type Manager struct {
	cfg      Config
	bindings []dashboard.Binding

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	return &Manager{
		cfg:      cfg,
		bindings: dashboard.Bindings(cfg.Store),
		sessions: make(map[string]*Session),
	}, nil
}

// Create starts a session with the default inputs and computes every output.
func (m *Manager) Create() (*Session, error) {
	s := &Session{
		ID:       uuid.NewString(),
		charts:   make(map[string]models.ChartSpec),
		lastSeen: m.cfg.Clock.Now(),
	}
	s.disp = dashboard.NewDispatcher(m.cfg.Logger.With("session", s.ID), m.bindings, s.publish)
	if _, err := s.disp.Update(dashboard.DefaultInputs()); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	m.cfg.Logger.Debug("session created", "session", s.ID)
	return s, nil
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	s.lastSeen = m.cfg.Clock.Now()
	s.mu.Unlock()
	return s, nil
}

// Update applies input changes (nil clears an input) and recomputes the
// affected bindings. It returns the outputs that were republished.
func (m *Manager) Update(id string, changes map[dashboard.Input]*string) ([]string, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return s.disp.Apply(changes)
}

// Charts returns the current outputs of a session.
func (m *Manager) Charts(id string) (map[string]models.ChartSpec, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return s.Charts(), nil
}

// Sweep drops sessions idle for longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	now := m.cfg.Clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		s.mu.RLock()
		idle := now.Sub(s.lastSeen)
		s.mu.RUnlock()
		if idle > m.cfg.TTL {
			delete(m.sessions, id)
			n++
		}
	}
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	if n > 0 {
		m.cfg.Logger.Info("expired idle sessions", "count", n, "remaining", len(m.sessions))
	}
	return n
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
