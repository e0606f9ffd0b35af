package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/villain/pkg/compiler"
	"github.com/vango-dev/villain/pkg/scheduler"
)

// SessionManager manages all live sessions.
// It handles session creation, lookup and the expiry of detached sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	reg          *compiler.Registry
	config       *SessionConfig
	maxSessions  int
	logger       *slog.Logger
	metrics      *Metrics
	schedMetrics *scheduler.Metrics

	done        chan struct{}
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// NewSessionManager creates a manager and starts its cleanup loop.
func NewSessionManager(reg *compiler.Registry, config *SessionConfig, maxSessions int, cleanupInterval time.Duration, logger *slog.Logger, metrics *Metrics, schedMetrics *scheduler.Metrics) *SessionManager {
	if config == nil {
		config = DefaultSessionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if schedMetrics == nil {
		schedMetrics = scheduler.NewMetrics()
	}
	sm := &SessionManager{
		sessions:     make(map[string]*Session),
		reg:          reg,
		config:       config,
		maxSessions:  maxSessions,
		logger:       logger.With("component", "session_manager"),
		metrics:      metrics,
		schedMetrics: schedMetrics,
		done:         make(chan struct{}),
		cleanupDone:  make(chan struct{}),
	}
	go sm.cleanupLoop(cleanupInterval)
	return sm
}

// Create creates and starts a session for the root component named
// component. Nothing is mounted yet.
func (sm *SessionManager) Create(component string) (*Session, error) {
	sm.mu.Lock()
	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		sm.mu.Unlock()
		return nil, ErrMaxSessionsReached
	}
	s := newSession(component, sm.reg, sm.config, sm.logger, sm.metrics, sm.schedMetrics)
	sm.sessions[s.ID] = s
	count := len(sm.sessions)
	sm.mu.Unlock()

	s.start()
	sm.metrics.sessions.Inc()
	sm.metrics.sessionsTotal.Inc()
	sm.logger.Info("session created", "session_id", s.ID, "active_sessions", count)
	return s, nil
}

// Get retrieves a session by ID.
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Close removes and closes a session.
func (sm *SessionManager) Close(id string) {
	sm.mu.Lock()
	s, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()
	if ok {
		s.Close()
		sm.metrics.sessions.Dec()
	}
}

func (sm *SessionManager) cleanupLoop(interval time.Duration) {
	defer close(sm.cleanupDone)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			sm.cleanup(now)
		case <-sm.done:
			return
		}
	}
}

// cleanup closes detached sessions whose resume window has passed.
func (sm *SessionManager) cleanup(now time.Time) int {
	sm.mu.RLock()
	var expired []string
	for id, s := range sm.sessions {
		if s.expired(now) {
			expired = append(expired, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range expired {
		sm.Close(id)
	}
	if len(expired) > 0 {
		sm.logger.Info("expired sessions closed", "count", len(expired))
	}
	return len(expired)
}

// Shutdown stops the cleanup loop and closes every session.
func (sm *SessionManager) Shutdown() {
	sm.closeOnce.Do(func() {
		close(sm.done)
		<-sm.cleanupDone
	})

	sm.mu.Lock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sm.mu.Unlock()

	for _, id := range ids {
		sm.Close(id)
	}
}
