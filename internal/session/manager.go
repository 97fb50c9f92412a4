package session

import (
	"sync"
	"time"
)

// Manager serializes turn processing per session so concurrent requests for
// the same session never interleave inside the engine.
type Manager struct {
	mu      sync.Mutex
	mutexes map[string]*sessionLock
}

type sessionLock struct {
	mu       sync.Mutex
	lastUsed time.Time
}

func NewManager() *Manager {
	return &Manager{
		mutexes: make(map[string]*sessionLock),
	}
}

// WithLock executes fn while holding the per-session mutex.
// Turns for the same session are serialized; different sessions run in parallel.
func (m *Manager) WithLock(session string, fn func() error) error {
	m.mu.Lock()
	sl, ok := m.mutexes[session]
	if !ok {
		sl = &sessionLock{}
		m.mutexes[session] = sl
	}
	m.mu.Unlock()

	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.lastUsed = time.Now()
	return fn()
}

// Cleanup removes locks not used within maxAge to prevent memory leaks.
func (m *Manager) Cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for session, sl := range m.mutexes {
		if now.Sub(sl.lastUsed) > maxAge {
			delete(m.mutexes, session)
		}
	}
}
