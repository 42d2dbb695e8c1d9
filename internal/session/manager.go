package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Builder returns the collaborators for a newly created session.
type Builder func(id uuid.UUID) Deps

// Manager owns every live session, one per browser tab.
type Manager struct {
	build   Builder
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewManager(build Builder, idleTTL time.Duration) *Manager {
	return &Manager{
		build:    build,
		idleTTL:  idleTTL,
		sessions: make(map[uuid.UUID]*Session),
		stopChan: make(chan struct{}),
	}
}

func (m *Manager) Create() *Session {
	id := uuid.New()
	s := New(id, m.build(id))

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete closes and forgets a session. It reports whether it existed.
func (m *Manager) Delete(id uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartJanitor evicts idle sessions every interval until Shutdown.
func (m *Manager) StartJanitor(interval time.Duration) {
	if m.idleTTL <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopChan:
				return
			case now := <-ticker.C:
				if n := m.EvictIdle(now); n > 0 {
					log.Printf("Session janitor: evicted %d idle sessions", n)
				}
			}
		}
	}()
}

// EvictIdle closes sessions idle for longer than the TTL at now.
func (m *Manager) EvictIdle(now time.Time) int {
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.Idle(now, m.idleTTL) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Shutdown stops the janitor and closes every session.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stopChan) })

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
