package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

// Session is the bookkeeping record for one voice conversation. The pipeline
// owns the live audio state; this record only tracks identity and activity.
type Session struct {
	ID              string    `json:"session_id"`
	CallerID        string    `json:"caller_id"`
	Status          Status    `json:"status"`
	VoiceID         string    `json:"voice_id"`
	TurnCount       int       `json:"turn_count"`
	ReconnectCount  int       `json:"reconnect_count"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	EndedAt         time.Time `json:"ended_at,omitempty"`
}

// Manager tracks conversation sessions in memory and expires the ones that go
// quiet. At most one session is active per caller.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	sessionByCaller   map[string]string
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		sessionByCaller:   make(map[string]string),
		inactivityTimeout: inactivityTimeout,
	}
}

// SetExpireHook registers a callback invoked outside the lock for every
// session the janitor expires.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(callerID, voiceID string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		CallerID:       callerID,
		VoiceID:        voiceID,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	if callerID != "" {
		m.sessionByCaller[callerID] = s.ID
	}
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// Active returns the caller's live session, if any.
func (m *Manager) Active(callerID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessionByCaller[callerID]
	if !ok {
		return nil, false
	}
	s, ok := m.sessions[id]
	if !ok || s.Status != StatusActive {
		return nil, false
	}
	return clone(s), true
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// RecordTurn bumps the completed-turn counter.
func (m *Manager) RecordTurn(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.TurnCount++
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// RecordReconnect bumps the transport reconnect counter.
func (m *Manager) RecordReconnect(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.ReconnectCount++
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	s.Status = StatusEnded
	s.LastActivityAt = now
	s.EndedAt = now
	if s.CallerID != "" {
		delete(m.sessionByCaller, s.CallerID)
	}
	return clone(s), nil
}

// StartJanitor expires inactive sessions on a fixed interval until ctx ends.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.Status != StatusActive {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.LastActivityAt = now
		s.EndedAt = now
		expired = append(expired, clone(s))
		if s.CallerID != "" {
			delete(m.sessionByCaller, s.CallerID)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
