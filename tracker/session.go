package tracker

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Storage keys for the session id and its start timestamp.
const (
	sessionIDKey    = "wf_session_id"
	sessionStartKey = "wf_session_start"
)

// DefaultSessionTimeout is the sliding session expiry window.
const DefaultSessionTimeout = 30 * time.Minute

// Storage is a minimal key-value abstraction over client-side storage.
// Implementations may fail (private browsing restrictions); the session
// manager degrades to fresh ids instead of propagating errors.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// MemoryStorage is an in-process Storage used by default and in tests.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// SessionManager produces a stable id per user-session with a sliding
// expiry. The id lives in persistent storage; the session start timestamp
// lives in ephemeral (tab-scoped) storage.
type SessionManager struct {
	persistent Storage
	ephemeral  Storage
	clock      Clock
	timeout    time.Duration

	mu sync.Mutex
}

// NewSessionManager creates a SessionManager with the default 30-minute
// timeout. A nil clock uses time.Now.
func NewSessionManager(persistent, ephemeral Storage, clock Clock) *SessionManager {
	if clock == nil {
		clock = time.Now
	}
	return &SessionManager{
		persistent: persistent,
		ephemeral:  ephemeral,
		clock:      clock,
		timeout:    DefaultSessionTimeout,
	}
}

// SetTimeout overrides the sliding expiry window.
func (m *SessionManager) SetTimeout(d time.Duration) {
	m.mu.Lock()
	m.timeout = d
	m.mu.Unlock()
}

// ID returns the current session id. Within the timeout window the same
// id is returned and the window slides forward; past it a new id is
// generated. Storage failures degrade to a fresh id per call.
func (m *SessionManager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()

	id, err := m.persistent.Get(sessionIDKey)
	if err != nil {
		return newSessionID()
	}
	startStr, err := m.ephemeral.Get(sessionStartKey)
	if err != nil {
		return newSessionID()
	}

	if id != "" && startStr != "" {
		startMs, parseErr := strconv.ParseInt(startStr, 10, 64)
		if parseErr == nil {
			start := time.UnixMilli(startMs)
			if now.Sub(start) <= m.timeout {
				// Sliding window: refresh the start timestamp.
				_ = m.ephemeral.Set(sessionStartKey, strconv.FormatInt(now.UnixMilli(), 10))
				return id
			}
		}
	}

	return m.rotate(now)
}

// rotate generates a new id and resets the session start.
func (m *SessionManager) rotate(now time.Time) string {
	id := newSessionID()
	if err := m.persistent.Set(sessionIDKey, id); err != nil {
		return id
	}
	_ = m.ephemeral.Set(sessionStartKey, strconv.FormatInt(now.UnixMilli(), 10))
	return id
}

func newSessionID() string {
	return uuid.NewString()
}
