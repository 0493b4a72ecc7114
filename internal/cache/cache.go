// Package cache holds session-scoped, time-bounded copies of order and
// payment reads. Entries are never the owning copy and never feed a
// transition decision.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	fetchedAt time.Time
}

// Session caches reads for one client session. After the staleness
// window the next read refetches instead of serving the stale value.
type Session struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func newSession(ttl time.Duration) *Session {
	return &Session{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// GetOrFetch returns the cached value for key when fresh, otherwise
// calls fetch and caches the result. Fetch errors are not cached.
func (s *Session) GetOrFetch(key string, fetch func() (any, error)) (any, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok && s.now().Sub(e.fetchedAt) < s.ttl {
		return e.value, nil
	}

	value, err := fetch()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entries[key] = entry{value: value, fetchedAt: s.now()}
	s.mu.Unlock()
	return value, nil
}

// Invalidate drops the entry for key; the write path calls this after
// every state transition.
func (s *Session) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Registry hands out one Session per session id, created lazily and
// reused for the session's lifetime. Sessions never see each other's
// entries.
type Registry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Session(sessionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		s = newSession(r.ttl)
		r.sessions[sessionID] = s
	}
	return s
}

// InvalidateAll drops key from every session; used when a transition
// commits and any cached copy anywhere is now wrong.
func (r *Registry) InvalidateAll(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Invalidate(key)
	}
}
