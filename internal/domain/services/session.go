package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

// Session holds one session's shared mutable state: the published projection
// and the mutual-exclusion region every mutation must enter. Reads go through
// View without the lock; the projection pointer is swapped atomically.
type Session struct {
	ID string

	sem  chan struct{}
	proj atomic.Pointer[Projection]
}

func newSession(id string) *Session {
	s := &Session{
		ID:  id,
		sem: make(chan struct{}, 1),
	}
	s.proj.Store(NewProjection(id))
	return s
}

// Acquire enters the session's mutual-exclusion region, waiting at most
// timeout. Returns ErrLockTimeout if the lock stayed contended, so callers
// can surface a retryable condition instead of blocking unboundedly.
func (s *Session) Acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return entities.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release leaves the mutual-exclusion region.
func (s *Session) Release() {
	<-s.sem
}

// View returns the current published projection for lock-free reads.
func (s *Session) View() *Projection {
	return s.proj.Load()
}

// Publish atomically swaps in a new projection. Callers must hold the
// session lock and must not mutate p afterwards.
func (s *Session) Publish(p *Projection) {
	s.proj.Store(p)
}

// SessionRegistry hands out per-session state, creating it on first use.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Get returns the session state for id, creating it if needed.
func (r *SessionRegistry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = newSession(id)
		r.sessions[id] = s
	}
	return s
}
