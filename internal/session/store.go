// Package session provides the in-memory store for in-progress registration
// conversations.
//
// The store holds at most one session per external identity and offers a
// per-identity lock so that successive messages from the same user are
// serialized while distinct users proceed in parallel. Sessions are not
// persisted: a process restart drops any in-progress registration and the
// user simply re-issues /start.
package session

import (
	"log/slog"
	"sync"

	"github.com/shiftdesk/shiftbot/internal/models"
)

// Store is a process-wide keyed store of registration sessions.
type Store struct {
	// mu protects concurrent access to the sessions map
	mu       sync.RWMutex
	sessions map[string]models.Session

	// lockMu protects the per-identity lock map; the locks themselves
	// serialize whole message handlers for one identity
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]models.Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Get returns the session for an identity, reporting whether one exists.
func (s *Store) Get(identity string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[identity]
	return sess, ok
}

// Put stores or replaces the session for its identity.
func (s *Store) Put(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Identity] = sess
	slog.Debug("Store session saved", "identity", sess.Identity, "state", sess.State)
}

// Delete removes the session for an identity. Deleting an absent session is a no-op.
func (s *Store) Delete(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, identity)
	slog.Debug("Store session deleted", "identity", identity)
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Lock acquires the mutex for one identity. Handlers hold it for the whole
// read-then-write cycle, including any backend call, so that two
// near-simultaneous messages from one user cannot race on the same session.
// Locks for distinct identities are independent.
func (s *Store) Lock(identity string) {
	s.identityLock(identity).Lock()
}

// Unlock releases the mutex for one identity.
func (s *Store) Unlock(identity string) {
	s.identityLock(identity).Unlock()
}

// identityLock returns the mutex for an identity, creating it on first use.
// Locks are kept for the lifetime of the process; the map is bounded by the
// number of distinct users that ever messaged the bot.
func (s *Store) identityLock(identity string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		s.locks[identity] = l
	}
	return l
}
