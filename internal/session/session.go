// =============================================================================
// Invoice Dashboard - Sessions
// =============================================================================
//
// This module keeps per-user analysis state in memory. A session owns one
// filter manager (and through it the loaded dataset) and one assistant
// conversation. Nothing is shared between sessions.
//
// LIFECYCLE:
//   Create  -> a new session with an Uninitialized filter manager
//   Get     -> touches the session so it stays alive
//   Delete  -> drops it immediately
//   CleanupExpired -> drops every session idle for longer than the TTL
//
// =============================================================================

package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/invoice-dashboard/internal/assistant"
	"github.com/ginjaninja78/invoice-dashboard/internal/filter"
)

// ErrSessionNotFound is returned for unknown or expired ids.
var ErrSessionNotFound = errors.New("session not found")

// DefaultTTL is used when the store is built with a non-positive TTL.
const DefaultTTL = 2 * time.Hour

// =============================================================================
// SESSION
// =============================================================================

// Session is the state of one dashboard user.
type Session struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`

	// Filters owns the dataset and its filter state.
	Filters *filter.Manager `json:"-"`

	mu       sync.Mutex
	lastSeen time.Time
	history  []assistant.Message
}

// History returns a copy of the assistant conversation.
func (s *Session) History() []assistant.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]assistant.Message(nil), s.history...)
}

// AppendHistory adds turns to the conversation.
func (s *Session) AppendHistory(turns ...assistant.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turns...)
}

// ClearHistory forgets the conversation.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// =============================================================================
// STORE
// =============================================================================

// Store holds the live sessions of a server process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration

	// clock injection for tests.
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock function.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns an empty store evicting sessions idle for longer than ttl.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session.
func (s *Store) Create() *Session {
	now := s.now()
	sess := &Session{
		ID:       uuid.NewString(),
		Created:  now,
		Filters:  filter.NewManager(),
		lastSeen: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session with id and marks it as used. A session past its
// TTL is reported missing even before the sweep removes it.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	now := s.now()
	if !ok || s.expired(sess, now) {
		return nil, ErrSessionNotFound
	}
	sess.touch(now)
	return sess, nil
}

// Delete removes the session with id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// CleanupExpired removes idle sessions and returns their ids, sorted.
func (s *Store) CleanupExpired() []string {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// TTL returns the idle timeout.
func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastSeen()) > s.ttl
}
