package importer

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL bounds how long a preview can wait for its commit.
const DefaultSessionTTL = 30 * time.Minute

// Session holds a parsed import between preview and commit. The snapshot
// is not refreshed during the session.
type Session struct {
	ID        string
	Source    string
	Username  string
	Drafts    []OrderDraft
	Snapshot  *Snapshot
	Summary   Summary
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Sessions is an in-memory store of pending import sessions.
type Sessions struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]*Session
	now   func() time.Time
}

// NewSessions returns a session store; a non-positive ttl uses DefaultSessionTTL.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{ttl: ttl, items: make(map[string]*Session), now: time.Now}
}

// Create registers a new session and sweeps expired ones.
func (s *Sessions) Create(source, username string, drafts []OrderDraft, snap *Snapshot) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	sess := &Session{
		ID:        uuid.NewString(),
		Source:    source,
		Username:  username,
		Drafts:    drafts,
		Snapshot:  snap,
		Summary:   Summarize(drafts),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.items[sess.ID] = sess
	return sess
}

// Get returns a live session.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, false
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.items, id)
		return nil, false
	}
	return sess, true
}

// Take returns a live session and removes it, so a preview commits at most once.
func (s *Sessions) Take(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, false
	}
	delete(s.items, id)
	if !s.now().Before(sess.ExpiresAt) {
		return nil, false
	}
	return sess, true
}

// Len returns the number of stored sessions, expired or not.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sessions) sweepLocked(now time.Time) {
	for id, sess := range s.items {
		if !now.Before(sess.ExpiresAt) {
			delete(s.items, id)
		}
	}
}
