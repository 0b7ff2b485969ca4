package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// MemoryOptions tune the in-memory store. Zero values keep the historical
// behavior: sessions live for the whole process lifetime.
type MemoryOptions struct {
	// MaxSessions caps the number of live sessions; the least recently used
	// session is dropped when the cap is exceeded. 0 means unbounded.
	MaxSessions int
	// TTL drops a session that has not been touched for this long. 0 means
	// no expiry.
	TTL time.Duration
}

type memSession struct {
	messages []chat.Message
	lastUsed time.Time
}

// MemoryStore keeps transcripts in process memory. Appends to a single
// session are serialized by the store mutex; distinct sessions never block
// each other beyond map access.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
	// evicted tombstones dropped session ids so a stale caller gets
	// ErrSessionEvicted instead of a silently empty transcript. GetOrCreate
	// clears the tombstone and starts the session over.
	evicted map[string]struct{}
	opts    MemoryOptions
	nowFn   func() time.Time
}

func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memSession),
		evicted:  make(map[string]struct{}),
		opts:     opts,
		nowFn:    time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) GetOrCreate(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// An explicit GetOrCreate forgives a past eviction: the session starts
	// over with an empty transcript.
	delete(s.evicted, sessionID)
	s.getOrCreateLocked(sessionID)
	return nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, messages ...chat.Message) error {
	if len(messages) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.nowFn())
	if _, gone := s.evicted[sessionID]; gone {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionEvicted)
	}
	sess := s.getOrCreateLocked(sessionID)
	sess.messages = append(sess.messages, chat.CloneMessages(messages)...)
	sess.lastUsed = s.nowFn()
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		if _, gone := s.evicted[sessionID]; gone {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionEvicted)
		}
		return nil, nil
	}
	return chat.CloneMessages(sess.messages), nil
}

func (s *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) getOrCreateLocked(sessionID string) *memSession {
	now := s.nowFn()
	s.expireLocked(now)
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &memSession{lastUsed: now}
		s.sessions[sessionID] = sess
		s.evictLocked()
	} else {
		sess.lastUsed = now
	}
	return sess
}

func (s *MemoryStore) expireLocked(now time.Time) {
	if s.opts.TTL <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.opts.TTL {
			delete(s.sessions, id)
			s.evicted[id] = struct{}{}
		}
	}
}

func (s *MemoryStore) evictLocked() {
	if s.opts.MaxSessions <= 0 {
		return
	}
	for len(s.sessions) > s.opts.MaxSessions {
		oldestID := ""
		var oldest time.Time
		for id, sess := range s.sessions {
			if oldestID == "" || sess.lastUsed.Before(oldest) {
				oldestID = id
				oldest = sess.lastUsed
			}
		}
		delete(s.sessions, oldestID)
		s.evicted[oldestID] = struct{}{}
	}
}
