package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/civicbot/internal/message"
	"github.com/nadzzz/civicbot/internal/persona"
)

type session struct {
	id       string
	variant  persona.Variant
	history  *message.History
	lastUsed time.Time
}

// store holds sessions in process memory.
type store struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

func newStore() *store {
	return &store{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

func (s *store) create(v persona.Variant) session {
	sess := &session{
		id:       uuid.NewString(),
		variant:  v,
		history:  message.NewHistory(),
		lastUsed: s.now(),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return *sess
}

// get returns a copy of the session and marks it as used. The copy shares
// the session's history.
func (s *store) get(id string) (session, bool) {
	return s.update(id, nil)
}

// update runs fn on the session under the store lock and returns a copy of
// the result.
func (s *store) update(id string, fn func(*session)) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session{}, false
	}
	sess.lastUsed = s.now()
	if fn != nil {
		fn(sess)
	}
	return *sess, true
}

func (s *store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// evictIdle removes sessions unused for longer than ttl and returns how many
// were removed.
func (s *store) evictIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// janitor evicts idle sessions until ctx is cancelled.
func (s *store) janitor(ctx context.Context, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.evictIdle(ttl); n > 0 {
				slog.Info("evicted idle sessions", "count", n, "remaining", s.len())
			}
		}
	}
}
