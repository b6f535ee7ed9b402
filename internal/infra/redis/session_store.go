package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-desk/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions themselves live in a local map; Redis only carries a liveness
// marker per user (SET quiz:session:{username} {sessionID}) so other tools
// can see who is mid-quiz.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Replace(username string, session *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.sessions[username]
	s.sessions[username] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), SessionKey(username), session.ID(), s.ttl).Err()
	return previous
}

func (s *SessionStore) Get(username string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[username]
	return session, ok
}

func (s *SessionStore) DeleteIfCurrent(username, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[username]
	if !ok || session.ID() != sessionID {
		return false
	}
	delete(s.sessions, username)
	_ = s.client.Del(context.Background(), SessionKey(username)).Err()
	return true
}

// SessionKey is the liveness key for a user's running quiz.
func SessionKey(username string) string {
	return "quiz:session:" + username
}
