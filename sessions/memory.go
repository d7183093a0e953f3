package sessions

import (
	"context"
	"mountains-server/core"
	"sync"

	"github.com/sirupsen/logrus"
)

// memStore is the default in-memory SessionStore. Sessions do not survive a
// restart; swap the store behind core.SessionStore for anything durable.
type memStore struct {
	mu       sync.RWMutex
	sessions map[string]core.Session
}

// NewStore creates a new in-memory session store.
func NewStore() *memStore {
	return &memStore{sessions: make(map[string]core.Session)}
}

func (s *memStore) Put(ctx context.Context, session core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Token] = session
	logrus.WithField("user", session.Username).Info("Session created")
	return nil
}

func (s *memStore) Validate(ctx context.Context, token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return "", core.ErrSessionNotFound
	}
	return session.Username, nil
}

// Delete removes a session. Removing an absent token is a no-op.
func (s *memStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[token]; ok {
		logrus.WithField("user", session.Username).Info("Session removed")
	}
	delete(s.sessions, token)
	return nil
}
