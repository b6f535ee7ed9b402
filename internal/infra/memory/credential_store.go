package memory

import (
	"context"
	"sync"

	"quiz-desk/internal/domain"
)

// CredentialStore is an in-memory implementation of auth.CredentialStore.
type CredentialStore struct {
	mu    sync.RWMutex
	users map[string]domain.Credential
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{users: make(map[string]domain.Credential)}
}

func (s *CredentialStore) CreateCredential(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[cred.Username]; ok {
		return domain.ErrDuplicateUsername
	}
	s.users[cred.Username] = domain.Credential{
		Username: cred.Username,
		Salt:     append([]byte(nil), cred.Salt...),
		Key:      append([]byte(nil), cred.Key...),
	}
	return nil
}

func (s *CredentialStore) GetCredential(_ context.Context, username string) (domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.users[username]
	if !ok {
		return domain.Credential{}, domain.ErrUserNotFound
	}
	return cred, nil
}
