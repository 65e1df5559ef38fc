package store

import (
	"context"
	"sync"
)

// MemoryCredentialStore keeps provider credentials for the life of the process.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]string
}

// NewMemoryCredentialStore returns a store seeded with initial.
func NewMemoryCredentialStore(initial map[string]string) *MemoryCredentialStore {
	s := &MemoryCredentialStore{creds: make(map[string]string, len(initial))}
	for id, c := range initial {
		if c != "" {
			s.creds[id] = c
		}
	}
	return s
}

// Get returns the credential for providerID, or "" when none is stored.
func (s *MemoryCredentialStore) Get(_ context.Context, providerID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds[providerID], nil
}

// Set stores a credential. An empty credential removes the entry.
func (s *MemoryCredentialStore) Set(_ context.Context, providerID, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if credential == "" {
		delete(s.creds, providerID)
		return nil
	}
	s.creds[providerID] = credential
	return nil
}

// All returns a copy of every stored credential.
func (s *MemoryCredentialStore) All(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.creds))
	for id, c := range s.creds {
		out[id] = c
	}
	return out, nil
}
