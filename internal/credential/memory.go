package credential

import (
	"fmt"
	"sync"
)

// MemStore is an in-memory Store. It backs tests that need a storage
// double and non-persistent sessions.
type MemStore struct {
	mu    sync.Mutex
	creds map[Slot]Credential
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{creds: make(map[Slot]Credential)}
}

// Save stores a credential in memory.
func (s *MemStore) Save(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Slot] = cred
	return nil
}

// Get retrieves the credential in the given slot.
func (s *MemStore) Get(slot Slot) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[slot]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slot)
	}
	return &cred, nil
}

// Delete removes the credential in the given slot.
// Deleting an empty slot is not an error.
func (s *MemStore) Delete(slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, slot)
	return nil
}
