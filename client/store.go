package client

import (
	"sync"

	tgauth "github.com/taktarovg/3gis-auth"
)

// Credentials is the persisted client state: one token key and one cached
// user blob. Both are best-effort caches; the server stays the source of
// truth via /auth/me.
type Credentials struct {
	Token string
	User  *tgauth.User
}

// TokenStore is process-wide client state. Any code may read it; only the
// orchestrator and an explicit logout write it.
type TokenStore interface {
	Load() (Credentials, bool)
	Save(creds Credentials)
	Clear()
}

// MemoryStore is the in-process TokenStore.
type MemoryStore struct {
	mu    sync.RWMutex
	creds *Credentials
}

var _ TokenStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil || s.creds.Token == "" {
		return Credentials{}, false
	}
	return *s.creds, true
}

func (s *MemoryStore) Save(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := creds
	s.creds = &copied
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
}
