package sdk

import "sync"

// Credentials is the access/refresh token pair for one session. The pair
// is opaque to the SDK: token contents are never inspected, only carried.
//
// The two tokens are always replaced together. A refresh produces a pair
// of the new access token and the refresh token that earned it; no code
// path writes one half of the pair in isolation.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// CredentialStore persists the token pair across process restarts.
// Load must be cheap enough to call synchronously before first use so
// session restoration can be decided up front.
type CredentialStore interface {
	// Save replaces the stored pair as a whole.
	Save(creds *Credentials) error
	// Load returns the stored pair, or ErrNoCredentials when none exists.
	Load() (*Credentials, error)
	// Clear removes the stored pair. Clearing an empty store is a no-op.
	Clear() error
}

// PreferenceStore persists the last-chosen active role. The selection is
// a preference, not a security boundary: it only takes effect when the
// canonical user record actually grants the role.
type PreferenceStore interface {
	SaveActiveRole(role Role) error
	// LoadActiveRole returns the persisted role, or "" when unset.
	LoadActiveRole() (Role, error)
	ClearActiveRole() error
}

// MemoryStore is an in-memory CredentialStore and PreferenceStore for
// tests and for ephemeral sessions that must not touch disk.
type MemoryStore struct {
	mu         sync.Mutex
	creds      *Credentials
	activeRole Role
}

// NewMemoryStore returns an empty MemoryStore, optionally seeded with an
// initial token pair.
func NewMemoryStore(creds *Credentials) *MemoryStore {
	return &MemoryStore{creds: creds}
}

func (m *MemoryStore) Save(creds *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair := *creds
	m.creds = &pair
	return nil
}

func (m *MemoryStore) Load() (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil, ErrNoCredentials
	}
	pair := *m.creds
	return &pair, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}

func (m *MemoryStore) SaveActiveRole(role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeRole = role
	return nil
}

func (m *MemoryStore) LoadActiveRole() (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeRole, nil
}

func (m *MemoryStore) ClearActiveRole() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeRole = ""
	return nil
}
