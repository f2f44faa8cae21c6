package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coresistem/sip-api-sub000/pkg/sdk"
)

const (
	credentialsFile = "credentials.json"
	preferencesFile = "preferences.json"
)

// FileStore persists the token pair and the active-role preference as
// JSON files in the user's SIP directory. It is the CLI's
// implementation of both sdk stores.
type FileStore struct {
	dir string
}

var (
	_ sdk.CredentialStore = (*FileStore)(nil)
	_ sdk.PreferenceStore = (*FileStore)(nil)
)

// NewFileStore creates a FileStore rooted at ~/.sip.
func NewFileStore() (*FileStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return NewFileStoreAt(filepath.Join(home, ".sip"))
}

// NewFileStoreAt creates a FileStore rooted at dir, creating it when
// missing.
func NewFileStoreAt(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes the token pair as one file replacement.
func (s *FileStore) Save(creds *sdk.Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return os.WriteFile(s.credentialsPath(), data, 0600)
}

// Load reads the stored pair; sdk.ErrNoCredentials when absent.
func (s *FileStore) Load() (*sdk.Credentials, error) {
	data, err := os.ReadFile(s.credentialsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sdk.ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var creds sdk.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &creds, nil
}

// Clear deletes the credentials file. Clearing an empty store is a no-op.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.credentialsPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type preferences struct {
	ActiveRole sdk.Role `json:"activeRole,omitempty"`
}

func (s *FileStore) SaveActiveRole(role sdk.Role) error {
	data, err := json.MarshalIndent(preferences{ActiveRole: role}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	return os.WriteFile(s.preferencesPath(), data, 0600)
}

func (s *FileStore) LoadActiveRole() (sdk.Role, error) {
	data, err := os.ReadFile(s.preferencesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read preferences file: %w", err)
	}
	var prefs preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		// A corrupt preference is not worth failing a command over.
		return "", nil
	}
	return prefs.ActiveRole, nil
}

func (s *FileStore) ClearActiveRole() error {
	if err := os.Remove(s.preferencesPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) credentialsPath() string {
	return filepath.Join(s.dir, credentialsFile)
}

func (s *FileStore) preferencesPath() string {
	return filepath.Join(s.dir, preferencesFile)
}
