// Package credentials persists the backend login session in the .chatbot/
// directory and exposes it to the HTTP client through the Store interface.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/chatbot/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// ErrNoSession is returned by Token when nobody is logged in.
var ErrNoSession = errors.New("not logged in")

// Store is the persistence contract the client relies on. Clear must be
// safe to call when nothing is stored.
type Store interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// Manager manages reading and writing credentials.toml in the .chatbot/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .chatbot/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Session if the file does not exist.
func (m *Manager) Load() (*Session, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Session{Version: currentVersion}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	s := &Session{}
	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	return s, nil
}

// Save writes the session to credentials.toml with 0600 permissions.
func (m *Manager) Save(s *Session) error {
	if s == nil {
		return errors.New("cannot save nil session")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// Clear removes credentials.toml. It is a no-op when the file is absent.
func (m *Manager) Clear() error {
	if err := os.Remove(m.targetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}

// Token returns the stored bearer token, or ErrNoSession.
func (m *Manager) Token() (string, error) {
	s, err := m.Load()
	if err != nil {
		return "", err
	}
	if !s.LoggedIn() {
		return "", ErrNoSession
	}
	return s.Token, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// MemoryStore is a Store kept in process memory, for the dev server
// and tests.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryStore returns a MemoryStore holding s, which may be nil.
func NewMemoryStore(s *Session) *MemoryStore {
	return &MemoryStore{session: s}
}

func (m *MemoryStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return &Session{Version: currentVersion}, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemoryStore) Save(s *Session) error {
	if s == nil {
		return errors.New("cannot save nil session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
