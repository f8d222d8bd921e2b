// Package session persists the client-side state that must survive process
// restarts: the authentication session and the display preferences. Each
// record lives in its own namespaced JSON file under an explicit state
// directory; there are no package-level singletons, so tests can run
// independent stores side by side.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cardtrader/cardtrader/internal/api"
	"github.com/cardtrader/cardtrader/pkg/logger"
)

// authFileName keeps the namespace the shipped clients used for the
// persisted session record.
const authFileName = "cardtrader-auth.json"

// Session is the client-held record of the authentication state. Both fields
// absent means anonymous.
type Session struct {
	Token string    `json:"token,omitempty"`
	User  *api.User `json:"user,omitempty"`
}

// Authenticated reports whether the session holds a token.
func (s Session) Authenticated() bool { return s.Token != "" }

// Store holds the current session and mirrors every transition to disk.
// It satisfies api.TokenSource.
type Store struct {
	path string
	log  *logger.Logger

	mu      sync.RWMutex
	current Session
}

// Open rehydrates the last persisted session from dir, creating dir when
// needed. A missing record means anonymous; a corrupt record is logged and
// discarded rather than failing startup.
func Open(dir string, log *logger.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("session: state directory is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create state directory: %w", err)
	}

	s := &Store{path: filepath.Join(dir, authFileName), log: log}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("session: read state: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		log.Warnf("session: discarding corrupt state file %s: %v", s.path, err)
		return s, nil
	}
	s.current = sess
	return s, nil
}

// SetAuth transitions the store to the authenticated state and persists it.
func (s *Store) SetAuth(token string, user api.User) error {
	if token == "" {
		return fmt.Errorf("session: token is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Session{Token: token, User: &user}
	return s.persist()
}

// ClearAuth transitions the store to the anonymous state and persists it.
func (s *Store) ClearAuth() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Session{}
	return s.persist()
}

// Current returns a snapshot of the session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token returns the current bearer token, or "" when anonymous.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// persist writes the session record atomically. Callers hold s.mu.
func (s *Store) persist() error {
	return writeFileAtomic(s.path, s.current)
}

// writeFileAtomic marshals v and replaces path via a temp file and rename so
// a crash mid-write never leaves a truncated record behind.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("session: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session: write state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session: chmod state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: replace state file: %w", err)
	}
	return nil
}
