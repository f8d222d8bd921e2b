package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cardtrader/cardtrader/pkg/logger"
)

const themeFileName = "cardtrader-theme.json"

// Theme is the display preference persisted alongside the session.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

type prefsRecord struct {
	Theme Theme `json:"theme"`
}

// Prefs persists display preferences. Unknown persisted values fall back to
// the system default instead of failing.
type Prefs struct {
	path string

	mu    sync.RWMutex
	theme Theme
}

// OpenPrefs rehydrates preferences from dir, creating dir when needed.
func OpenPrefs(dir string, log *logger.Logger) (*Prefs, error) {
	if dir == "" {
		return nil, fmt.Errorf("session: state directory is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create state directory: %w", err)
	}

	p := &Prefs{path: filepath.Join(dir, themeFileName), theme: ThemeSystem}

	raw, err := os.ReadFile(p.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("session: read preferences: %w", err)
	}

	var rec prefsRecord
	if err := json.Unmarshal(raw, &rec); err != nil || !rec.Theme.Valid() {
		log.Warnf("session: ignoring invalid preferences file %s", p.path)
		return p, nil
	}
	p.theme = rec.Theme
	return p, nil
}

// Theme returns the current theme preference.
func (p *Prefs) Theme() Theme {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.theme
}

// SetTheme updates and persists the theme preference.
func (p *Prefs) SetTheme(t Theme) error {
	if !t.Valid() {
		return fmt.Errorf("session: unknown theme %q", t)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.theme = t
	return writeFileAtomic(p.path, prefsRecord{Theme: t})
}
