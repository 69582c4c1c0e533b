package mixer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Preferences is the persisted mixer state
// Global playback is deliberately absent: a restored mix never auto-plays
type Preferences struct {
	Focus        string  `yaml:"focus,omitempty"`
	Mix          Mix     `yaml:"mix,omitempty"`
	MasterVolume float64 `yaml:"master_volume"`
}

// PrefsStore loads and saves preferences
// Load returns an error wrapping os.ErrNotExist when nothing was saved yet
type PrefsStore interface {
	Load() (Preferences, error)
	Save(Preferences) error
}

// FileStore keeps preferences in a YAML file
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the preferences file
func (s *FileStore) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences: %w", err)
	}

	var p Preferences
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("parse preferences %s: %w", s.path, err)
	}
	return p, nil
}

// Save writes the preferences file atomically
func (s *FileStore) Save(p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("create preferences temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}

// isNotExist reports whether err means no preferences were saved yet
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
