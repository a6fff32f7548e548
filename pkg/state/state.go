// Package state persists per-user client flags (onboarding completion,
// theme) to a small YAML file under the configured state directory.
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const stateFileName = "state.yaml"

// UserState holds the locally persisted flags.
type UserState struct {
	OnboardingCompleted bool   `yaml:"onboarding_completed"`
	Theme               string `yaml:"theme,omitempty"`
}

// Store reads and writes UserState.
type Store interface {
	Load() (*UserState, error)
	Save(*UserState) error
}

// FileStore persists UserState under a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load reads the persisted state. A missing file yields zero-value state,
// not an error.
func (s *FileStore) Load() (*UserState, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, stateFileName))
	if os.IsNotExist(err) {
		return &UserState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st UserState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return &st, nil
}

// Save writes the state atomically (temp file + rename) so a crash mid-write
// never leaves a truncated file.
func (s *FileStore) Save(st *UserState) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, stateFileName+".*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, stateFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	state UserState
}

func (m *MemoryStore) Load() (*UserState, error) {
	st := m.state
	return &st, nil
}

func (m *MemoryStore) Save(st *UserState) error {
	m.state = *st
	return nil
}
