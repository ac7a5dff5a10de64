package announce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the set as a JSON object {"<id>": true} in one file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (map[string]bool, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		ids := make(map[string]bool)
		if err := s.Save(ctx, ids); err != nil {
			return nil, fmt.Errorf("create %s: %w", s.path, err)
		}
		return ids, nil
	}
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool)
	if len(b) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return ids, nil
}

// Save writes through a temp file in the same directory and renames it into place.
func (s *FileStore) Save(_ context.Context, ids map[string]bool) error {
	if ids == nil {
		ids = map[string]bool{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// MemoryStore is an in-process Store for tests and single-process runs.
type MemoryStore struct {
	mu    sync.Mutex
	ids   map[string]bool
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]bool)}
}

func (s *MemoryStore) Load(_ context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.ids), nil
}

func (s *MemoryStore) Save(_ context.Context, ids map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = maps.Clone(ids)
	if s.ids == nil {
		s.ids = make(map[string]bool)
	}
	s.saves++
	return nil
}

// Saves reports how many times the set was written.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// MutexLocker guards a store within one process only.
type MutexLocker struct {
	mu sync.Mutex
}

func (l *MutexLocker) Lock() error {
	l.mu.Lock()
	return nil
}

func (l *MutexLocker) Unlock() error {
	l.mu.Unlock()
	return nil
}
