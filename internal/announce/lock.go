package announce

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileLock is an exclusive advisory lock on a lock file, shared between
// processes. Goroutines of one process are serialized by mu before the file
// lock is taken, since flock is per open file description.
type FileLock struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

func (l *FileLock) Path() string { return l.path }

// Lock blocks until the lock is held. The lock file is created when missing.
func (l *FileLock) Lock() error {
	l.mu.Lock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			l.mu.Unlock()
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		l.mu.Unlock()
		return fmt.Errorf("lock %s: %w", l.path, err)
	}
	l.f = f
	return nil
}

func (l *FileLock) Unlock() error {
	if l.f == nil {
		return errors.New("announce: unlock of unlocked file lock")
	}
	f := l.f
	l.f = nil
	defer l.mu.Unlock()

	unlockErr := unlockFile(f)
	closeErr := f.Close()
	if unlockErr != nil {
		return fmt.Errorf("unlock %s: %w", l.path, unlockErr)
	}
	return closeErr
}
