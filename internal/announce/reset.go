package announce

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Reset removes the given store and lock artifacts. Missing files are fine.
// It runs once at startup, before any request is served.
func Reset(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// SQLiteArtifacts lists the database file and its WAL side files.
func SQLiteArtifacts(path string) []string {
	return []string{path, path + "-wal", path + "-shm"}
}
