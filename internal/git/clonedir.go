package git

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// PrepareCloneDir decides whether dir can receive a fresh clone. An existing
// empty directory is removed so the clone can recreate it; an existing
// non-empty directory is reported as already present. Any other existing
// path is an ErrNotDirectory error.
func PrepareCloneDir(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	if len(entries) > 0 {
		return true, nil
	}

	return false, os.Remove(dir)
}
