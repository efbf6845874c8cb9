// Package repolock serializes work on a repository directory across
// processes with an advisory lock file next to it.
package repolock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	apperrors "github.com/vriesdemichael/git-service-cli/internal/domain/errors"
)

const retryDelay = 200 * time.Millisecond

type Lock struct {
	file *flock.Flock
}

// Path returns the lock file used for dir. It lives beside dir, not inside
// it, so an empty clone target stays empty.
func Path(dir string) string {
	cleaned := filepath.Clean(dir)
	return filepath.Join(filepath.Dir(cleaned), "."+filepath.Base(cleaned)+".lock")
}

// Acquire blocks until the lock for dir is held or ctx is done.
func Acquire(ctx context.Context, dir string) (*Lock, error) {
	path := Path(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.New(apperrors.KindPermanent, fmt.Sprintf("cannot create lock directory for %s", dir), err)
	}

	file := flock.New(path)
	locked, err := file.TryLockContext(ctx, retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.New(apperrors.KindTransient, fmt.Sprintf("timed out waiting for lock on %s", dir), err)
		}
		return nil, apperrors.New(apperrors.KindPermanent, fmt.Sprintf("cannot lock %s", dir), err)
	}
	if !locked {
		return nil, apperrors.New(apperrors.KindTransient, fmt.Sprintf("lock on %s is held by another process", dir), nil)
	}

	return &Lock{file: file}, nil
}

func (lock *Lock) Release() error {
	return lock.file.Unlock()
}
