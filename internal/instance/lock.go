// Package instance guarantees at most one daemon per data directory.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/kimhsiao/memoria/internal/logging"
)

// LockName is the lock file created inside the data directory.
const LockName = "memoria.lock"

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = errors.New("another memoria daemon is already running")

// Lock is an exclusive advisory lock held for the daemon lifetime.
type Lock struct {
	fileLock *flock.Flock
}

// Acquire takes the lock in dataDir without blocking.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(dataDir, LockName)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock held on %s)", ErrAlreadyRunning, path)
	}

	logging.Debug("instance lock acquired", map[string]interface{}{"path": path})
	return &Lock{fileLock: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fileLock.Path()
}

// Release unlocks. The lock file is left in place.
func (l *Lock) Release() error {
	if err := l.fileLock.Unlock(); err != nil {
		return fmt.Errorf("failed to release %s: %w", l.fileLock.Path(), err)
	}
	return nil
}
