package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/gofrs/flock"
)

// FileLock is a host-wide advisory lock backed by flock(2)
type FileLock struct {
	path string
	lock *flock.Flock
}

// NewFileLock creates the lock file's directory and returns an unlocked lock
func NewFileLock(path string) (port.ProcessLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &FileLock{path: path, lock: flock.New(path)}, nil
}

// TryLock acquires the lock without blocking
func (l *FileLock) TryLock() (bool, error) {
	ok, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", l.path, err)
	}
	return ok, nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *FileLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return nil
}
