package async

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DrainLock provides cross-process file locking using gofrs/flock so that
// only one process drains a shared ledger at a time.
type DrainLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDrainLock creates a lock backed by the file at path.
func NewDrainLock(path string) *DrainLock {
	return &DrainLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if it's held by another process.
func (l *DrainLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked DrainLock.
func (l *DrainLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *DrainLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *DrainLock) IsLocked() bool {
	return l.locked
}
