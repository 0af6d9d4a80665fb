// Package lock keeps a single harvester process running per deployment.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked means another process holds the lock.
var ErrLocked = errors.New("another harvester instance is running")

// Lock is an acquired instance lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock at path without waiting. It returns ErrLocked when
// the lock is already held.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, path)
	}
	return &Lock{fl: fl}, nil
}

// Release unlocks. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || !l.fl.Locked() {
		return nil
	}
	return l.fl.Unlock()
}

func (l *Lock) Path() string { return l.fl.Path() }
