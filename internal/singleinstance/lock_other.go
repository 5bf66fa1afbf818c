//go:build !windows

package singleinstance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"voltray/internal/userutil"
)

// Lock holds an exclusive flock on a lock file. The kernel drops it when the
// owning process exits.
type Lock struct {
	file *flock.Flock
}

// TryLock acquires the lock file at name without blocking.
func TryLock(name string) (*Lock, error) {
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	f := flock.New(name)
	ok, err := f.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", name, err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return &Lock{file: f}, nil
}

// Release unlocks. Safe on a nil receiver and idempotent. The lock file itself
// is left in place so a concurrent TryLock never races an unlink.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Unlock()
	l.file = nil
	return err
}

// DefaultName returns the per-user capture lock path, under XDG_RUNTIME_DIR
// when set and the temp directory otherwise.
func DefaultName() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "voltray-capture-"+userutil.CurrentUsername()+".lock")
}
