// Package filelock provides advisory, whole-file exclusive locks.
//
// The platform implementation is selected at build time (flock(2) on unix,
// LockFileEx on windows). Locks are tied to the open file handle, so two
// handles on the same file contend even inside one process.
package filelock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Lock blocks until an exclusive lock on f is held.
func Lock(f *os.File) error {
	if f == nil {
		return fmt.Errorf("filelock: nil file")
	}
	if err := lockFile(f); err != nil {
		return fmt.Errorf("failed to lock %s: %w", f.Name(), err)
	}
	return nil
}

// Unlock releases a lock taken with Lock.
func Unlock(f *os.File) error {
	if f == nil {
		return fmt.Errorf("filelock: nil file")
	}
	if err := unlockFile(f); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", f.Name(), err)
	}
	return nil
}

// ErrReplaced is returned by OpenLocked when the path kept being replaced
// while it waited for the lock.
var ErrReplaced = errors.New("filelock: file replaced while waiting for lock")

const maxOpenAttempts = 16

// OpenLocked opens path with flag and perm and returns it with the
// exclusive lock held. The lock is only returned once it is held on the
// file that path still names: a holder may unlink the file before
// unlocking, so a waiter that wakes up on the orphaned inode reopens.
// Errors from opening are returned unwrapped so callers can test for
// fs.ErrNotExist and fs.ErrExist.
func OpenLocked(path string, flag int, perm os.FileMode) (*os.File, error) {
	for attempt := 0; attempt < maxOpenAttempts; attempt++ {
		f, err := os.OpenFile(path, flag, perm)
		if err != nil {
			return nil, err
		}
		if err := Lock(f); err != nil {
			f.Close()
			return nil, err
		}

		current, err := names(path, f)
		if err == nil && current {
			return f, nil
		}
		Release(f)
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrReplaced, path)
}

// Release unlocks and closes a file returned by OpenLocked.
func Release(f *os.File) {
	_ = Unlock(f)
	_ = f.Close()
}

// names reports whether path currently refers to the open file f.
func names(path string, f *os.File) (bool, error) {
	held, err := f.Stat()
	if err != nil {
		return false, err
	}
	named, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(held, named), nil
}
