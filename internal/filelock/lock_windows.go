//go:build windows

package filelock

import (
	"math"
	"os"

	"golang.org/x/sys/windows"
)

// Lock the whole addressable range so the lock covers the file regardless of size.
const allBytes = math.MaxUint32

func lockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(windows.Handle(f.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK, 0, allBytes, allBytes, ol)
}

func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, allBytes, allBytes, ol)
}
