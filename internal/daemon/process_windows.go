//go:build windows

package daemon

import (
	"os"

	"golang.org/x/sys/windows"
)

// ProcessAlive reports whether pid names a live process.
func ProcessAlive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// stillActive is STILL_ACTIVE from the Win32 API.
const stillActive = 259

// Terminate stops pid. Windows has no SIGTERM, so this kills the process.
func Terminate(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Kill()
}
