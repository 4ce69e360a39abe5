//go:build !windows

package store

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ProcessAlive probes pid with signal 0. EPERM means the process exists but
// belongs to someone else.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
