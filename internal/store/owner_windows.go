//go:build windows

package store

// Windows liveness probing without extra platform dependencies is not reliable.
// Keep abandonment time-based on Windows.
func ProcessAlive(pid int) bool {
	_ = pid
	return false
}
