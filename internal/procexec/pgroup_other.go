//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package procexec

import "os/exec"

// Elsewhere exec.CommandContext's default Process.Kill is all we have.
func configureProcessGroup(cmd *exec.Cmd) {}
