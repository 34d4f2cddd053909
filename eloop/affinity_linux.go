//go:build linux

package eloop

import "golang.org/x/sys/unix"

// pinToCore binds the calling OS thread to core. The caller must have already
// called runtime.LockOSThread.
func pinToCore(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	return unix.SchedSetaffinity(0, &set)
}
