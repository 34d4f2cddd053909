//go:build !linux

package eloop

// pinToCore is a no-op outside Linux: there's no portable CPU-affinity
// syscall in golang.org/x/sys/unix for every non-Linux target, so
// runtime.LockOSThread (already called by the worker) is the only
// portable pinning this build offers.
func pinToCore(core int) error { return nil }
