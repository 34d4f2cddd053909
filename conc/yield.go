package conc

import "runtime"

// procYield relaxes a spin loop: give the
// scheduler a chance to run another goroutine instead of burning the
// core on a tight spin.
func procYield() { runtime.Gosched() }
