package errs

import (
	"fmt"
	"os"
)

// DebugBuild gates Assert/Assertf. It defaults to true and nothing in
// this package changes it; with it false, Assert costs only a branch.
var DebugBuild = true

// Assert panics with a formatted message when cond is false. Structural
// invariants are fatal to the process, never recovered from.
func Assert(cond bool, args ...any) {
	if !DebugBuild || cond {
		return
	}
	msg := "assertion failed"
	if len(args) > 0 {
		msg = fmt.Sprint(args...)
	}
	fmt.Fprintln(os.Stderr, "FATAL:", msg)
	panic(msg)
}

// Assertf is the Printf-style sibling of Assert.
func Assertf(cond bool, format string, args ...any) {
	if !DebugBuild || cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, "FATAL:", msg)
	panic(msg)
}
