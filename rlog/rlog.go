// Package rlog is the RaleighSL/FS logging wrapper over
// github.com/golang/glog: a thin set of package-level helpers plus a
// fast, allocation-free verbosity gate so hot paths (object dispatch,
// scheduler execute loop) can log at high verbosity without paying for
// formatting when the level isn't enabled.
package rlog

import (
	"strconv"
	"sync/atomic"

	"github.com/golang/glog"
)

// Level mirrors glog.Level; RuntimeOpts.FastV gates on it without the
// allocation glog.V(level).Infoln would otherwise force on the hot path.
type Level int32

// RuntimeOpts holds the process-wide verbosity knobs, read by every
// hot loop.
type RuntimeOpts struct {
	logLevel Level
}

// Rom is the package-level RuntimeOpts singleton.
var Rom = &RuntimeOpts{logLevel: 2}

// SetLevel adjusts the verbosity gate; safe to call concurrently with FastV.
func (r *RuntimeOpts) SetLevel(l Level) {
	atomic.StoreInt32((*int32)(&r.logLevel), int32(l))
}

// FastV reports whether logging at `level` under `module` is enabled,
// without touching glog's own (slower, flag-synchronized) V() gate.
func (r *RuntimeOpts) FastV(level Level, module string) bool {
	_ = module // module-scoped gating is a possible future extension; global for now
	return level <= Level(atomic.LoadInt32((*int32)(&r.logLevel)))
}

func Infoln(args ...any)  { glog.InfoDepth(1, args...) }
func Warnln(args ...any)  { glog.WarningDepth(1, args...) }
func Errorln(args ...any) { glog.ErrorDepth(1, args...) }

func Infof(format string, args ...any)  { glog.Infof(format, args...) }
func Warnf(format string, args ...any)  { glog.Warningf(format, args...) }
func Errorf(format string, args ...any) { glog.Errorf(format, args...) }

// Humanize renders a byte count as a binary-unit label ("1.5KiB",
// "3.0MiB") for log lines.
func Humanize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + "B"
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	val := float64(n) / float64(div)
	return strconv.FormatFloat(val, 'f', 1, 64) + string(units[exp]) + "iB"
}
