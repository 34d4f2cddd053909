package rmetrics

import "time"

// Timer records a start/stop pair as monotonic nanoseconds.
type Timer struct {
	start, end int64
}

var clockBase = time.Now()

// monotonicNanos reads the monotonic clock as nanoseconds since clockBase.
func monotonicNanos() int64 { return int64(time.Since(clockBase)) }

func (t *Timer) Start() { t.start = monotonicNanos() }
func (t *Timer) Stop()  { t.end = monotonicNanos() }

// Reset collapses the interval to zero width at the
// previous end, so a timer can be stopped/restarted without reallocating.
func (t *Timer) Reset() { t.start = t.end }

func (t *Timer) Nanos() int64     { return t.end - t.start }
func (t *Timer) Seconds() float64 { return float64(t.Nanos()) / 1e9 }

// ElapsedNanos is the time since Start() without
// requiring Stop() first.
func (t *Timer) ElapsedNanos() int64 { return monotonicNanos() - t.start }
func (t *Timer) ElapsedSeconds() float64 { return float64(t.ElapsedNanos()) / 1e9 }
