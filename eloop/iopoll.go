package eloop

import (
	"sort"
	"time"
)

// EntityKind distinguishes the three entity types the engine watches:
// a raw file descriptor, a deadline timer, and a cross-goroutine
// user-event (uevent) notification.
type EntityKind int

const (
	EntityFD EntityKind = iota
	EntityTimer
	EntityUEvent
)

// Entity is one thing the iopoll engine watches, carrying its
// {read, write, uevent, timeout, close} callback set.
// Exactly one of the callbacks fires per occurrence; Close is invoked
// once when the entity is removed from the engine.
type Entity struct {
	Kind EntityKind
	FD   int // valid for EntityFD and the internally-allocated EntityUEvent pipe

	// writeFD is the write end of the non-Linux EntityUEvent self-pipe
	// (iopoll_other.go); unused on Linux, where Notify writes FD itself
	// (an eventfd is both readable and writable through one descriptor).
	writeFD int

	Deadline time.Time // valid for EntityTimer; absolute wakeup time

	OnReadable func(e *Entity)
	OnWritable func(e *Entity)
	OnUEvent   func(e *Entity, data uint64)
	OnTimeout  func(e *Entity)
	OnClose    func(e *Entity)

	watchWrite bool
}

// Engine is the per-worker readiness multiplexer. Timer bookkeeping is shared across platforms (pollBase);
// only the raw FD wait primitive differs per OS.
type Engine interface {
	// Add registers e. For EntityTimer, only Deadline/OnTimeout matter.
	Add(e *Entity) error
	// Remove unregisters e, invoking its OnClose.
	Remove(e *Entity) error
	// Notify wakes a registered EntityUEvent from another goroutine.
	Notify(e *Entity, data uint64) error
	// Wait blocks up to timeout for readiness or a timer deadline,
	// dispatches every fired callback, and returns how many fired.
	Wait(timeout time.Duration) (fired int, err error)
	// Close tears down the engine's OS resources.
	Close() error
}

// pollBase holds the timer heap and common helpers shared by the
// linux (epoll) and fallback (poll) engines.
type pollBase struct {
	timers []*Entity
}

func (p *pollBase) addTimer(e *Entity) { p.timers = append(p.timers, e) }

func (p *pollBase) removeTimer(e *Entity) {
	for i, t := range p.timers {
		if t == e {
			p.timers = append(p.timers[:i], p.timers[i+1:]...)
			return
		}
	}
}

// clampTimeout returns the wait budget bounded by both the caller's
// requested timeout and the nearest outstanding timer's deadline.
func (p *pollBase) clampTimeout(timeout time.Duration, now time.Time) time.Duration {
	if len(p.timers) == 0 {
		return timeout
	}
	sort.Slice(p.timers, func(i, j int) bool { return p.timers[i].Deadline.Before(p.timers[j].Deadline) })
	until := p.timers[0].Deadline.Sub(now)
	if until < 0 {
		return 0
	}
	if until < timeout {
		return until
	}
	return timeout
}

// fireExpiredTimers dispatches OnTimeout for every timer whose deadline
// has passed, removing each as it fires (one-shot; callers that want a
// periodic timer re-Add it from OnTimeout).
func (p *pollBase) fireExpiredTimers(now time.Time) int {
	fired := 0
	remaining := p.timers[:0]
	for _, t := range p.timers {
		if !t.Deadline.After(now) {
			if t.OnTimeout != nil {
				t.OnTimeout(t)
			}
			fired++
		} else {
			remaining = append(remaining, t)
		}
	}
	p.timers = remaining
	return fired
}
