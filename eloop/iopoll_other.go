//go:build !linux

package eloop

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// pollEngine is the non-Linux iopoll engine: a plain unix.Poll loop. EntityUEvent is backed by a
// self-pipe (the portable substitute for Linux's eventfd) rather than a
// platform-specific primitive.
type pollEngine struct {
	pollBase
	entities map[int]*Entity
}

// NewEngine builds the platform iopoll engine; everywhere but Linux this
// is the poll(2)-based fallback.
func NewEngine() (Engine, error) {
	return &pollEngine{entities: map[int]*Entity{}}, nil
}

func (e *pollEngine) Add(ent *Entity) error {
	switch ent.Kind {
	case EntityTimer:
		e.addTimer(ent)
		return nil
	case EntityUEvent:
		fds, err := pipe2CloExec()
		if err != nil {
			return err
		}
		ent.FD = fds[0]
		ent.writeFD = fds[1]
	}
	e.entities[ent.FD] = ent
	return nil
}

func (e *pollEngine) Remove(ent *Entity) error {
	if ent.Kind == EntityTimer {
		e.removeTimer(ent)
		if ent.OnClose != nil {
			ent.OnClose(ent)
		}
		return nil
	}
	delete(e.entities, ent.FD)
	if ent.Kind == EntityUEvent {
		unix.Close(ent.FD)
		unix.Close(ent.writeFD)
	}
	if ent.OnClose != nil {
		ent.OnClose(ent)
	}
	return nil
}

func (e *pollEngine) Notify(ent *Entity, data uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], data)
	_, err := unix.Write(ent.writeFD, buf[:])
	return err
}

func (e *pollEngine) Wait(timeout time.Duration) (int, error) {
	if len(e.entities) == 0 {
		d := e.clampTimeout(timeout, time.Now())
		time.Sleep(d)
		return e.fireExpiredTimers(time.Now()), nil
	}

	fds := make([]unix.PollFd, 0, len(e.entities))
	for fd, ent := range e.entities {
		var events int16 = unix.POLLIN
		if ent.watchWrite {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
	}
	ms := int(e.clampTimeout(timeout, time.Now()) / time.Millisecond)
	n, err := unix.Poll(fds, ms)
	if err != nil && err != unix.EINTR {
		return 0, err
	}
	fired := 0
	if n > 0 {
		for _, pfd := range fds {
			ent, ok := e.entities[int(pfd.Fd)]
			if !ok {
				continue
			}
			if ent.Kind == EntityUEvent && pfd.Revents&unix.POLLIN != 0 {
				var buf [8]byte
				unix.Read(ent.FD, buf[:])
				if ent.OnUEvent != nil {
					ent.OnUEvent(ent, binary.LittleEndian.Uint64(buf[:]))
				}
				fired++
				continue
			}
			if pfd.Revents&unix.POLLIN != 0 && ent.OnReadable != nil {
				ent.OnReadable(ent)
				fired++
			}
			if pfd.Revents&unix.POLLOUT != 0 && ent.OnWritable != nil {
				ent.OnWritable(ent)
				fired++
			}
		}
	}
	fired += e.fireExpiredTimers(time.Now())
	return fired, nil
}

func (e *pollEngine) Close() error { return nil }

func pipe2CloExec() ([2]int, error) {
	var fds [2]int
	err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK)
	return fds, err
}
