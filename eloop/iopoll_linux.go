//go:build linux

package eloop

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// epollEngine is the Linux iopoll engine, grounded on ehrlich-b-go-ublk's internal/uring/minimal.go
// style of calling golang.org/x/sys/unix directly for raw syscalls
// rather than a third-party epoll wrapper.
type epollEngine struct {
	pollBase
	epfd     int
	entities map[int]*Entity
}

// NewEngine builds the platform iopoll engine; on Linux this is always
// the real epoll engine.
func NewEngine() (Engine, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollEngine{epfd: epfd, entities: map[int]*Entity{}}, nil
}

func (e *epollEngine) Add(ent *Entity) error {
	switch ent.Kind {
	case EntityTimer:
		e.addTimer(ent)
		return nil
	case EntityUEvent:
		fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
		if err != nil {
			return err
		}
		ent.FD = fd
	}
	events := uint32(unix.EPOLLIN)
	if ent.watchWrite {
		events |= unix.EPOLLOUT
	}
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, ent.FD, &unix.EpollEvent{Events: events, Fd: int32(ent.FD)}); err != nil {
		return err
	}
	e.entities[ent.FD] = ent
	return nil
}

func (e *epollEngine) Remove(ent *Entity) error {
	if ent.Kind == EntityTimer {
		e.removeTimer(ent)
		if ent.OnClose != nil {
			ent.OnClose(ent)
		}
		return nil
	}
	unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, ent.FD, nil)
	delete(e.entities, ent.FD)
	if ent.Kind == EntityUEvent {
		unix.Close(ent.FD)
	}
	if ent.OnClose != nil {
		ent.OnClose(ent)
	}
	return nil
}

func (e *epollEngine) Notify(ent *Entity, data uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], data)
	_, err := unix.Write(ent.FD, buf[:])
	return err
}

func (e *epollEngine) Wait(timeout time.Duration) (int, error) {
	ms := int(e.clampTimeout(timeout, time.Now()) / time.Millisecond)
	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(e.epfd, events, ms)
	if err != nil && err != unix.EINTR {
		return 0, err
	}
	fired := 0
	for i := 0; i < n; i++ {
		ent, ok := e.entities[int(events[i].Fd)]
		if !ok {
			continue
		}
		if ent.Kind == EntityUEvent {
			var buf [8]byte
			unix.Read(ent.FD, buf[:])
			if ent.OnUEvent != nil {
				ent.OnUEvent(ent, binary.LittleEndian.Uint64(buf[:]))
			}
			fired++
			continue
		}
		if events[i].Events&unix.EPOLLIN != 0 && ent.OnReadable != nil {
			ent.OnReadable(ent)
			fired++
		}
		if events[i].Events&unix.EPOLLOUT != 0 && ent.OnWritable != nil {
			ent.OnWritable(ent)
			fired++
		}
	}
	fired += e.fireExpiredTimers(time.Now())
	return fired, nil
}

func (e *epollEngine) Close() error {
	return unix.Close(e.epfd)
}
