package rq

import (
	"container/list"

	"github.com/raleighsl/fs/vtask"
)

// FairnessShift normalises the priority-weighted quantum:
//
//	quantum = 1 + ((p << FairnessShift) / sumP) << parentQuantum >> FairnessShift
const FairnessShift = 8

type rrEntry struct {
	task        *vtask.VTask
	quantumUsed uint32
}

// RoundRobin hands each child a quantum derived from its priority share
// of the queue; the head is returned repeatedly by Fetch until its
// quantum is spent, then it rotates to the tail.
type RoundRobin struct {
	deque          *list.List // of *rrEntry
	parentQuantum  uint32
}

// NewRoundRobin builds a round-robin queue whose children's quanta are
// derived relative to parentQuantum (the quantum the parent RQ itself
// was given, or 1 at the root).
func NewRoundRobin(parentQuantum uint32) *RoundRobin {
	if parentQuantum == 0 {
		parentQuantum = 1
	}
	return &RoundRobin{deque: list.New(), parentQuantum: parentQuantum}
}

func (q *RoundRobin) Push(t *vtask.VTask) {
	q.deque.PushBack(&rrEntry{task: t})
}

func (q *RoundRobin) sumPriority() uint32 {
	var sum uint32
	for e := q.deque.Front(); e != nil; e = e.Next() {
		p := uint32(e.Value.(*rrEntry).task.Priority)
		if p == 0 {
			p = 1
		}
		sum += p
	}
	if sum == 0 {
		sum = 1
	}
	return sum
}

func (q *RoundRobin) quantumFor(priority uint8) uint32 {
	p := uint32(priority)
	if p == 0 {
		p = 1
	}
	sumP := q.sumPriority()
	return 1 + (((p << FairnessShift) / sumP) << q.parentQuantum >> FairnessShift)
}

func (q *RoundRobin) Fetch() *vtask.VTask {
	front := q.deque.Front()
	if front == nil {
		return nil
	}
	entry := front.Value.(*rrEntry)
	entry.quantumUsed++
	if entry.quantumUsed >= q.quantumFor(entry.task.Priority) {
		entry.quantumUsed = 0
		q.deque.MoveToBack(front)
	}
	return entry.task
}

func (q *RoundRobin) Remove(t *vtask.VTask) bool {
	for e := q.deque.Front(); e != nil; e = e.Next() {
		if e.Value.(*rrEntry).task == t {
			q.deque.Remove(e)
			return true
		}
	}
	return false
}

func (q *RoundRobin) Cancel() {
	for e := q.deque.Front(); e != nil; e = e.Next() {
		e.Value.(*rrEntry).task.Cancel = true
	}
}
