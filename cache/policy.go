package cache

import "container/list"

// LRU is the single-doubly-linked-list eviction policy:
// insert pushes at head, a hit moves the entry to head, reclaim walks
// from the tail and skips anything still pinned (refs>0).
type LRU struct {
	l     *list.List
	elems map[*Entry]*list.Element
}

// NewLRU builds the LRU.NewPolicyFunc constructor Cache.New expects.
func NewLRU() Policy {
	return &LRU{l: list.New(), elems: map[*Entry]*list.Element{}}
}

func (p *LRU) Insert(e *Entry) { p.elems[e] = p.l.PushFront(e) }

func (p *LRU) Touch(e *Entry) {
	if el, ok := p.elems[e]; ok {
		p.l.MoveToFront(el)
	}
}

func (p *LRU) Forget(e *Entry) {
	if el, ok := p.elems[e]; ok {
		p.l.Remove(el)
		delete(p.elems, e)
	}
}

// Reclaim walks from the tail (least recently used) for the first
// unpinned entry.
func (p *LRU) Reclaim() *Entry {
	for el := p.l.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*Entry)
		if e.refs <= 0 {
			p.l.Remove(el)
			delete(p.elems, e)
			return e
		}
	}
	return nil
}

// TwoQ is the two-queue policy: A1 (probation) holds
// entries seen exactly once; a hit on A1 promotes to Am (protected)
// head; a hit on Am moves it to Am head. A1 is capped at 1/a1FractionDenom
// of the configured capacity: an insert that overflows A1 moves A1's tail
// to Am's head. Reclaim prefers A1's tail, falling back to
// Am's tail when A1 is empty or every A1 entry is pinned.
type TwoQ struct {
	capacity int
	a1Cap    int

	a1     *list.List
	am     *list.List
	elems  map[*Entry]queueElem
}

type queueElem struct {
	list *list.List
	el   *list.Element
	inAm bool
}

// A1 is capped at a quarter of capacity (capacity=8 -> A1=2).
const a1FractionDenom = 4

// NewTwoQFunc returns a Cache.NewPolicyFunc bound to a fixed capacity,
// since 2Q (unlike LRU) needs to know the A1 cap up front.
func NewTwoQFunc(capacity int) NewPolicyFunc {
	return func() Policy {
		cap1 := capacity / a1FractionDenom
		if cap1 < 1 {
			cap1 = 1
		}
		return &TwoQ{
			capacity: capacity,
			a1Cap:    cap1,
			a1:       list.New(),
			am:       list.New(),
			elems:    map[*Entry]queueElem{},
		}
	}
}

func (p *TwoQ) Insert(e *Entry) {
	el := p.a1.PushFront(e)
	p.elems[e] = queueElem{list: p.a1, el: el}
	for p.a1.Len() > p.a1Cap {
		old := p.a1.Remove(p.a1.Back()).(*Entry)
		p.elems[old] = queueElem{list: p.am, el: p.am.PushFront(old), inAm: true}
	}
}

// A1Cap exposes the A1 capacity this stripe was sized with.
func (p *TwoQ) A1Cap() int { return p.a1Cap }

func (p *TwoQ) Touch(e *Entry) {
	qe, ok := p.elems[e]
	if !ok {
		return
	}
	if qe.inAm {
		p.am.MoveToFront(qe.el)
		return
	}
	// Promotion: a hit on an A1 entry moves it to Am head.
	p.a1.Remove(qe.el)
	nel := p.am.PushFront(e)
	p.elems[e] = queueElem{list: p.am, el: nel, inAm: true}
}

func (p *TwoQ) Forget(e *Entry) {
	if qe, ok := p.elems[e]; ok {
		qe.list.Remove(qe.el)
		delete(p.elems, e)
	}
}

// Reclaim prefers A1's tail; if A1 is empty or every A1 entry is
// pinned, falls back to Am's tail.
func (p *TwoQ) Reclaim() *Entry {
	if v := p.reclaimFrom(p.a1); v != nil {
		return v
	}
	return p.reclaimFrom(p.am)
}

func (p *TwoQ) reclaimFrom(q *list.List) *Entry {
	for el := q.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*Entry)
		if e.refs <= 0 {
			q.Remove(el)
			delete(p.elems, e)
			return e
		}
	}
	return nil
}
