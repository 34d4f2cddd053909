// Package mapiter implements the map iterator framework and merger: a
// common Iterator interface over sorted key/value streams, and a Merger
// that folds several of them into one sorted union with a
// head-scan-and-skip-equals merge loop.
package mapiter

import "bytes"

// Iterator exposes a sorted stream of (key, value) pairs. Next/Seek
// reposition internally; Valid reports whether Key/Value are meaningful.
type Iterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next()
	// Seek repositions at the smallest key >= target, or invalidates the
	// iterator if no such key exists.
	Seek(target []byte)
}

// Cmp orders keys the same way across every iterator fed to a Merger.
type Cmp func(a, b []byte) int

// source pairs one iterator with its tie-break precedence within the
// merge; the iterator is used from whatever position the caller left it.
type source struct {
	it       Iterator
	priority int // lower = higher precedence (first source wins ties)
}

// Merger composes N sorted iterators into their sorted union: at each step scans all current heads, picks the smallest by cmp,
// and (if SkipEquals) advances every iterator whose head equals the
// chosen key, so a key present in more than one source surfaces once,
// with the earliest-listed source's value winning. Iterators that run
// out are dropped from the active set, matching "iterators holding no
// current entry are detached from the merge list".
type Merger struct {
	cmp        Cmp
	sources    []*source
	skipEquals bool

	curKey   []byte
	curValue []byte
	valid    bool
}

// NewMerger builds a merger over iterators in precedence order: earlier
// entries in `its` win ties when SkipEquals folds duplicate keys.
func NewMerger(cmp Cmp, skipEquals bool, its ...Iterator) *Merger {
	m := &Merger{cmp: cmp, skipEquals: skipEquals}
	for i, it := range its {
		if it.Valid() {
			m.sources = append(m.sources, &source{it: it, priority: i})
		}
	}
	m.advance()
	return m
}

func (m *Merger) advance() {
	if len(m.sources) == 0 {
		m.valid = false
		return
	}
	// Find the smallest head key; on ties prefer the lowest priority
	// (earliest-listed source).
	best := 0
	for i := 1; i < len(m.sources); i++ {
		c := m.cmp(m.sources[i].it.Key(), m.sources[best].it.Key())
		if c < 0 || (c == 0 && m.sources[i].priority < m.sources[best].priority) {
			best = i
		}
	}
	chosenKey := m.sources[best].it.Key()
	chosenValue := m.sources[best].it.Value()
	m.curKey = append(m.curKey[:0], chosenKey...)
	m.curValue = append(m.curValue[:0], chosenValue...)
	m.valid = true

	if m.skipEquals {
		live := m.sources[:0]
		for _, s := range m.sources {
			if m.cmp(s.it.Key(), m.curKey) == 0 {
				s.it.Next()
			}
			if s.it.Valid() {
				live = append(live, s)
			}
		}
		m.sources = live
	} else {
		s := m.sources[best]
		s.it.Next()
		if !s.it.Valid() {
			m.sources = append(m.sources[:best], m.sources[best+1:]...)
		}
	}
}

// Valid reports whether Key/Value currently hold an entry.
func (m *Merger) Valid() bool { return m.valid }

// Key/Value expose the merger's current head.
func (m *Merger) Key() []byte   { return m.curKey }
func (m *Merger) Value() []byte { return m.curValue }

// Next advances the merge to its next distinct (or, without SkipEquals,
// next raw) entry.
func (m *Merger) Next() {
	if !m.valid {
		return
	}
	m.advance()
}

// BytesCmp is the default lexicographic comparator most callers want.
func BytesCmp(a, b []byte) int { return bytes.Compare(a, b) }
