package conc

import (
	"sync"
	"time"
)

// Semaphore is a counting semaphore over a mutex+condvar with plain,
// timed, and non-blocking acquire forms. A zero-value Semaphore used
// with Available()==0 and never released behaves as a latch.
type Semaphore struct {
	mu        sync.Mutex
	cond      sync.Cond
	available int
	once      sync.Once
}

// NewSemaphore constructs a semaphore starting with `available` permits.
func NewSemaphore(available int) *Semaphore {
	s := &Semaphore{available: available}
	s.cond.L = &s.mu
	return s
}

func (s *Semaphore) lazyInit() {
	s.once.Do(func() {
		if s.cond.L == nil {
			s.cond.L = &s.mu
		}
	})
}

// Acquire blocks until n permits are available.
func (s *Semaphore) Acquire(n int) {
	s.lazyInit()
	s.mu.Lock()
	for n > s.available {
		s.cond.Wait()
	}
	s.available -= n
	s.mu.Unlock()
}

// TryAcquire is the non-blocking form.
func (s *Semaphore) TryAcquire(n int) bool {
	s.lazyInit()
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= s.available {
		s.available -= n
		return true
	}
	return false
}

// TryAcquireTimed blocks up to the given duration.
func (s *Semaphore) TryAcquireTimed(n int, d time.Duration) bool {
	s.lazyInit()
	deadline := time.Now().Add(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	for n > s.available {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return n <= s.available
		}
		waitWithTimeout(&s.cond, remaining)
	}
	s.available -= n
	return true
}

// Release returns n permits, waking any waiters that might now proceed.
func (s *Semaphore) Release(n int) {
	s.lazyInit()
	s.mu.Lock()
	s.available += n
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Available reports the current permit count (for tests/diagnostics).
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// waitWithTimeout wakes cond.Wait() after d by running it on its own
// goroutine and racing a timer; sync.Cond has no native timed wait.
func waitWithTimeout(cond *sync.Cond, d time.Duration) {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()
	go func() {
		cond.Wait()
		close(done)
	}()
	<-done
}
