package eloop

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/raleighsl/fs/rcfg"
	"github.com/raleighsl/fs/vtask"
	"github.com/raleighsl/fs/vtask/group"
	"github.com/raleighsl/fs/vtask/rq"
)

// idlePollTimeout bounds how long a worker's Engine.Wait blocks when it
// has no timers pending and no ready entities, so the worker still
// notices Context.Stop promptly.
const idlePollTimeout = 100 * time.Millisecond

// Worker is one per-core event loop: a local fair run-queue
// fed by local Post calls and by inbound cross-core rings, an iopoll
// engine for readiness/timeouts, a private arena, and its own metrics.
type Worker struct {
	Core int

	engine Engine
	waker  *Entity

	group *group.Group
	root  *vtask.VTask

	inbound []*Ring // inbound[src] is the ring core src posts into when targeting this worker

	Arena   *Arena
	metrics *workerMetrics
}

// Post appends fn to this worker's own local run-queue; safe to call
// only from the worker's own goroutine (e.g. from within a running
// task). Cross-core callers must use Context.PostTo.
func (w *Worker) Post(priority uint8, fn vtask.Func) *vtask.VTask {
	return w.group.Append(priority, fn)
}

// drainInbound moves every task queued on this worker's inbound rings
// onto its local run-queue.
func (w *Worker) drainInbound() int {
	n := 0
	for _, r := range w.inbound {
		for {
			t := r.Pop()
			if t == nil {
				break
			}
			w.group.RQ().Push(t)
			n++
		}
	}
	return n
}

// pump runs the local run-queue to exhaustion; this
// implementation has no cross-RQ quantum boundary to enforce since a
// worker owns exactly one top-level RQ, so "until empty" is the only
// boundary that applies.
func (w *Worker) pump() {
	for {
		start := time.Now()
		if !vtask.Exec(w.root) {
			return
		}
		w.metrics.recordTask(start)
	}
}

// run is the worker's entry point. Call from its own dedicated goroutine.
func (w *Worker) run(stop <-chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	pinToCore(w.Core)

	for {
		select {
		case <-stop:
			return
		default:
		}

		idleStart := time.Now()
		w.engine.Wait(idlePollTimeout)
		w.metrics.recordIdle(time.Since(idleStart))

		w.drainInbound()
		w.pump()
	}
}

// Context is the process-wide runtime: it owns
// ncores workers, each pinned to a core with its own arena and iopoll
// engine, wired together by a full mesh of inter-core SPSC rings.
type Context struct {
	conf    *rcfg.Config
	workers []*Worker
	stop    chan struct{}
	wg      sync.WaitGroup

	// remoteRingsBySource[dst][src] is the ring worker src posts into
	// when targeting worker dst.
	remoteRingsBySource [][]*Ring
	// srcLocks[src] serializes producers against ring src's SPSC
	// contract. A worker's own goroutine is already the sole producer
	// for its own src index, so this lock is uncontended there; it only
	// does real work for src 0, the shared identity every non-worker
	// caller (fs.Execute, tests,...) posts under.
	srcLocks []sync.Mutex

	next uint64 // round-robin cursor for PostTask's no-core balancer
	mu   sync.Mutex
}

// ContextOpen spawns ncores workers, pins each to its CPU via
// affinity, constructs per-core arenas and iopoll engines, and
// establishes the inter-core SPSC rings, returning once every worker's
// engine is ready.
func ContextOpen(conf *rcfg.Config, reg prometheus.Registerer) (*Context, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	c := &Context{conf: conf, stop: make(chan struct{}), srcLocks: make([]sync.Mutex, conf.NCores)}

	ringsByTarget := make([][]*Ring, conf.NCores)
	for dst := range ringsByTarget {
		for src := 0; src < conf.NCores; src++ {
			ringsByTarget[dst] = append(ringsByTarget[dst], NewRing(conf.RemoteRingSize))
		}
	}

	for core := 0; core < conf.NCores; core++ {
		engine, err := NewEngine()
		if err != nil {
			c.closeEngines()
			return nil, err
		}
		g := group.New(rq.NewFair())
		w := &Worker{
			Core:    core,
			engine:  engine,
			group:   g,
			root:    vtask.NewRQ(128, g.RQ()),
			inbound: ringsByTarget[core],
			Arena:   NewArena(conf),
			metrics: newWorkerMetrics(core, reg),
		}
		waker := &Entity{Kind: EntityUEvent}
		if err := engine.Add(waker); err != nil {
			c.closeEngines()
			return nil, err
		}
		w.waker = waker
		c.workers = append(c.workers, w)
	}

	c.remoteRingsBySource = ringsByTarget
	for _, w := range c.workers {
		c.wg.Add(1)
		go func(w *Worker) {
			defer c.wg.Done()
			w.run(c.stop)
		}(w)
	}
	return c, nil
}

func (c *Context) closeEngines() {
	for _, w := range c.workers {
		w.engine.Close()
	}
}

// PostTo posts fn onto core's run-queue from outside that worker's own
// goroutine; the target is woken via its uevent entity.
// fromCore identifies the poster for ring selection; pass any stable
// source identity a caller owns (e.g. the calling worker's own Core, or
// 0 from non-worker goroutines).
func (c *Context) PostTo(fromCore, core int, priority uint8, fn vtask.Func) error {
	src := fromCore % c.conf.NCores
	t := vtask.NewTask(priority, fn, nil)

	c.srcLocks[src].Lock()
	err := c.remoteRingsBySource[core][src].Push(t)
	c.srcLocks[src].Unlock()
	if err != nil {
		return err
	}

	w := c.workers[core]
	return w.engine.Notify(w.waker, 1)
}

// PostTask balances fn across live workers round-robin.
func (c *Context) PostTask(priority uint8, fn vtask.Func) error {
	c.mu.Lock()
	core := int(c.next % uint64(len(c.workers)))
	c.next++
	c.mu.Unlock()
	return c.PostTo(0, core, priority, fn)
}

// NCores reports the worker count.
func (c *Context) NCores() int { return len(c.workers) }

// Worker exposes one worker by core index, e.g. for Worker.Arena
// access from code running on that core.
func (c *Context) Worker(core int) *Worker { return c.workers[core] }

// Stop signals every worker to exit its run loop after finishing its
// current pump.
func (c *Context) Stop() {
	close(c.stop)
	for _, w := range c.workers {
		w.engine.Notify(w.waker, 0)
	}
}

// Close joins every worker goroutine and tears down engines.
func (c *Context) Close() {
	c.wg.Wait()
	c.closeEngines()
}
