package sched

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// workerRegistry maps goroutine ids to dense worker slots, giving
// workers an ambient identity for thread-local accumulators.
type workerRegistry struct {
	slots sync.Map // goroutine id -> worker slot
}

func (r *workerRegistry) register(slot int) {
	r.slots.Store(goid.Get(), slot)
}

func (r *workerRegistry) unregister() {
	r.slots.Delete(goid.Get())
}

func (r *workerRegistry) current() (int, bool) {
	v, ok := r.slots.Load(goid.Get())
	if !ok {
		return 0, false
	}
	return v.(int), true
}

type poolTask struct {
	p         *Pool
	fn        func()
	done      chan struct{}
	completed atomic.Bool
}

func (t *poolTask) run() {
	t.fn()
	t.completed.Store(true)
	close(t.done)
}

func (t *poolTask) Completed() bool {
	return t.completed.Load()
}

// Wait blocks until the task ran. A waiting worker shares the queue
// load instead of idling, so a task submitted from inside another task
// cannot deadlock the pool.
func (t *poolTask) Wait() {
	if _, ok := t.p.ThreadIndex(); ok {
		for {
			select {
			case <-t.done:
				return
			case other, ok := <-t.p.tasks:
				if !ok {
					<-t.done
					return
				}
				other.run()
			}
		}
	}
	<-t.done
}

// Pool is a fixed set of workers draining a shared FIFO queue.
type Pool struct {
	tasks   chan *poolTask
	reg     workerRegistry
	threads int
	wg      sync.WaitGroup
}

const poolQueueDepth = 1024

// NewPool starts a pool with the given worker count; zero or negative
// selects GOMAXPROCS.
func NewPool(threads int) *Pool {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		tasks:   make(chan *poolTask, poolQueueDepth),
		threads: threads,
	}
	p.wg.Add(threads)
	for slot := 0; slot < threads; slot++ {
		go p.worker(slot)
	}
	return p
}

func (p *Pool) worker(slot int) {
	defer p.wg.Done()
	p.reg.register(slot)
	defer p.reg.unregister()
	for t := range p.tasks {
		t.run()
	}
}

func (p *Pool) Submit(fn func()) Handle {
	t := &poolTask{p: p, fn: fn, done: make(chan struct{})}
	if _, ok := p.ThreadIndex(); ok {
		// a worker never blocks on a full queue
		select {
		case p.tasks <- t:
		default:
			t.run()
		}
		return t
	}
	p.tasks <- t
	return t
}

func (p *Pool) ThreadCount() int {
	return p.threads
}

func (p *Pool) ThreadIndex() (int, bool) {
	return p.reg.current()
}

func (p *Pool) RecommendedGranularity(from, to int) int {
	g := (to - from) / (4 * p.threads)
	return min(max(g, 1), 1000)
}

// Stop drains the queue and joins the workers. The pool must not be
// used afterwards.
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Default returns the process-wide pool, started on first use with
// GOMAXPROCS workers.
func Default() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool(0)
	})
	return defaultPool
}
