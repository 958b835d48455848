package sched

import (
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
)

type wsTask struct {
	s         *Stealing
	fn        func()
	done      chan struct{}
	completed atomic.Bool
}

func (t *wsTask) run() {
	t.fn()
	t.completed.Store(true)
	close(t.done)
}

func (t *wsTask) Completed() bool {
	return t.completed.Load()
}

// Wait from a worker keeps draining the deques; a task can therefore
// wait on work scheduled behind it without starving the backend.
func (t *wsTask) Wait() {
	slot, ok := t.s.ThreadIndex()
	if !ok {
		<-t.done
		return
	}
	for !t.completed.Load() {
		if next := t.s.poll(slot); next != nil {
			next.run()
			continue
		}
		select {
		case <-t.done:
			return
		default:
			runtime.Gosched()
		}
	}
}

// deque is the per-worker task store. The owner pushes and pops at the
// back; thieves take from the front.
type deque struct {
	mu    sync.Mutex
	items []*wsTask
}

func (d *deque) push(t *wsTask) {
	d.mu.Lock()
	d.items = append(d.items, t)
	d.mu.Unlock()
}

func (d *deque) popBack() *wsTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil
	}
	t := d.items[len(d.items)-1]
	d.items = d.items[:len(d.items)-1]
	return t
}

func (d *deque) stealFront() *wsTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil
	}
	t := d.items[0]
	d.items = d.items[1:]
	return t
}

// Stealing distributes tasks over per-worker deques. Workers prefer
// their own most recent work and steal from a random victim when dry,
// which keeps sweeps with uneven per-chunk cost balanced.
type Stealing struct {
	queues  []*deque
	threads int
	pending atomic.Int64

	mu     sync.Mutex
	cond   *sync.Cond
	closed bool

	wg sync.WaitGroup

	reg workerRegistry
}

// NewStealing starts a work-stealing scheduler; zero or negative
// selects GOMAXPROCS workers.
func NewStealing(threads int) *Stealing {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	s := &Stealing{
		queues:  make([]*deque, threads),
		threads: threads,
	}
	s.cond = sync.NewCond(&s.mu)
	for i := range s.queues {
		s.queues[i] = &deque{}
	}
	s.wg.Add(threads)
	for slot := 0; slot < threads; slot++ {
		go s.worker(slot)
	}
	return s
}

func (s *Stealing) worker(slot int) {
	defer s.wg.Done()
	s.reg.register(slot)
	defer s.reg.unregister()
	for {
		if t := s.poll(slot); t != nil {
			t.run()
			continue
		}
		s.mu.Lock()
		for s.pending.Load() == 0 && !s.closed {
			s.cond.Wait()
		}
		stop := s.closed && s.pending.Load() == 0
		s.mu.Unlock()
		if stop {
			return
		}
	}
}

// poll takes the caller's newest task, falling back to stealing the
// oldest task of a random victim.
func (s *Stealing) poll(slot int) *wsTask {
	if t := s.queues[slot].popBack(); t != nil {
		s.pending.Add(-1)
		return t
	}
	victim := rand.IntN(s.threads)
	for i := 0; i < s.threads; i++ {
		q := s.queues[(victim+i)%s.threads]
		if t := q.stealFront(); t != nil {
			s.pending.Add(-1)
			return t
		}
	}
	return nil
}

func (s *Stealing) Submit(fn func()) Handle {
	t := &wsTask{s: s, fn: fn, done: make(chan struct{})}
	slot, ok := s.ThreadIndex()
	if !ok {
		slot = rand.IntN(s.threads)
	}
	s.queues[slot].push(t)
	s.pending.Add(1)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
	return t
}

func (s *Stealing) ThreadCount() int {
	return s.threads
}

func (s *Stealing) ThreadIndex() (int, bool) {
	return s.reg.current()
}

func (s *Stealing) RecommendedGranularity(from, to int) int {
	g := (to - from) / (4 * s.threads)
	return min(max(g, 1), 1000)
}

// Stop lets the workers drain the deques and joins them. The scheduler
// must not be used afterwards.
func (s *Stealing) Stop() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}
