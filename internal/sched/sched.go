// Package sched provides the execution backends for parallel particle
// sweeps: a sequential fallback, a fixed thread pool and a
// work-stealing variant. All backends share the Scheduler contract, so
// numeric code never depends on a concrete backend.
package sched

// Handle tracks a submitted task.
type Handle interface {
	// Wait blocks until the task finished. Waiting from inside a worker
	// keeps processing pending tasks, so nested parallel regions cannot
	// deadlock the pool.
	Wait()
	Completed() bool
}

// Scheduler runs tasks on a fixed set of workers.
type Scheduler interface {
	Submit(fn func()) Handle

	// ThreadCount returns the number of workers.
	ThreadCount() int
	// ThreadIndex returns the dense index of the calling worker in
	// [0, ThreadCount), reporting false outside any worker.
	ThreadIndex() (int, bool)
	// RecommendedGranularity returns a chunk size for splitting the
	// index range [from, to) across workers.
	RecommendedGranularity(from, to int) int
}

// ParallelFor splits [from, to) into chunks of at most granularity
// indices, runs body over the chunks on the scheduler and waits for
// all of them. The body receives half-open subranges.
func ParallelFor(s Scheduler, from, to, granularity int, body func(from, to int)) {
	if from >= to {
		return
	}
	if granularity < 1 {
		granularity = 1
	}
	if to-from <= granularity {
		s.Submit(func() { body(from, to) }).Wait()
		return
	}
	handles := make([]Handle, 0, (to-from+granularity-1)/granularity)
	for i := from; i < to; i += granularity {
		n0, n1 := i, min(i+granularity, to)
		handles = append(handles, s.Submit(func() { body(n0, n1) }))
	}
	for _, h := range handles {
		h.Wait()
	}
}

// ParallelInvoke runs the given functions concurrently and waits for
// all of them.
func ParallelInvoke(s Scheduler, fns ...func()) {
	handles := make([]Handle, len(fns))
	for i, fn := range fns {
		handles[i] = s.Submit(fn)
	}
	for _, h := range handles {
		h.Wait()
	}
}
