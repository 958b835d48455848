package sched

// Sequential runs every task inline on the calling goroutine. It is
// the backend of choice for tests and for workloads too small to
// amortise task handoff.
type Sequential struct{}

type doneHandle struct{}

func (doneHandle) Wait()           {}
func (doneHandle) Completed() bool { return true }

func (Sequential) Submit(fn func()) Handle {
	fn()
	return doneHandle{}
}

func (Sequential) ThreadCount() int {
	return 1
}

// ThreadIndex always reports slot zero; the caller is the only worker.
func (Sequential) ThreadIndex() (int, bool) {
	return 0, true
}

func (Sequential) RecommendedGranularity(from, to int) int {
	return max(to-from, 1)
}
