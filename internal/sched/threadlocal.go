package sched

// Local holds one value per worker of a scheduler, each on its own
// cache line. Workers accumulate into their slot without contention;
// the combined result is folded once after the parallel region.
type Local[T any] struct {
	slots []localSlot[T]
}

type localSlot[T any] struct {
	value T
	_     [64]byte
}

// NewLocal creates a per-worker store with every slot set to initial.
func NewLocal[T any](s Scheduler, initial T) *Local[T] {
	l := &Local[T]{slots: make([]localSlot[T], s.ThreadCount())}
	for i := range l.slots {
		l.slots[i].value = initial
	}
	return l
}

// NewLocalFunc creates a per-worker store with every slot initialised
// by the given constructor.
func NewLocalFunc[T any](s Scheduler, construct func() T) *Local[T] {
	l := &Local[T]{slots: make([]localSlot[T], s.ThreadCount())}
	for i := range l.slots {
		l.slots[i].value = construct()
	}
	return l
}

// Get returns the slot of the calling worker, reporting false outside
// any worker.
func (l *Local[T]) Get(s Scheduler) (*T, bool) {
	slot, ok := s.ThreadIndex()
	if !ok {
		return nil, false
	}
	return &l.slots[slot].value, true
}

// Slot returns the value store of an explicit worker index.
func (l *Local[T]) Slot(i int) *T {
	return &l.slots[i].value
}

// ForEach visits every slot. It must not overlap a parallel region
// writing to the store.
func (l *Local[T]) ForEach(fn func(*T)) {
	for i := range l.slots {
		fn(&l.slots[i].value)
	}
}

// Accumulate folds all slots into a single value.
func (l *Local[T]) Accumulate(initial T, op func(acc, v T) T) T {
	acc := initial
	for i := range l.slots {
		acc = op(acc, l.slots[i].value)
	}
	return acc
}

// LocalParallelFor runs body over chunks of [from, to), handing each
// invocation the calling worker's slot.
func LocalParallelFor[T any](s Scheduler, l *Local[T], from, to, granularity int, body func(local *T, from, to int)) {
	ParallelFor(s, from, to, granularity, func(n0, n1 int) {
		local, ok := l.Get(s)
		if !ok {
			// a backend running chunks outside workers still gets a
			// deterministic slot
			local = l.Slot(0)
		}
		body(local, n0, n1)
	})
}
