package integrator

import (
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// Leapfrog is the drift-kick-drift scheme: positions move half a step,
// derivatives are evaluated there, velocities kick a full step and
// positions finish with the second half-drift. First-order quantities
// advance as in the Euler scheme.
type Leapfrog struct {
	base
}

func NewLeapfrog(store *storage.Storage, opts Options) (*Leapfrog, error) {
	b, err := newBase(store, opts)
	if err != nil {
		return nil, err
	}
	return &Leapfrog{base: b}, nil
}

func (l *Leapfrog) Step(scheduler sched.Scheduler, solver Solver, st *stats.Stats) error {
	return l.step(scheduler, st, func() error { return l.advance(scheduler, solver, st) })
}

func (l *Leapfrog) advance(scheduler sched.Scheduler, solver Solver, st *stats.Stats) error {
	dt := l.dt

	storage.IterateSecondOrder(l.store, func(_ quantity.Id, r, v, _ quantity.Buffer) {
		_ = r.AXPY(0.5*dt, v)
	})

	l.store.ZeroHighestDerivatives(scheduler)
	if err := solver.Integrate(scheduler, l.store, st); err != nil {
		return err
	}

	storage.IterateFirstOrder(l.store, func(_ quantity.Id, v, dv quantity.Buffer) {
		_ = v.AXPY(dt, dv)
	})
	storage.IterateSecondOrder(l.store, func(_ quantity.Id, _, v, dv quantity.Buffer) {
		_ = v.AXPY(dt, dv)
	})
	storage.IterateSecondOrder(l.store, func(_ quantity.Id, r, v, _ quantity.Buffer) {
		_ = r.AXPY(0.5*dt, v)
	})
	clampStore(l.store)

	return l.store.IsValid(0)
}
