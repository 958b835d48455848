package integrator

import (
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// Euler is the explicit first-order scheme. Velocities advance before
// positions, so positions move with the already updated velocity.
type Euler struct {
	base
}

func NewEuler(store *storage.Storage, opts Options) (*Euler, error) {
	b, err := newBase(store, opts)
	if err != nil {
		return nil, err
	}
	return &Euler{base: b}, nil
}

func (e *Euler) Step(scheduler sched.Scheduler, solver Solver, st *stats.Stats) error {
	return e.step(scheduler, st, func() error { return e.advance(scheduler, solver, st) })
}

func (e *Euler) advance(scheduler sched.Scheduler, solver Solver, st *stats.Stats) error {
	e.store.ZeroHighestDerivatives(scheduler)
	if err := solver.Integrate(scheduler, e.store, st); err != nil {
		return err
	}

	dt := e.dt
	// semi-implicit order: derivatives advance first, so the position
	// update below already sees the new velocity
	storage.IterateSecondOrder(e.store, func(_ quantity.Id, _, dv, d2v quantity.Buffer) {
		_ = dv.AXPY(dt, d2v)
	})
	storage.IterateSecondOrder(e.store, func(_ quantity.Id, v, dv, _ quantity.Buffer) {
		_ = v.AXPY(dt, dv)
	})
	storage.IterateFirstOrder(e.store, func(_ quantity.Id, v, dv quantity.Buffer) {
		_ = v.AXPY(dt, dv)
	})
	clampStore(e.store)

	return e.store.IsValid(0)
}
