package integrator

import (
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// RungeKutta is the classic fourth-order scheme. Four dependent
// shadow stores carry the stage states; the main store accumulates the
// weighted (k1 + 2 k2 + 2 k3 + k4) / 6 combination while the stage
// state travels along the shadow chain through state-value swaps.
type RungeKutta struct {
	base
	k1, k2, k3, k4 *storage.Storage
}

func NewRungeKutta(store *storage.Storage, opts Options) (*RungeKutta, error) {
	if store.QuantityCount() == 0 {
		return nil, storage.ErrInvalidSetup
	}
	b, err := newBase(store, opts)
	if err != nil {
		return nil, err
	}
	rk := &RungeKutta{base: b}
	for _, k := range []**storage.Storage{&rk.k1, &rk.k2, &rk.k3, &rk.k4} {
		*k = store.Clone(quantity.AllBuffers)
		if err := store.AddDependent(*k); err != nil {
			return nil, err
		}
	}
	store.ZeroHighestDerivatives(sched.Sequential{})
	return rk, nil
}

func (rk *RungeKutta) Step(scheduler sched.Scheduler, solver Solver, st *stats.Stats) error {
	return rk.step(scheduler, st, func() error { return rk.advance(scheduler, solver, st) })
}

// integrateAndAdvance evaluates the solver on a stage store, advances
// the stage by m*dt and accumulates the stage derivatives into the
// main store with weight n*dt.
func (rk *RungeKutta) integrateAndAdvance(scheduler sched.Scheduler, solver Solver, st *stats.Stats, k *storage.Storage, m, n float64) error {
	k.ZeroHighestDerivatives(scheduler)
	if err := solver.Integrate(scheduler, k, st); err != nil {
		return err
	}
	dt := rk.dt
	err := storage.IteratePairFirstOrder(k, rk.store,
		func(_ quantity.Id, kv, kdv, v, _ quantity.Buffer) {
			_ = kv.AXPY(m*dt, kdv)
			_ = v.AXPY(n*dt, kdv)
		})
	if err != nil {
		return err
	}
	// the stage velocity advances before it feeds the main value, so
	// the accumulated state sees the in-stage kick
	return storage.IteratePairSecondOrder(k, rk.store,
		func(_ quantity.Id, kv, kdv, kd2v, v, dv, _ quantity.Buffer) {
			_ = kv.AXPY(m*dt, kdv)
			_ = kdv.AXPY(m*dt, kd2v)
			_ = v.AXPY(n*dt, kdv)
			_ = dv.AXPY(n*dt, kd2v)
		})
}

func (rk *RungeKutta) advance(scheduler sched.Scheduler, solver Solver, st *stats.Stats) error {
	if err := rk.integrateAndAdvance(scheduler, solver, st, rk.k1, 0.5, 1.0/6.0); err != nil {
		return err
	}
	if err := rk.k1.Swap(rk.k2, quantity.StateValues); err != nil {
		return err
	}
	if err := rk.integrateAndAdvance(scheduler, solver, st, rk.k2, 0.5, 1.0/3.0); err != nil {
		return err
	}
	if err := rk.k2.Swap(rk.k3, quantity.StateValues); err != nil {
		return err
	}
	if err := rk.integrateAndAdvance(scheduler, solver, st, rk.k3, 0.5, 1.0/3.0); err != nil {
		return err
	}
	if err := rk.k3.Swap(rk.k4, quantity.StateValues); err != nil {
		return err
	}

	rk.k4.ZeroHighestDerivatives(scheduler)
	if err := solver.Integrate(scheduler, rk.k4, st); err != nil {
		return err
	}
	dt := rk.dt
	err := storage.IteratePairFirstOrder(rk.store, rk.k4,
		func(_ quantity.Id, v, _, _, kdv quantity.Buffer) {
			_ = v.AXPY(dt/6, kdv)
		})
	if err != nil {
		return err
	}
	err = storage.IteratePairSecondOrder(rk.store, rk.k4,
		func(_ quantity.Id, v, dv, _, _, kdv, kd2v quantity.Buffer) {
			_ = v.AXPY(dt/6, kdv)
			_ = dv.AXPY(dt/6, kd2v)
		})
	if err != nil {
		return err
	}
	clampStore(rk.store)

	return rk.store.IsValid(0)
}
