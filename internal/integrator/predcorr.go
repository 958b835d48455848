package integrator

import (
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// PredictorCorrector predicts new state from the derivatives of the
// previous step, recomputes derivatives at the predicted state and
// blends the difference back with the (1/3, 1/2) coefficients.
type PredictorCorrector struct {
	base
	// predictions shadows the highest derivatives of the previous step.
	predictions *storage.Storage
}

func NewPredictorCorrector(store *storage.Storage, opts Options) (*PredictorCorrector, error) {
	if store.QuantityCount() == 0 {
		return nil, storage.ErrInvalidSetup
	}
	b, err := newBase(store, opts)
	if err != nil {
		return nil, err
	}
	pc := &PredictorCorrector{base: b}
	pc.predictions = store.Clone(quantity.HighestDerivatives)
	if err := store.AddDependent(pc.predictions); err != nil {
		return nil, err
	}
	store.ZeroHighestDerivatives(sched.Sequential{})
	return pc, nil
}

func (pc *PredictorCorrector) Step(scheduler sched.Scheduler, solver Solver, st *stats.Stats) error {
	return pc.step(scheduler, st, func() error { return pc.advance(scheduler, solver, st) })
}

func (pc *PredictorCorrector) advance(scheduler sched.Scheduler, solver Solver, st *stats.Stats) error {
	dt := pc.dt
	dt2 := 0.5 * dt * dt

	// predict with the derivatives of the previous step
	storage.IterateSecondOrder(pc.store, func(_ quantity.Id, r, v, dv quantity.Buffer) {
		_ = r.AXPY(dt, v)
		_ = r.AXPY(dt2, dv)
		_ = v.AXPY(dt, dv)
	})
	storage.IterateFirstOrder(pc.store, func(_ quantity.Id, v, dv quantity.Buffer) {
		_ = v.AXPY(dt, dv)
	})
	clampStore(pc.store)

	// stash the predicting derivatives, then recompute at the
	// predicted state
	if err := pc.store.Swap(pc.predictions, quantity.HighestDerivatives); err != nil {
		return err
	}
	pc.store.ZeroHighestDerivatives(scheduler)
	if err := solver.Integrate(scheduler, pc.store, st); err != nil {
		return err
	}

	// correct by the change of the derivatives: cdv is the derivative
	// at the predicted state, pdv the one the prediction used
	const a, b = 1.0 / 3.0, 0.5
	err := storage.IteratePairSecondOrder(pc.store, pc.predictions,
		func(_ quantity.Id, r, v, cdv, _, _, pdv quantity.Buffer) {
			_ = r.AXPY(a*dt2, cdv)
			_ = r.AXPY(-a*dt2, pdv)
			_ = v.AXPY(b*dt, cdv)
			_ = v.AXPY(-b*dt, pdv)
		})
	if err != nil {
		return err
	}
	err = storage.IteratePairFirstOrder(pc.store, pc.predictions,
		func(_ quantity.Id, v, cdv, _, pdv quantity.Buffer) {
			_ = v.AXPY(0.5*dt, cdv)
			_ = v.AXPY(-0.5*dt, pdv)
		})
	if err != nil {
		return err
	}
	clampStore(pc.store)

	return pc.store.IsValid(0)
}
