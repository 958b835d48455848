// Package integrator advances the particle store in time. Each scheme
// drives a solver that fills the highest derivatives, then combines
// them into new state values; the shared frame handles attractors,
// step election and the rollback policy for failed solver evaluations.
package integrator

import (
	"errors"
	"fmt"

	"github.com/astroseed/gosph/internal/mathx"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
	"github.com/astroseed/gosph/internal/timestep"
)

// ErrCompute indicates a solver evaluation produced an unusable state,
// for example non-finite derivatives. The step is rolled back and
// retried with a halved timestep.
var ErrCompute = errors.New("integrator: compute failed")

// Solver fills the highest derivative buffers of the store from its
// current state. Implementations must not mutate state values.
type Solver interface {
	Integrate(scheduler sched.Scheduler, store *storage.Storage, st *stats.Stats) error
}

// Integrator advances the store by one timestep per call.
type Integrator interface {
	Step(scheduler sched.Scheduler, solver Solver, st *stats.Stats) error
	// TimeStep returns the step elected for the next call.
	TimeStep() float64
}

// Options configures the shared integrator frame.
type Options struct {
	// InitialStep seeds the timestep before the first election.
	InitialStep float64
	// MaxStep bounds every elected timestep.
	MaxStep float64
	// Criterion elects the next step after each advance; nil keeps the
	// step fixed.
	Criterion timestep.Criterion
	// SaveParticleSteps maintains the per-particle timestep dump
	// quantities.
	SaveParticleSteps bool
	// MaxRetries bounds the rollback-and-halve attempts after a
	// compute error; zero disables rollback entirely.
	MaxRetries int
}

type base struct {
	store      *storage.Storage
	criterion  timestep.Criterion
	dt         float64
	maxDt      float64
	saveSteps  bool
	maxRetries int
}

func newBase(store *storage.Storage, opts Options) (base, error) {
	b := base{
		store:      store,
		criterion:  opts.Criterion,
		dt:         opts.InitialStep,
		maxDt:      opts.MaxStep,
		saveSteps:  opts.SaveParticleSteps,
		maxRetries: opts.MaxRetries,
	}
	if b.dt <= 0 || b.maxDt <= 0 {
		return base{}, fmt.Errorf("integrator: non-positive timestep bounds (initial %g, max %g)", b.dt, b.maxDt)
	}
	if b.saveSteps {
		if _, err := storage.Insert(store, quantity.TimeStep, quantity.OrderZero, mathx.Large); err != nil {
			return base{}, err
		}
		if _, err := storage.Insert[int64](store, quantity.TimeStepCriterion, quantity.OrderZero, int64(timestep.CauseMaximal)); err != nil {
			return base{}, err
		}
	}
	return b, nil
}

func (b *base) TimeStep() float64 {
	return b.dt
}

// step runs one frame around a scheme-specific advance: attractor
// drift, the advance with rollback on compute errors, attractor kick
// and drift, and the election of the next step.
func (b *base) step(scheduler sched.Scheduler, st *stats.Stats, advance func() error) error {
	for attempt := 0; ; attempt++ {
		var backup *storage.Storage
		if b.maxRetries > 0 {
			// cloned before the half-drift so a rollback rewinds the
			// attractors too and the retry drifts with the halved step
			backup = b.store.Clone(quantity.AllBuffers)
		}
		attrs := b.store.Attractors()
		for i := range attrs {
			attrs[i].Position = attrs[i].Position.AddScaled(attrs[i].Velocity, 0.5*b.dt)
		}
		err := advance()
		if err == nil {
			break
		}
		if !errors.Is(err, ErrCompute) || attempt >= b.maxRetries {
			return err
		}
		if err := b.store.Swap(backup, quantity.AllBuffers); err != nil {
			return err
		}
		b.dt /= 2
	}

	attrs := b.store.Attractors()
	for i := range attrs {
		attrs[i].Velocity = attrs[i].Velocity.AddScaled(attrs[i].Acceleration, b.dt)
		attrs[i].Position = attrs[i].Position.AddScaled(attrs[i].Velocity, 0.5*b.dt)
	}

	if b.criterion != nil {
		b.resetParticleSteps()
		res, err := b.criterion.Compute(scheduler, b.store, b.maxDt, st)
		if err != nil {
			return err
		}
		b.dt = res.Dt
	}
	st.Set(stats.Timestep, b.dt)
	return nil
}

// resetParticleSteps rewinds the dump quantities before the criteria
// lower them again.
func (b *base) resetParticleSteps() {
	if !b.saveSteps {
		return
	}
	dts, err := storage.Value[float64](b.store, quantity.TimeStep)
	if err != nil {
		return
	}
	causes, _ := storage.Value[int64](b.store, quantity.TimeStepCriterion)
	for i := range dts {
		dts[i] = mathx.Large
		if causes != nil {
			causes[i] = int64(timestep.CauseMaximal)
		}
	}
}

// clampStore projects every bounded quantity of every material into
// its admissible interval, zeroing first derivatives at saturated
// components.
func clampStore(store *storage.Storage) {
	for matId := 0; matId < store.MaterialCount(); matId++ {
		view, err := store.Material(matId)
		if err != nil || view.Material == nil {
			continue
		}
		for _, id := range store.Ids() {
			rng := view.Material.Range(id)
			if rng.IsUnbounded() {
				continue
			}
			q, err := store.Quantity(id)
			if err != nil {
				continue
			}
			q.Clamp(view.From, view.To, rng)
		}
	}
}

// Kind selects a stepping scheme by name.
type Kind string

const (
	KindEuler              Kind = "euler"
	KindPredictorCorrector Kind = "predictor-corrector"
	KindRungeKutta         Kind = "runge-kutta"
	KindLeapfrog           Kind = "leapfrog"
)

// New constructs the scheme named by kind over the given store.
func New(kind Kind, store *storage.Storage, opts Options) (Integrator, error) {
	switch kind {
	case KindEuler:
		return NewEuler(store, opts)
	case KindPredictorCorrector:
		return NewPredictorCorrector(store, opts)
	case KindRungeKutta:
		return NewRungeKutta(store, opts)
	case KindLeapfrog:
		return NewLeapfrog(store, opts)
	default:
		return nil, fmt.Errorf("integrator: unknown scheme %q", kind)
	}
}
