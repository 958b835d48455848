package integrator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/mathx"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
	"github.com/astroseed/gosph/internal/timestep"
)

// constantRate fills the first derivative of a scalar quantity with a
// fixed value each evaluation.
type constantRate struct {
	id   quantity.Id
	rate float64
}

func (s constantRate) Integrate(_ sched.Scheduler, store *storage.Storage, _ *stats.Stats) error {
	dts, err := storage.Dt[float64](store, s.id)
	if err != nil {
		return err
	}
	for i := range dts {
		dts[i] = s.rate
	}
	return nil
}

// constantAcceleration fills the second derivative of the positions.
type constantAcceleration struct {
	a geometry.Vector
}

func (s constantAcceleration) Integrate(_ sched.Scheduler, store *storage.Storage, _ *stats.Stats) error {
	d2, err := storage.D2t[geometry.Vector](store, quantity.Position)
	if err != nil {
		return err
	}
	for i := range d2 {
		d2[i] = s.a
	}
	return nil
}

// failingOnce reports a compute error on its first evaluation and
// behaves like constantRate afterwards.
type failingOnce struct {
	inner constantRate
	calls *int
}

func (s failingOnce) Integrate(scheduler sched.Scheduler, store *storage.Storage, st *stats.Stats) error {
	*s.calls++
	if *s.calls == 1 {
		// corrupt the state to prove the rollback restores it
		vals, _ := storage.Value[float64](store, s.inner.id)
		for i := range vals {
			vals[i] = -1e9
		}
		return fmt.Errorf("%w: injected failure", ErrCompute)
	}
	return s.inner.Integrate(scheduler, store, st)
}

func boundedScalarStore(t *testing.T, values []float64, rng mathx.Interval, minimal float64) *storage.Storage {
	t.Helper()
	mat := storage.NewNullMaterial()
	mat.SetRange(quantity.Energy, rng, minimal)
	store := storage.NewWithMaterial(mat)
	_, err := storage.InsertValues(store, quantity.Energy, quantity.OrderFirst, values)
	require.NoError(t, err)
	return store
}

func TestEulerAdvancesAndClampsFirstOrder(t *testing.T) {
	store := boundedScalarStore(t, []float64{0, 1, 10}, mathx.NewInterval(0, 5), 0.1)

	integ, err := NewEuler(store, Options{InitialStep: 1, MaxStep: 10})
	require.NoError(t, err)
	require.NoError(t, integ.Step(sched.Sequential{}, constantRate{id: quantity.Energy, rate: 1}, stats.New()))

	vals, err := storage.Value[float64](store, quantity.Energy)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 5}, vals)

	// the clamped particle loses its drift
	dts, err := storage.Dt[float64](store, quantity.Energy)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 0}, dts)
}

func TestStepKeepsFixedDtWithoutCriterion(t *testing.T) {
	store := boundedScalarStore(t, []float64{0}, mathx.Unbounded(), 0)
	integ, err := NewEuler(store, Options{InitialStep: 0.25, MaxStep: 10})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, integ.Step(sched.Sequential{}, constantRate{id: quantity.Energy, rate: 2}, stats.New()))
	}
	assert.Equal(t, 0.25, integ.TimeStep())
	vals, _ := storage.Value[float64](store, quantity.Energy)
	assert.InDelta(t, 2.0, vals[0], 1e-12)
}

func TestRollbackRestoresStateAndHalvesStep(t *testing.T) {
	store := boundedScalarStore(t, []float64{4}, mathx.Unbounded(), 0)
	integ, err := NewEuler(store, Options{InitialStep: 1, MaxStep: 10, MaxRetries: 3})
	require.NoError(t, err)

	calls := 0
	solver := failingOnce{inner: constantRate{id: quantity.Energy, rate: 1}, calls: &calls}
	require.NoError(t, integ.Step(sched.Sequential{}, solver, stats.New()))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0.5, integ.TimeStep())
	vals, _ := storage.Value[float64](store, quantity.Energy)
	assert.InDelta(t, 4.5, vals[0], 1e-12, "the retry must restart from the pre-step state")
}

func TestRollbackRewindsAttractorDrift(t *testing.T) {
	store := boundedScalarStore(t, []float64{4}, mathx.Unbounded(), 0)
	store.AddAttractor(storage.Attractor{Velocity: geometry.Vector{1, 0, 0, 0}})

	integ, err := NewEuler(store, Options{InitialStep: 1, MaxStep: 10, MaxRetries: 3})
	require.NoError(t, err)
	calls := 0
	solver := failingOnce{inner: constantRate{id: quantity.Energy, rate: 1}, calls: &calls}
	require.NoError(t, integ.Step(sched.Sequential{}, solver, stats.New()))

	// the aborted half-drift is rolled back, so the attractor moves by
	// exactly the halved step
	a := store.Attractors()[0]
	assert.InDelta(t, 0.5, a.Position[geometry.X], 1e-12)
}

func TestRollbackGivesUpAfterMaxRetries(t *testing.T) {
	store := boundedScalarStore(t, []float64{4}, mathx.Unbounded(), 0)
	integ, err := NewEuler(store, Options{InitialStep: 1, MaxStep: 10, MaxRetries: 1})
	require.NoError(t, err)

	failing := func() Solver {
		calls := 0
		return solverFunc(func(sched.Scheduler, *storage.Storage, *stats.Stats) error {
			calls++
			return fmt.Errorf("%w: always failing", ErrCompute)
		})
	}
	err = integ.Step(sched.Sequential{}, failing(), stats.New())
	require.ErrorIs(t, err, ErrCompute)
}

type solverFunc func(sched.Scheduler, *storage.Storage, *stats.Stats) error

func (f solverFunc) Integrate(s sched.Scheduler, store *storage.Storage, st *stats.Stats) error {
	return f(s, store, st)
}

func TestInvalidOptionsRejected(t *testing.T) {
	store := boundedScalarStore(t, []float64{1}, mathx.Unbounded(), 0)
	_, err := NewEuler(store, Options{InitialStep: 0, MaxStep: 10})
	require.Error(t, err)
	_, err = NewEuler(store, Options{InitialStep: 1, MaxStep: -1})
	require.Error(t, err)
}

func TestLeapfrogConstantAccelerationIsExact(t *testing.T) {
	store := storage.New()
	_, err := storage.InsertValues(store, quantity.Position, quantity.OrderSecond, []geometry.Vector{{0, 0, 0, 0.1}})
	require.NoError(t, err)
	v, err := storage.Dt[geometry.Vector](store, quantity.Position)
	require.NoError(t, err)
	v[0] = geometry.Vector{1, 0, 0, 0}

	integ, err := NewLeapfrog(store, Options{InitialStep: 0.5, MaxStep: 10})
	require.NoError(t, err)
	solver := constantAcceleration{a: geometry.Vector{0, 2, 0, 0}}

	dt, steps := 0.5, 4
	for i := 0; i < steps; i++ {
		require.NoError(t, integ.Step(sched.Sequential{}, solver, stats.New()))
	}

	// drift-kick-drift reproduces uniform acceleration exactly
	tTotal := dt * float64(steps)
	r, _ := storage.Value[geometry.Vector](store, quantity.Position)
	assert.InDelta(t, tTotal, r[0][geometry.X], 1e-12)
	assert.InDelta(t, tTotal*tTotal, r[0][geometry.Y], 1e-12)
	assert.InDelta(t, 2*tTotal, v[0][geometry.Y], 1e-12)
}

func TestRungeKuttaConstantRateIsExact(t *testing.T) {
	mat := storage.NewNullMaterial()
	store := storage.NewWithMaterial(mat)
	_, err := storage.InsertValues(store, quantity.Energy, quantity.OrderFirst, []float64{1})
	require.NoError(t, err)

	integ, err := NewRungeKutta(store, Options{InitialStep: 0.5, MaxStep: 10})
	require.NoError(t, err)
	require.NoError(t, integ.Step(sched.Sequential{}, constantRate{id: quantity.Energy, rate: 3}, stats.New()))

	vals, _ := storage.Value[float64](store, quantity.Energy)
	assert.InDelta(t, 2.5, vals[0], 1e-12)
}

func TestPredictorCorrectorZeroAccelerationDrifts(t *testing.T) {
	store := storage.New()
	_, err := storage.InsertValues(store, quantity.Position, quantity.OrderSecond, []geometry.Vector{{0, 0, 0, 0.1}})
	require.NoError(t, err)
	v, err := storage.Dt[geometry.Vector](store, quantity.Position)
	require.NoError(t, err)
	v[0] = geometry.Vector{2, 0, 0, 0}

	integ, err := NewPredictorCorrector(store, Options{InitialStep: 0.5, MaxStep: 10})
	require.NoError(t, err)
	noop := solverFunc(func(sched.Scheduler, *storage.Storage, *stats.Stats) error { return nil })
	require.NoError(t, integ.Step(sched.Sequential{}, noop, stats.New()))

	r, _ := storage.Value[geometry.Vector](store, quantity.Position)
	assert.InDelta(t, 1.0, r[0][geometry.X], 1e-12)
}

func TestStepElectsNextDtThroughCriterion(t *testing.T) {
	store := boundedScalarStore(t, []float64{100}, mathx.Unbounded(), 0)
	crit := timestep.NewMultiCriterion(0.5, 1, &timestep.DerivativeCriterion{Factor: 1, Power: -1e4})

	integ, err := NewEuler(store, Options{InitialStep: 1, MaxStep: 1000, Criterion: crit})
	require.NoError(t, err)
	st := stats.New()
	require.NoError(t, integ.Step(sched.Sequential{}, constantRate{id: quantity.Energy, rate: 1}, st))

	// candidate 101/1 is damped to 1 * 1.5 by the change envelope
	assert.InDelta(t, 1.5, integ.TimeStep(), 1e-9)
	dt, ok := stats.Get[float64](st, stats.Timestep)
	require.True(t, ok)
	assert.InDelta(t, 1.5, dt, 1e-9)
}

func TestSaveParticleStepsMaintainsDumpQuantities(t *testing.T) {
	store := boundedScalarStore(t, []float64{100, 200}, mathx.Unbounded(), 0)
	crit := timestep.NewMultiCriterion(1e10, 1, &timestep.DerivativeCriterion{Factor: 1, Power: -1e4})

	integ, err := NewEuler(store, Options{
		InitialStep:       1,
		MaxStep:           1e9,
		Criterion:         crit,
		SaveParticleSteps: true,
	})
	require.NoError(t, err)
	require.True(t, store.Has(quantity.TimeStep))
	require.True(t, store.Has(quantity.TimeStepCriterion))

	require.NoError(t, integ.Step(sched.Sequential{}, constantRate{id: quantity.Energy, rate: 1}, stats.New()))

	dts, err := storage.Value[float64](store, quantity.TimeStep)
	require.NoError(t, err)
	assert.Less(t, dts[0], mathx.Large)
	causes, err := storage.Value[int64](store, quantity.TimeStepCriterion)
	require.NoError(t, err)
	assert.Equal(t, int64(timestep.CauseDerivative), causes[0])
}

func TestAttractorKinematics(t *testing.T) {
	store := boundedScalarStore(t, []float64{0}, mathx.Unbounded(), 0)
	store.AddAttractor(storage.Attractor{Velocity: geometry.Vector{2, 0, 0, 0}})

	integ, err := NewEuler(store, Options{InitialStep: 1, MaxStep: 10})
	require.NoError(t, err)
	noop := solverFunc(func(sched.Scheduler, *storage.Storage, *stats.Stats) error { return nil })
	require.NoError(t, integ.Step(sched.Sequential{}, noop, stats.New()))

	a := store.Attractors()[0]
	assert.InDelta(t, 2.0, a.Position[geometry.X], 1e-12)
}

func TestNewSelectsScheme(t *testing.T) {
	store := boundedScalarStore(t, []float64{1}, mathx.Unbounded(), 0)
	for _, kind := range []Kind{KindEuler, KindPredictorCorrector, KindRungeKutta, KindLeapfrog} {
		integ, err := New(kind, store, Options{InitialStep: 1, MaxStep: 10})
		require.NoError(t, err, "scheme %q", kind)
		require.NotNil(t, integ)
	}
	_, err := New("midpoint", store, Options{InitialStep: 1, MaxStep: 10})
	require.Error(t, err)
}
