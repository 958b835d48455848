// Package timestep elects the step of the next iteration. Each
// criterion derives a candidate from the particle state; the composite
// criterion takes the strictest one and damps changes between
// consecutive steps.
package timestep

import (
	"math"

	"github.com/astroseed/gosph/internal/mathx"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// Cause names the origin of an elected timestep.
type Cause uint8

const (
	CauseInitial Cause = iota
	CauseMaximal
	CauseCfl
	CauseAcceleration
	CauseDerivative
	CauseDivergence
)

func (c Cause) String() string {
	switch c {
	case CauseInitial:
		return "initial value"
	case CauseMaximal:
		return "maximal value"
	case CauseCfl:
		return "CFL condition"
	case CauseAcceleration:
		return "acceleration"
	case CauseDerivative:
		return "derivative"
	case CauseDivergence:
		return "divergence"
	default:
		return "unknown"
	}
}

// Result is an elected timestep with its provenance. Quantity is
// meaningful only for CauseDerivative.
type Result struct {
	Dt       float64
	Cause    Cause
	Quantity quantity.Id
}

// Criterion computes a timestep candidate bounded by maxStep.
type Criterion interface {
	Compute(scheduler sched.Scheduler, store *storage.Storage, maxStep float64, st *stats.Stats) (Result, error)
}

// capped bounds a candidate by maxStep, attributing the cap.
func capped(dt float64, cause Cause, id quantity.Id, maxStep float64) Result {
	if dt > maxStep {
		return Result{Dt: maxStep, Cause: CauseMaximal}
	}
	return Result{Dt: dt, Cause: cause, Quantity: id}
}

type argMin struct {
	dt  float64
	idx int
}

// aggregate folds per-particle timestep candidates into one value.
// Powers below the strict-minimum threshold select the smallest
// candidate and report the limiting particle; otherwise the candidates
// combine through the generalized power mean and the index is -1.
// Candidates returned as +Inf do not contribute.
func aggregate(scheduler sched.Scheduler, n int, power float64, dtOf func(i int) float64) (float64, int) {
	g := scheduler.RecommendedGranularity(0, n)

	if power < mathx.MinimumPowerThreshold {
		local := sched.NewLocal(scheduler, argMin{dt: math.Inf(1), idx: -1})
		sched.LocalParallelFor(scheduler, local, 0, n, g, func(l *argMin, from, to int) {
			for i := from; i < to; i++ {
				if dt := dtOf(i); dt < l.dt {
					l.dt = dt
					l.idx = i
				}
			}
		})
		best := local.Accumulate(argMin{dt: math.Inf(1), idx: -1}, func(acc, v argMin) argMin {
			if v.dt < acc.dt {
				return v
			}
			return acc
		})
		return best.dt, best.idx
	}

	local := sched.NewLocalFunc(scheduler, func() mathx.Mean { return mathx.NewMean(power) })
	sched.LocalParallelFor(scheduler, local, 0, n, g, func(m *mathx.Mean, from, to int) {
		for i := from; i < to; i++ {
			if dt := dtOf(i); !math.IsInf(dt, 1) {
				m.Accumulate(dt)
			}
		}
	})
	total := mathx.NewMean(power)
	local.ForEach(func(m *mathx.Mean) { total.Merge(*m) })
	return total.Compute(), -1
}

// dumpSlices returns the per-particle timestep and cause buffers when
// step recording is enabled for the store.
func dumpSlices(store *storage.Storage) ([]float64, []int64) {
	if !store.Has(quantity.TimeStep) {
		return nil, nil
	}
	dts, err := storage.Value[float64](store, quantity.TimeStep)
	if err != nil {
		return nil, nil
	}
	causes, _ := storage.Value[int64](store, quantity.TimeStepCriterion)
	return dts, causes
}

// recordDump lowers the stored per-particle step where this criterion
// is stricter, tagging the cause.
func recordDump(dts []float64, causes []int64, i int, dt float64, cause Cause) {
	if dts == nil || dt >= dts[i] {
		return
	}
	dts[i] = dt
	if causes != nil {
		causes[i] = int64(cause)
	}
}
