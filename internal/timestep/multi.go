package timestep

import (
	"math"

	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// MultiCriterion elects the strictest candidate of its children and
// damps the change against the previously elected step, keeping the
// step inside [last*(1-maxChange), last*(1+maxChange)].
type MultiCriterion struct {
	criteria  []Criterion
	maxChange float64
	lastDt    float64
}

// NewMultiCriterion combines the given criteria. maxChange bounds the
// relative step change between consecutive elections; +Inf disables
// the damping. initialDt seeds the damping envelope of the first
// election.
func NewMultiCriterion(maxChange, initialDt float64, criteria ...Criterion) *MultiCriterion {
	return &MultiCriterion{
		criteria:  criteria,
		maxChange: maxChange,
		lastDt:    initialDt,
	}
}

func (m *MultiCriterion) Compute(scheduler sched.Scheduler, store *storage.Storage, maxStep float64, st *stats.Stats) (Result, error) {
	best := Result{Dt: maxStep, Cause: CauseMaximal}
	for _, c := range m.criteria {
		r, err := c.Compute(scheduler, store, maxStep, st)
		if err != nil {
			return Result{}, err
		}
		if r.Dt < best.Dt {
			best = r
		}
	}

	if !math.IsInf(m.maxChange, 1) && m.lastDt > 0 {
		lo := m.lastDt * (1 - m.maxChange)
		hi := m.lastDt * (1 + m.maxChange)
		if best.Dt < lo {
			best.Dt = lo
		} else if best.Dt > hi {
			best.Dt = hi
		}
	}
	m.lastDt = best.Dt

	st.Set(stats.Timestep, best.Dt)
	st.Set(stats.TimestepCriterion, best.Cause.String())
	return best, nil
}
