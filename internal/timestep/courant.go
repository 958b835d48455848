package timestep

import (
	"math"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// CourantCriterion bounds the step so sound waves cannot cross a
// smoothing kernel within one iteration.
type CourantCriterion struct {
	// Factor is the Courant number, conventionally well below one.
	Factor float64
	// Power selects the aggregation of per-particle candidates.
	Power float64
}

func (c *CourantCriterion) Compute(scheduler sched.Scheduler, store *storage.Storage, maxStep float64, st *stats.Stats) (Result, error) {
	if !store.Has(quantity.SoundSpeed) || !store.Has(quantity.Position) {
		return Result{Dt: maxStep, Cause: CauseMaximal}, nil
	}
	r, err := storage.Value[geometry.Vector](store, quantity.Position)
	if err != nil {
		return Result{}, err
	}
	cs, err := storage.Value[float64](store, quantity.SoundSpeed)
	if err != nil {
		return Result{}, err
	}
	dump, causes := dumpSlices(store)

	dt, idx := aggregate(scheduler, len(r), c.Power, func(i int) float64 {
		if cs[i] <= 0 {
			return math.Inf(1)
		}
		value := c.Factor * r[i][geometry.H] / cs[i]
		recordDump(dump, causes, i, value, CauseCfl)
		return value
	})
	if idx >= 0 {
		st.Set(stats.LimitingParticle, idx)
	}
	return capped(dt, CauseCfl, quantity.Position, maxStep), nil
}
