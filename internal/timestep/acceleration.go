package timestep

import (
	"math"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/mathx"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// AccelerationCriterion bounds the step so no particle travels further
// than about its own smoothing length by acceleration alone,
// dt = (h^2 / |dv|^2)^(1/4).
type AccelerationCriterion struct {
	Power float64
}

func (c *AccelerationCriterion) Compute(scheduler sched.Scheduler, store *storage.Storage, maxStep float64, st *stats.Stats) (Result, error) {
	if !storage.HasConforming[geometry.Vector](store, quantity.Position, quantity.OrderSecond) {
		return Result{Dt: maxStep, Cause: CauseMaximal}, nil
	}
	r, err := storage.Value[geometry.Vector](store, quantity.Position)
	if err != nil {
		return Result{}, err
	}
	dv, err := storage.D2t[geometry.Vector](store, quantity.Position)
	if err != nil {
		return Result{}, err
	}
	dump, causes := dumpSlices(store)

	dt, idx := aggregate(scheduler, len(r), c.Power, func(i int) float64 {
		sqrA := dv[i].SqrLength()
		if sqrA <= mathx.Eps {
			return math.Inf(1)
		}
		value := math.Sqrt(math.Sqrt(r[i][geometry.H] * r[i][geometry.H] / sqrA))
		recordDump(dump, causes, i, value, CauseAcceleration)
		return value
	})
	if idx >= 0 {
		st.Set(stats.LimitingParticle, idx)
	}
	return capped(dt, CauseAcceleration, quantity.Position, maxStep), nil
}
