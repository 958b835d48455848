package timestep

import (
	"math"

	"github.com/astroseed/gosph/internal/mathx"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// DerivativeCriterion bounds the step by the relative rate of change
// of every first-order quantity, dt = factor * (|v| + minimal) /
// (|dv| + eps) per component. The per-material minimal value keeps
// noise in near-zero components from collapsing the step; components
// below twice the minimal are skipped entirely.
type DerivativeCriterion struct {
	Factor float64
	Power  float64
}

type limit struct {
	dt         float64
	particle   int
	value      float64
	derivative float64
}

func (c *DerivativeCriterion) Compute(scheduler sched.Scheduler, store *storage.Storage, maxStep float64, st *stats.Stats) (Result, error) {
	strict := c.Power < mathx.MinimumPowerThreshold
	dump, dumpCauses := dumpSlices(store)

	best := Result{Dt: math.Inf(1), Cause: CauseDerivative}
	bestLimit := limit{dt: math.Inf(1), particle: -1}
	haveLimit := false

	for _, id := range store.Ids() {
		q, err := store.Quantity(id)
		if err != nil {
			return Result{}, err
		}
		if q.Order() != quantity.OrderFirst || q.Kind() == quantity.KindIndex {
			continue
		}
		dvBuf, err := q.Dt()
		if err != nil {
			return Result{}, err
		}
		vals := q.Value().Floats()
		dts := dvBuf.Floats()
		lanes := q.Kind().Lanes()

		qMean := mathx.NewMean(c.Power)
		qLimit := limit{dt: math.Inf(1), particle: -1}

		for _, view := range materialViews(store) {
			minimal := 0.0
			if view.Material != nil {
				minimal = view.Material.Minimal(id)
			}
			from, to := view.From*lanes, view.To*lanes
			g := scheduler.RecommendedGranularity(from, to)

			candidate := func(comp int) float64 {
				v := math.Abs(vals[comp])
				if v < 2*minimal {
					return math.Inf(1)
				}
				dv := math.Abs(dts[comp])
				value := c.Factor * (v + minimal) / (dv + mathx.Eps)
				recordDump(dump, dumpCauses, comp/lanes, value, CauseDerivative)
				return value
			}

			if strict {
				local := sched.NewLocal(scheduler, limit{dt: math.Inf(1), particle: -1})
				sched.LocalParallelFor(scheduler, local, from, to, g, func(l *limit, n0, n1 int) {
					for comp := n0; comp < n1; comp++ {
						if dt := candidate(comp); dt < l.dt {
							*l = limit{dt: dt, particle: comp / lanes, value: math.Abs(vals[comp]), derivative: math.Abs(dts[comp])}
						}
					}
				})
				qLimit = local.Accumulate(qLimit, func(acc, v limit) limit {
					if v.dt < acc.dt {
						return v
					}
					return acc
				})
			} else {
				local := sched.NewLocalFunc(scheduler, func() mathx.Mean { return mathx.NewMean(c.Power) })
				sched.LocalParallelFor(scheduler, local, from, to, g, func(m *mathx.Mean, n0, n1 int) {
					for comp := n0; comp < n1; comp++ {
						if dt := candidate(comp); !math.IsInf(dt, 1) {
							m.Accumulate(dt)
						}
					}
				})
				local.ForEach(func(m *mathx.Mean) { qMean.Merge(*m) })
			}
		}

		var dtQ float64
		if strict {
			dtQ = qLimit.dt
		} else {
			dtQ = qMean.Compute()
		}
		if dtQ < best.Dt {
			best = Result{Dt: dtQ, Cause: CauseDerivative, Quantity: id}
			if strict && qLimit.particle >= 0 {
				bestLimit = qLimit
				haveLimit = true
			}
		}
	}

	if haveLimit {
		st.Set(stats.LimitingParticle, bestLimit.particle)
		st.Set(stats.LimitingQuantity, best.Quantity)
		st.Set(stats.LimitingValue, bestLimit.value)
		st.Set(stats.LimitingDerivative, bestLimit.derivative)
	}
	return capped(best.Dt, best.Cause, best.Quantity, maxStep), nil
}

// materialViews returns the material partitions, or a single anonymous
// view covering all particles for a store without materials.
func materialViews(store *storage.Storage) []storage.MaterialView {
	if store.MaterialCount() == 0 {
		return []storage.MaterialView{{From: 0, To: store.ParticleCount()}}
	}
	views := make([]storage.MaterialView, 0, store.MaterialCount())
	for matId := 0; matId < store.MaterialCount(); matId++ {
		view, _ := store.Material(matId)
		views = append(views, view)
	}
	return views
}
