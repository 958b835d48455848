// Package sim provides the reference solver and the run driver tying
// the store, scheduler, criteria and integrators together.
package sim

import (
	"fmt"
	"math"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/integrator"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// Solver extends the integration contract with quantity registration.
type Solver interface {
	integrator.Solver
	// Create registers the quantities the solver needs on the store.
	Create(store *storage.Storage, mat storage.Material) error
}

// GravitySolver couples particles to point-mass attractors and
// attractors to each other. Particles do not interact pairwise; the
// solver serves as the reference derivative producer for the
// integrators.
type GravitySolver struct {
	G         float64
	Softening float64
}

func NewGravitySolver(g, softening float64) *GravitySolver {
	return &GravitySolver{G: g, Softening: softening}
}

func (s *GravitySolver) Create(store *storage.Storage, _ storage.Material) error {
	if _, err := storage.Insert(store, quantity.Position, quantity.OrderSecond, geometry.Vector{}); err != nil {
		return err
	}
	_, err := storage.Insert(store, quantity.Mass, quantity.OrderZero, 0.0)
	return err
}

func (s *GravitySolver) Integrate(scheduler sched.Scheduler, store *storage.Storage, _ *stats.Stats) error {
	r, err := storage.Value[geometry.Vector](store, quantity.Position)
	if err != nil {
		return err
	}
	dv, err := storage.D2t[geometry.Vector](store, quantity.Position)
	if err != nil {
		return err
	}
	attrs := store.Attractors()
	soft2 := s.Softening * s.Softening

	bad := sched.NewLocal(scheduler, false)
	g := scheduler.RecommendedGranularity(0, len(r))
	sched.LocalParallelFor(scheduler, bad, 0, len(r), g, func(failed *bool, from, to int) {
		for i := from; i < to; i++ {
			for _, a := range attrs {
				delta := a.Position.Sub(r[i])
				d2 := delta.SqrLength() + soft2
				f := s.G * a.Mass / (d2 * math.Sqrt(d2))
				dv[i] = dv[i].AddScaled(delta, f)
			}
			if !dv[i].IsReal() {
				*failed = true
			}
		}
	})
	if bad.Accumulate(false, func(acc, v bool) bool { return acc || v }) {
		return fmt.Errorf("%w: non-finite particle acceleration", integrator.ErrCompute)
	}

	// attractors feel each other and the particles, so total momentum
	// stays conserved
	masses, _ := storage.Value[float64](store, quantity.Mass)
	for ai := range attrs {
		for aj := range attrs {
			if ai == aj {
				continue
			}
			delta := attrs[aj].Position.Sub(attrs[ai].Position)
			d2 := delta.SqrLength() + soft2
			f := s.G * attrs[aj].Mass / (d2 * math.Sqrt(d2))
			attrs[ai].Acceleration = attrs[ai].Acceleration.AddScaled(delta, f)
		}
		for i := range masses {
			delta := r[i].Sub(attrs[ai].Position)
			d2 := delta.SqrLength() + soft2
			f := s.G * masses[i] / (d2 * math.Sqrt(d2))
			attrs[ai].Acceleration = attrs[ai].Acceleration.AddScaled(delta, f)
		}
		if !attrs[ai].Acceleration.IsReal() {
			return fmt.Errorf("%w: non-finite attractor acceleration", integrator.ErrCompute)
		}
	}
	return nil
}
