// Package integrals observes conserved quantities of the particle
// system over a run. Observers accumulate nothing between particles,
// so one Observe call reflects exactly one store state.
package integrals

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/storage"
)

// Integral is one diagnostic over the store, in the Observe/Value
// observer shape.
type Integral interface {
	Name() string
	Observe(store *storage.Storage, t float64)
	Value() float64
	Reset()
}

// TotalMass sums particle and attractor masses.
type TotalMass struct {
	value float64
}

func NewTotalMass() *TotalMass { return &TotalMass{} }

func (m *TotalMass) Name() string { return "total_mass" }

func (m *TotalMass) Observe(store *storage.Storage, _ float64) {
	m.value = 0
	if masses, err := storage.Value[float64](store, quantity.Mass); err == nil {
		m.value = floats.Sum(masses)
	}
	for _, a := range store.Attractors() {
		m.value += a.Mass
	}
}

func (m *TotalMass) Value() float64 { return m.value }

func (m *TotalMass) Reset() { m.value = 0 }

// TotalMomentum sums m*v over particles and attractors; Value reports
// the magnitude.
type TotalMomentum struct {
	p geometry.Vector
}

func NewTotalMomentum() *TotalMomentum { return &TotalMomentum{} }

func (m *TotalMomentum) Name() string { return "total_momentum" }

func (m *TotalMomentum) Observe(store *storage.Storage, _ float64) {
	m.p = geometry.Vector{}
	masses, err := storage.Value[float64](store, quantity.Mass)
	if err == nil {
		if v, err := storage.Dt[geometry.Vector](store, quantity.Position); err == nil {
			for i := range masses {
				m.p = m.p.AddScaled(v[i], masses[i])
			}
		}
	}
	for _, a := range store.Attractors() {
		m.p = m.p.AddScaled(a.Velocity, a.Mass)
	}
	m.p = m.p.ClearH()
}

func (m *TotalMomentum) Value() float64 { return m.p.Length() }

// Components returns the momentum vector.
func (m *TotalMomentum) Components() geometry.Vector { return m.p }

func (m *TotalMomentum) Reset() { m.p = geometry.Vector{} }

// KineticEnergy sums m*v^2/2 over particles and attractors.
type KineticEnergy struct {
	value float64
}

func NewKineticEnergy() *KineticEnergy { return &KineticEnergy{} }

func (e *KineticEnergy) Name() string { return "kinetic_energy" }

func (e *KineticEnergy) Observe(store *storage.Storage, _ float64) {
	e.value = 0
	masses, err := storage.Value[float64](store, quantity.Mass)
	if err == nil {
		if v, err := storage.Dt[geometry.Vector](store, quantity.Position); err == nil {
			for i := range masses {
				e.value += 0.5 * masses[i] * v[i].SqrLength()
			}
		}
	}
	for _, a := range store.Attractors() {
		e.value += 0.5 * a.Mass * a.Velocity.SqrLength()
	}
	if math.IsNaN(e.value) {
		e.value = math.Inf(1)
	}
}

func (e *KineticEnergy) Value() float64 { return e.value }

func (e *KineticEnergy) Reset() { e.value = 0 }
