package sim

import (
	"math"
	"math/rand/v2"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/storage"
)

const (
	cloudInnerRadius = 1.0
	cloudOuterRadius = 2.0
	cloudSmoothing   = 0.05
	centralMass      = 1.0
)

// NewOrbitCloud builds the reference initial condition: n light
// particles on randomized circular orbits around a unit-mass central
// attractor.
func NewOrbitCloud(n int, seed uint64) (*storage.Storage, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	positions := make([]geometry.Vector, n)
	for i := range positions {
		radius := cloudInnerRadius + rng.Float64()*(cloudOuterRadius-cloudInnerRadius)
		phi := 2 * math.Pi * rng.Float64()
		positions[i] = geometry.Vector{radius * math.Cos(phi), radius * math.Sin(phi), 0, cloudSmoothing}
	}

	mat := storage.NewNullMaterial()
	store := storage.NewWithMaterial(mat)
	q, err := storage.InsertValues(store, quantity.Position, quantity.OrderSecond, positions)
	if err != nil {
		return nil, err
	}
	v, err := quantity.Dts[geometry.Vector](q)
	if err != nil {
		return nil, err
	}
	for i := range v {
		r := positions[i]
		radius := r.Length()
		// tangential speed of a circular orbit around the central mass
		speed := math.Sqrt(centralMass / radius)
		v[i] = geometry.NewVector(-r[geometry.Y]/radius*speed, r[geometry.X]/radius*speed, 0)
	}

	if _, err := storage.Insert(store, quantity.Mass, quantity.OrderZero, 1e-9); err != nil {
		return nil, err
	}
	if err := storage.SetPersistentIndices(store); err != nil {
		return nil, err
	}

	store.AddAttractor(storage.Attractor{
		Mass:   centralMass,
		Radius: 0.1,
	})
	return store, nil
}
