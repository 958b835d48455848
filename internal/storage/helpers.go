package storage

import (
	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/quantity"
)

// BoundingBox returns the box enclosing all particles, each inflated
// by radius times its smoothing length, together with the attractor
// spheres.
func BoundingBox(s *Storage, radius float64) (geometry.Box, error) {
	box := geometry.EmptyBox()
	if s.Has(quantity.Position) {
		r, err := Value[geometry.Vector](s, quantity.Position)
		if err != nil {
			return box, err
		}
		for i := range r {
			h := radius * r[i][geometry.H]
			box.Extend(r[i].Add(geometry.Spread(h)))
			box.Extend(r[i].Sub(geometry.Spread(h)))
		}
	}
	for _, a := range s.attractors {
		box.Extend(a.Position.Add(geometry.Spread(a.Radius)))
		box.Extend(a.Position.Sub(geometry.Spread(a.Radius)))
	}
	return box, nil
}

// CenterOfMass returns the mass-weighted centroid of particles and
// attractors, the zero vector for a massless system.
func CenterOfMass(s *Storage) (geometry.Vector, error) {
	var com geometry.Vector
	var mass float64
	if s.Has(quantity.Mass) && s.Has(quantity.Position) {
		m, err := Value[float64](s, quantity.Mass)
		if err != nil {
			return com, err
		}
		r, err := Value[geometry.Vector](s, quantity.Position)
		if err != nil {
			return com, err
		}
		for i := range r {
			com = com.AddScaled(r[i], m[i])
			mass += m[i]
		}
	}
	for _, a := range s.attractors {
		com = com.AddScaled(a.Position, a.Mass)
		mass += a.Mass
	}
	if mass == 0 {
		return geometry.Vector{}, nil
	}
	return com.Scale(1 / mass).ClearH(), nil
}

// SetPersistentIndices assigns the identity indexing [0, N) to all
// particles, creating the persistent-index quantity when absent.
// Existing indices are overwritten.
func SetPersistentIndices(s *Storage) error {
	idxs := make([]int64, s.ParticleCount())
	for i := range idxs {
		idxs[i] = int64(i)
	}
	_, err := InsertValues(s, quantity.PersistentIndex, quantity.OrderZero, idxs)
	return err
}
