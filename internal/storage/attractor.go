package storage

import "github.com/astroseed/gosph/internal/geometry"

// Attractor is a massive point body coupled to particles
// gravitationally. Attractors are not particles: they own no quantity
// slots and never enter SPH neighbour loops, but they contribute to
// centre-of-mass and bounding-box queries.
type Attractor struct {
	Position     geometry.Vector
	Velocity     geometry.Vector
	Acceleration geometry.Vector
	Mass         float64
	Radius       float64

	// Material is optional; attractors created from a collapsing body
	// keep its handle.
	Material Material
}
