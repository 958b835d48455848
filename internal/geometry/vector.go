package geometry

import "math"

// Lane indices of a Vector. The fourth lane carries the smoothing
// length by SPH convention; spatial arithmetic must not touch it
// unless it says so.
const (
	X = iota
	Y
	Z
	H
)

// Vector is a spatial 3-vector with an extra lane for the smoothing
// length.
type Vector [4]float64

func NewVector(x, y, z float64) Vector {
	return Vector{x, y, z, 0}
}

// Spread returns a vector with all spatial lanes set to v. The H lane
// is set as well; used for isotropic extents.
func Spread(v float64) Vector {
	return Vector{v, v, v, v}
}

func (v Vector) Add(other Vector) Vector {
	return Vector{v[X] + other[X], v[Y] + other[Y], v[Z] + other[Z], v[H]}
}

func (v Vector) Sub(other Vector) Vector {
	return Vector{v[X] - other[X], v[Y] - other[Y], v[Z] - other[Z], v[H]}
}

func (v Vector) Scale(f float64) Vector {
	return Vector{v[X] * f, v[Y] * f, v[Z] * f, v[H]}
}

// AddScaled returns v + f*other on the spatial lanes, keeping v's H.
func (v Vector) AddScaled(other Vector, f float64) Vector {
	return Vector{v[X] + f*other[X], v[Y] + f*other[Y], v[Z] + f*other[Z], v[H]}
}

func (v Vector) Dot(other Vector) float64 {
	return v[X]*other[X] + v[Y]*other[Y] + v[Z]*other[Z]
}

// SqrLength is the squared spatial length; H is excluded.
func (v Vector) SqrLength() float64 {
	return v.Dot(v)
}

func (v Vector) Length() float64 {
	return math.Sqrt(v.SqrLength())
}

// ClearH returns the vector with the smoothing-length lane zeroed.
func (v Vector) ClearH() Vector {
	v[H] = 0
	return v
}

func (v Vector) IsReal() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
