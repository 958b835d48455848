package mathx

import "math"

// Eps is the tolerance guarding divisions by near-zero derivatives.
const Eps = 1e-50

// Large is a stand-in for an effectively infinite time step.
const Large = 1e20

// MinimumPowerThreshold is the generalized-mean power below which the
// aggregation degenerates to a strict minimum.
const MinimumPowerThreshold = -1000

// Mean accumulates a generalized (power) mean M_p(x) = (mean x^p)^(1/p).
// For strongly negative powers it approximates the minimum while
// staying smooth under small perturbations of the input set.
type Mean struct {
	power  float64
	sum    float64
	weight int
}

func NewMean(power float64) Mean {
	return Mean{power: power}
}

func (m *Mean) Accumulate(value float64) {
	m.sum += math.Pow(value, m.power)
	m.weight++
}

// Merge adds the samples of another mean with the same power.
func (m *Mean) Merge(other Mean) {
	m.sum += other.sum
	m.weight += other.weight
}

func (m *Mean) Count() int {
	return m.weight
}

func (m *Mean) Compute() float64 {
	if m.weight == 0 {
		return math.Inf(1)
	}
	return math.Pow(m.sum/float64(m.weight), 1/m.power)
}

func (m *Mean) Reset() {
	m.sum = 0
	m.weight = 0
}
