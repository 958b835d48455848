package mathx

import "math"

// Interval is a closed range of real values. Lower may be -Inf and
// Upper +Inf; the unbounded interval contains everything.
type Interval struct {
	Lower float64
	Upper float64
}

func NewInterval(lower, upper float64) Interval {
	return Interval{Lower: lower, Upper: upper}
}

func Unbounded() Interval {
	return Interval{Lower: math.Inf(-1), Upper: math.Inf(1)}
}

func (i Interval) IsUnbounded() bool {
	return math.IsInf(i.Lower, -1) && math.IsInf(i.Upper, 1)
}

func (i Interval) Contains(v float64) bool {
	return v >= i.Lower && v <= i.Upper
}

// Clamp projects v into the interval.
func (i Interval) Clamp(v float64) float64 {
	return math.Max(i.Lower, math.Min(i.Upper, v))
}

func (i Interval) Size() float64 {
	return i.Upper - i.Lower
}
