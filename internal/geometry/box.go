package geometry

import "math"

// Box is an axis-aligned bounding box. The zero value is empty and
// extends to nothing.
type Box struct {
	Lower Vector
	Upper Vector
	empty bool
}

func EmptyBox() Box {
	return Box{
		Lower: Spread(math.Inf(1)),
		Upper: Spread(math.Inf(-1)),
		empty: true,
	}
}

func (b *Box) Extend(v Vector) {
	b.empty = false
	for i := X; i <= Z; i++ {
		b.Lower[i] = math.Min(b.Lower[i], v[i])
		b.Upper[i] = math.Max(b.Upper[i], v[i])
	}
}

func (b *Box) IsEmpty() bool {
	return b.empty
}

func (b *Box) Size() Vector {
	if b.empty {
		return Vector{}
	}
	return b.Upper.Sub(b.Lower)
}

func (b *Box) Center() Vector {
	return b.Lower.Add(b.Upper).Scale(0.5)
}
