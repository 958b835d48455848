package geometry

// SymmetricTensor stores the six independent components of a symmetric
// 3x3 tensor in the order xx, yy, zz, xy, xz, yz.
type SymmetricTensor [6]float64

// Identity returns the unit symmetric tensor.
func Identity() SymmetricTensor {
	return SymmetricTensor{1, 1, 1, 0, 0, 0}
}

func (t SymmetricTensor) Trace() float64 {
	return t[0] + t[1] + t[2]
}

func (t SymmetricTensor) Add(other SymmetricTensor) SymmetricTensor {
	for i := range t {
		t[i] += other[i]
	}
	return t
}

func (t SymmetricTensor) Scale(f float64) SymmetricTensor {
	for i := range t {
		t[i] *= f
	}
	return t
}

// TracelessTensor stores the five independent components of a
// symmetric traceless 3x3 tensor in the order xx, yy, xy, xz, yz.
// The zz component is implied: zz = -xx - yy.
type TracelessTensor [5]float64

func (t TracelessTensor) ZZ() float64 {
	return -t[0] - t[1]
}

func (t TracelessTensor) Add(other TracelessTensor) TracelessTensor {
	for i := range t {
		t[i] += other[i]
	}
	return t
}

func (t TracelessTensor) Scale(f float64) TracelessTensor {
	for i := range t {
		t[i] *= f
	}
	return t
}

// Tensor is a general 3x3 tensor in row-major order.
type Tensor [9]float64

func (t Tensor) Add(other Tensor) Tensor {
	for i := range t {
		t[i] += other[i]
	}
	return t
}

func (t Tensor) Scale(f float64) Tensor {
	for i := range t {
		t[i] *= f
	}
	return t
}

func (t Tensor) Trace() float64 {
	return t[0] + t[4] + t[8]
}
