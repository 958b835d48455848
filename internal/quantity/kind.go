package quantity

// Kind is the static value category of a quantity's elements. Each
// quantity commits to exactly one kind at creation. The integer values
// are part of the snapshot format.
type Kind uint32

const (
	KindScalar Kind = iota
	KindVector
	KindSymmetricTensor
	KindTracelessTensor
	KindTensor
	KindIndex

	kindCount
)

// Lanes returns the number of float64 components of one element.
// Vectors serialize four lanes, symmetric tensors six, traceless
// tensors five, full tensors nine.
func (k Kind) Lanes() int {
	switch k {
	case KindScalar, KindIndex:
		return 1
	case KindVector:
		return 4
	case KindSymmetricTensor:
		return 6
	case KindTracelessTensor:
		return 5
	case KindTensor:
		return 9
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	case KindSymmetricTensor:
		return "symmetric tensor"
	case KindTracelessTensor:
		return "traceless tensor"
	case KindTensor:
		return "tensor"
	case KindIndex:
		return "index"
	default:
		return "unknown"
	}
}

func (k Kind) Valid() bool {
	return k < kindCount
}

// Order is the number of derivative buffers a quantity owns.
type Order uint32

const (
	// OrderZero quantities hold values only (e.g. mass).
	OrderZero Order = iota
	// OrderFirst quantities are evolved by their first derivative
	// (e.g. specific energy).
	OrderFirst
	// OrderSecond quantities are evolved by both derivatives
	// (positions).
	OrderSecond
)

func (o Order) String() string {
	switch o {
	case OrderZero:
		return "zero"
	case OrderFirst:
		return "first"
	case OrderSecond:
		return "second"
	default:
		return "unknown"
	}
}

func (o Order) Valid() bool {
	return o <= OrderSecond
}
