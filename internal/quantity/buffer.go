package quantity

import (
	"slices"
	"unsafe"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/mathx"
)

// Element enumerates the concrete element types a buffer may hold.
// All float kinds are plain arrays of float64, so a buffer can expose
// a flat component view without copying.
type Element interface {
	float64 | int64 | geometry.Vector | geometry.SymmetricTensor | geometry.TracelessTensor | geometry.Tensor
}

func kindOf[T Element]() Kind {
	switch any(*new(T)).(type) {
	case float64:
		return KindScalar
	case int64:
		return KindIndex
	case geometry.Vector:
		return KindVector
	case geometry.SymmetricTensor:
		return KindSymmetricTensor
	case geometry.TracelessTensor:
		return KindTracelessTensor
	case geometry.Tensor:
		return KindTensor
	default:
		panic("quantity: element type outside the constraint")
	}
}

// KindFor returns the value kind storing elements of type T.
func KindFor[T Element]() Kind {
	return kindOf[T]()
}

// Buffer is a type-erased, equally sized array of elements. The store
// keeps one buffer per owned derivative of every quantity.
//
// Float-kind buffers expose a flat per-component view via Floats;
// index buffers via Ints. Structural operations (Resize, Remove,
// InsertCopies, Append) may invalidate previously obtained views.
type Buffer interface {
	Kind() Kind
	Len() int

	// Floats returns the flat component view (length Len*Lanes), or
	// nil for index buffers.
	Floats() []float64
	// Ints returns the element view of an index buffer, or nil for
	// float kinds.
	Ints() []int64

	Zero()
	Resize(n int)
	Clone() Buffer
	// CloneEmpty returns a zero-length placeholder of the same kind.
	// The placeholder state is legal only immediately after a
	// selective clone.
	CloneEmpty() Buffer
	CloneZeros(n int) Buffer

	Append(other Buffer) error
	// Remove erases the elements at the given sorted indices.
	Remove(sorted []int)
	// InsertCopies inserts copies of the elements at idxs before
	// position at, in the order given.
	InsertCopies(at int, idxs []int)
	Swap(other Buffer) error

	// AXPY adds a*x element-wise; both buffers must hold the same
	// float kind and length. Integer buffers reject the operation.
	AXPY(a float64, x Buffer) error
	// Clamp projects the components of particles [from, to) into rng.
	// Saturated components zero the matching component of dv, when
	// given. No-op for index buffers.
	Clamp(from, to int, rng mathx.Interval, dv Buffer)
}

type buf[T Element] struct {
	kind Kind
	data []T
}

func newBuffer[T Element](n int) *buf[T] {
	return &buf[T]{kind: kindOf[T](), data: make([]T, n)}
}

func filledBuffer[T Element](n int, def T) *buf[T] {
	b := newBuffer[T](n)
	for i := range b.data {
		b.data[i] = def
	}
	return b
}

func bufferOf[T Element](values []T) *buf[T] {
	return &buf[T]{kind: kindOf[T](), data: values}
}

func (b *buf[T]) Kind() Kind {
	return b.kind
}

func (b *buf[T]) Len() int {
	return len(b.data)
}

func (b *buf[T]) Floats() []float64 {
	if b.kind == KindIndex || len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b.data[0])), len(b.data)*b.kind.Lanes())
}

func (b *buf[T]) Ints() []int64 {
	if b.kind != KindIndex || len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&b.data[0])), len(b.data))
}

func (b *buf[T]) Zero() {
	clear(b.data)
}

func (b *buf[T]) Resize(n int) {
	if n <= len(b.data) {
		b.data = b.data[:n]
		return
	}
	b.data = append(b.data, make([]T, n-len(b.data))...)
}

func (b *buf[T]) Clone() Buffer {
	return &buf[T]{kind: b.kind, data: slices.Clone(b.data)}
}

func (b *buf[T]) CloneEmpty() Buffer {
	return &buf[T]{kind: b.kind}
}

func (b *buf[T]) CloneZeros(n int) Buffer {
	return &buf[T]{kind: b.kind, data: make([]T, n)}
}

func (b *buf[T]) Append(other Buffer) error {
	o, ok := other.(*buf[T])
	if !ok {
		return ErrWrongKind
	}
	b.data = append(b.data, o.data...)
	return nil
}

func (b *buf[T]) Remove(sorted []int) {
	if len(sorted) == 0 {
		return
	}
	out := b.data[:0]
	k := 0
	for i := range b.data {
		if k < len(sorted) && sorted[k] == i {
			k++
			continue
		}
		out = append(out, b.data[i])
	}
	b.data = out
}

func (b *buf[T]) InsertCopies(at int, idxs []int) {
	dups := make([]T, 0, len(idxs))
	for _, i := range idxs {
		dups = append(dups, b.data[i])
	}
	b.data = slices.Insert(b.data, at, dups...)
}

func (b *buf[T]) Swap(other Buffer) error {
	o, ok := other.(*buf[T])
	if !ok {
		return ErrWrongKind
	}
	b.data, o.data = o.data, b.data
	return nil
}

func (b *buf[T]) AXPY(a float64, x Buffer) error {
	if b.kind == KindIndex {
		return ErrWrongKind
	}
	if x.Kind() != b.kind {
		return ErrWrongKind
	}
	if x.Len() != b.Len() {
		return ErrSizeMismatch
	}
	y := b.Floats()
	xs := x.Floats()
	for i := range y {
		y[i] += a * xs[i]
	}
	return nil
}

func (b *buf[T]) Clamp(from, to int, rng mathx.Interval, dv Buffer) {
	if b.kind == KindIndex || rng.IsUnbounded() {
		return
	}
	lanes := b.kind.Lanes()
	vals := b.Floats()
	var ds []float64
	if dv != nil {
		ds = dv.Floats()
	}
	for c := from * lanes; c < to*lanes; c++ {
		v := vals[c]
		if v < rng.Lower {
			vals[c] = rng.Lower
		} else if v > rng.Upper {
			vals[c] = rng.Upper
		} else {
			continue
		}
		if ds != nil {
			ds[c] = 0
		}
	}
}

// Data returns the typed element slice of a buffer, failing when the
// element type does not match the buffer's kind.
func Data[T Element](b Buffer) ([]T, error) {
	tb, ok := b.(*buf[T])
	if !ok {
		return nil, ErrWrongKind
	}
	return tb.data, nil
}
