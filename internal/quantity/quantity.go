package quantity

import (
	"github.com/astroseed/gosph/internal/mathx"
)

// Selection picks a subset of a quantity's buffers for clone and swap
// operations.
type Selection uint8

const (
	// AllBuffers selects the value buffer and every owned derivative.
	AllBuffers Selection = 1 << iota
	// StateValues selects everything except the highest derivative of
	// first- and second-order quantities; zero-order quantities
	// contribute their values.
	StateValues
	// HighestDerivatives selects the top derivative of first- and
	// second-order quantities. Zero-order quantities contribute
	// nothing.
	HighestDerivatives
)

func (sel Selection) selects(order Order, deriv int) bool {
	if sel&AllBuffers != 0 {
		return true
	}
	if sel&HighestDerivatives != 0 && order >= OrderFirst && deriv == int(order) {
		return true
	}
	if sel&StateValues != 0 {
		if order == OrderZero {
			return deriv == 0
		}
		return deriv < int(order)
	}
	return false
}

// Quantity is a typed buffer triple: value, first derivative, second
// derivative. The order states how many derivative buffers are
// populated; kind and order are immutable after creation except that
// the order may grow.
type Quantity struct {
	kind  Kind
	order Order
	bufs  [3]Buffer
}

// Make constructs a quantity of n particles with every element set to
// def; derivative buffers are zeroed.
func Make[T Element](order Order, def T, n int) *Quantity {
	q := &Quantity{kind: kindOf[T](), order: order}
	q.bufs[0] = filledBuffer(n, def)
	for d := 1; d <= int(order); d++ {
		q.bufs[d] = newBuffer[T](n)
	}
	return q
}

// FromValues constructs a quantity adopting the given values buffer;
// derivative buffers are zeroed.
func FromValues[T Element](order Order, values []T) *Quantity {
	q := &Quantity{kind: kindOf[T](), order: order}
	q.bufs[0] = bufferOf(values)
	for d := 1; d <= int(order); d++ {
		q.bufs[d] = newBuffer[T](len(values))
	}
	return q
}

func (q *Quantity) Kind() Kind {
	return q.kind
}

func (q *Quantity) Order() Order {
	return q.order
}

// Len returns the particle count of the value buffer.
func (q *Quantity) Len() int {
	return q.bufs[0].Len()
}

// Value returns the value buffer. It is always owned.
func (q *Quantity) Value() Buffer {
	return q.bufs[0]
}

// Dt returns the first-derivative buffer, failing for zero-order
// quantities.
func (q *Quantity) Dt() (Buffer, error) {
	if q.order < OrderFirst {
		return nil, ErrWrongOrder
	}
	return q.bufs[1], nil
}

// D2t returns the second-derivative buffer, failing below second
// order.
func (q *Quantity) D2t() (Buffer, error) {
	if q.order < OrderSecond {
		return nil, ErrWrongOrder
	}
	return q.bufs[2], nil
}

// Buffer returns the buffer holding the given derivative.
func (q *Quantity) Buffer(deriv int) (Buffer, error) {
	if deriv < 0 || deriv > int(q.order) {
		return nil, ErrWrongOrder
	}
	return q.bufs[deriv], nil
}

// HighestDerivative returns the top owned derivative buffer, or nil
// for zero-order quantities.
func (q *Quantity) HighestDerivative() Buffer {
	if q.order == OrderZero {
		return nil
	}
	return q.bufs[q.order]
}

// SetOrder grows the derivative chain, allocating zeroed buffers for
// the new derivatives. Lowering the order fails.
func (q *Quantity) SetOrder(order Order) error {
	if order < q.order {
		return ErrWrongOrder
	}
	n := q.Len()
	for d := int(q.order) + 1; d <= int(order); d++ {
		q.bufs[d] = q.bufs[0].CloneZeros(n)
	}
	q.order = order
	return nil
}

// Clone reproduces the quantity, preserving kind and order. Buffers
// outside the selection are replaced by zero-length placeholders;
// that state is legal only immediately after the clone and must not
// persist across structural operations.
func (q *Quantity) Clone(sel Selection) *Quantity {
	c := &Quantity{kind: q.kind, order: q.order}
	for d := 0; d <= int(q.order); d++ {
		if sel.selects(q.order, d) {
			c.bufs[d] = q.bufs[d].Clone()
		} else {
			c.bufs[d] = q.bufs[d].CloneEmpty()
		}
	}
	return c
}

// CloneZeros returns a quantity of the same kind and order with all
// buffers zeroed and sized to n particles.
func (q *Quantity) CloneZeros(n int) *Quantity {
	c := &Quantity{kind: q.kind, order: q.order}
	for d := 0; d <= int(q.order); d++ {
		c.bufs[d] = q.bufs[0].CloneZeros(n)
	}
	return c
}

// Swap exchanges the buffers matching the selection. Kind and order
// must agree.
func (q *Quantity) Swap(other *Quantity, sel Selection) error {
	if q.kind != other.kind {
		return ErrWrongKind
	}
	if q.order != other.order {
		return ErrWrongOrder
	}
	for d := 0; d <= int(q.order); d++ {
		if sel.selects(q.order, d) {
			if err := q.bufs[d].Swap(other.bufs[d]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clamp projects the values of particles [from, to) into rng. When a
// component saturates, the matching component of the first derivative
// is zeroed: a value pinned to the wall has no further drift at first
// order.
func (q *Quantity) Clamp(from, to int, rng mathx.Interval) {
	var dv Buffer
	if q.order >= OrderFirst {
		dv = q.bufs[1]
	}
	q.bufs[0].Clamp(from, to, rng, dv)
}

// SetValues replaces the value buffer, adopting the given slice. The
// element type must match the quantity's kind; derivative buffers are
// untouched and must be resized separately when the length changes.
func SetValues[T Element](q *Quantity, values []T) error {
	if kindOf[T]() != q.kind {
		return ErrWrongKind
	}
	q.bufs[0] = bufferOf(values)
	return nil
}

// Values returns the typed value slice.
func Values[T Element](q *Quantity) ([]T, error) {
	return Data[T](q.bufs[0])
}

// Dts returns the typed first-derivative slice.
func Dts[T Element](q *Quantity) ([]T, error) {
	b, err := q.Dt()
	if err != nil {
		return nil, err
	}
	return Data[T](b)
}

// D2ts returns the typed second-derivative slice.
func D2ts[T Element](q *Quantity) ([]T, error) {
	b, err := q.D2t()
	if err != nil {
		return nil, err
	}
	return Data[T](b)
}

// All returns the typed views of every owned buffer, sized to the
// quantity's order.
func All[T Element](q *Quantity) ([][]T, error) {
	out := make([][]T, 0, int(q.order)+1)
	for d := 0; d <= int(q.order); d++ {
		s, err := Data[T](q.bufs[d])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
