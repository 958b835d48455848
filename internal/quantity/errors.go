package quantity

import "errors"

var (
	// ErrWrongKind indicates a typed access with an element type that
	// does not match the kind the quantity was created with.
	ErrWrongKind = errors.New("quantity: value kind mismatch")

	// ErrWrongOrder indicates a request for a derivative buffer the
	// quantity does not own, or an attempt to lower the order.
	ErrWrongOrder = errors.New("quantity: derivative order mismatch")

	// ErrSizeMismatch indicates an operation on buffers of different
	// particle counts.
	ErrSizeMismatch = errors.New("quantity: buffer size mismatch")
)
