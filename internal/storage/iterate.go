package storage

import (
	"github.com/astroseed/gosph/internal/quantity"
)

// IterateBuffers visits every owned buffer of every quantity in
// ascending quantity order.
func IterateBuffers(s *Storage, fn func(id quantity.Id, deriv int, b quantity.Buffer)) {
	for _, id := range s.Ids() {
		q := s.quantities[id]
		for d := 0; d <= int(q.Order()); d++ {
			b, _ := q.Buffer(d)
			fn(id, d, b)
		}
	}
}

// IterateFirstOrder visits the (value, derivative) pair of every
// first-order quantity.
func IterateFirstOrder(s *Storage, fn func(id quantity.Id, v, dv quantity.Buffer)) {
	for _, id := range s.Ids() {
		q := s.quantities[id]
		if q.Order() != quantity.OrderFirst {
			continue
		}
		dv, _ := q.Dt()
		fn(id, q.Value(), dv)
	}
}

// IterateSecondOrder visits the (value, derivative, second derivative)
// triple of every second-order quantity.
func IterateSecondOrder(s *Storage, fn func(id quantity.Id, v, dv, d2v quantity.Buffer)) {
	for _, id := range s.Ids() {
		q := s.quantities[id]
		if q.Order() != quantity.OrderSecond {
			continue
		}
		dv, _ := q.Dt()
		d2v, _ := q.D2t()
		fn(id, q.Value(), dv, d2v)
	}
}

// IterateHighest visits the top derivative buffer of every quantity of
// at least first order.
func IterateHighest(s *Storage, fn func(id quantity.Id, b quantity.Buffer)) {
	for _, id := range s.Ids() {
		q := s.quantities[id]
		if top := q.HighestDerivative(); top != nil {
			fn(id, top)
		}
	}
}

// IteratePairFirstOrder visits matching first-order quantities of two
// stores holding the same quantity set.
func IteratePairFirstOrder(s, other *Storage, fn func(id quantity.Id, v, dv, ov, odv quantity.Buffer)) error {
	for _, id := range s.Ids() {
		q := s.quantities[id]
		if q.Order() != quantity.OrderFirst {
			continue
		}
		oq, ok := other.quantities[id]
		if !ok || oq.Order() != quantity.OrderFirst {
			return setupError("paired storage misses first-order quantity %q", id)
		}
		dv, _ := q.Dt()
		odv, _ := oq.Dt()
		fn(id, q.Value(), dv, oq.Value(), odv)
	}
	return nil
}

// IteratePairSecondOrder visits matching second-order quantities of
// two stores holding the same quantity set.
func IteratePairSecondOrder(s, other *Storage, fn func(id quantity.Id, v, dv, d2v, ov, odv, od2v quantity.Buffer)) error {
	for _, id := range s.Ids() {
		q := s.quantities[id]
		if q.Order() != quantity.OrderSecond {
			continue
		}
		oq, ok := other.quantities[id]
		if !ok || oq.Order() != quantity.OrderSecond {
			return setupError("paired storage misses second-order quantity %q", id)
		}
		dv, _ := q.Dt()
		d2v, _ := q.D2t()
		odv, _ := oq.Dt()
		od2v, _ := oq.D2t()
		fn(id, q.Value(), dv, d2v, oq.Value(), odv, od2v)
	}
	return nil
}

// IteratePairHighest visits matching top-derivative buffers of two
// stores holding the same quantity set.
func IteratePairHighest(s, other *Storage, fn func(id quantity.Id, b, ob quantity.Buffer)) error {
	for _, id := range s.Ids() {
		q := s.quantities[id]
		top := q.HighestDerivative()
		if top == nil {
			continue
		}
		oq, ok := other.quantities[id]
		if !ok || oq.Order() != q.Order() {
			return setupError("paired storage misses quantity %q of order %v", id, q.Order())
		}
		fn(id, top, oq.HighestDerivative())
	}
	return nil
}
