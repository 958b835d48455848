package storage

import (
	"github.com/astroseed/gosph/internal/quantity"
)

// HasConforming reports the presence of a quantity with at least the
// given order and the kind matching T.
func HasConforming[T quantity.Element](s *Storage, id quantity.Id, order quantity.Order) bool {
	q, ok := s.quantities[id]
	return ok && q.Kind() == quantity.KindFor[T]() && q.Order() >= order
}

// Insert creates a quantity with every particle set to def. When the
// quantity already exists, the kind must match and the order may only
// be raised; the stored values are kept. The first inserted quantity of
// a store with materials also creates the material-id quantity and
// widens the partition to cover all particles.
func Insert[T quantity.Element](s *Storage, id quantity.Id, order quantity.Order, def T) (*quantity.Quantity, error) {
	if q, ok := s.quantities[id]; ok {
		if q.Kind() != quantity.KindFor[T]() {
			return nil, accessError("inserting quantity %q with mismatched kind %v", id, quantity.KindFor[T]())
		}
		if q.Order() < order {
			_ = q.SetOrder(order)
		}
		return q, nil
	}
	n := s.ParticleCount()
	if n == 0 {
		return nil, setupError("cannot insert %q by default value into an empty storage", id)
	}
	q := quantity.Make(order, def, n)
	s.quantities[id] = q
	s.bootstrapMaterialId(id, n)
	return q, nil
}

// InsertValues creates a quantity adopting the given values, which
// must match the particle count of a non-empty store. An existing
// quantity keeps its derivatives, has its order raised when needed and
// its values replaced.
func InsertValues[T quantity.Element](s *Storage, id quantity.Id, order quantity.Order, values []T) (*quantity.Quantity, error) {
	if q, ok := s.quantities[id]; ok {
		if q.Kind() != quantity.KindFor[T]() {
			return nil, accessError("inserting quantity %q with mismatched kind %v", id, quantity.KindFor[T]())
		}
		if len(values) != s.ParticleCount() {
			return nil, setupError("inserting %q with %d values into a storage of %d particles", id, len(values), s.ParticleCount())
		}
		if q.Order() < order {
			_ = q.SetOrder(order)
		}
		if err := quantity.SetValues(q, values); err != nil {
			return nil, err
		}
		if id == quantity.MaterialId {
			s.update()
		}
		return q, nil
	}
	if s.QuantityCount() > 0 && len(values) != s.ParticleCount() {
		return nil, setupError("inserting %q with %d values into a storage of %d particles", id, len(values), s.ParticleCount())
	}
	q := quantity.FromValues(order, values)
	s.quantities[id] = q
	s.bootstrapMaterialId(id, len(values))
	if id == quantity.MaterialId {
		s.update()
	}
	return q, nil
}

// bootstrapMaterialId runs after the first quantity of a store with
// materials: the partition widens to all particles and the material-id
// quantity comes to life.
func (s *Storage) bootstrapMaterialId(inserted quantity.Id, n int) {
	if s.QuantityCount() != 1 || s.MaterialCount() == 0 || inserted == quantity.MaterialId {
		return
	}
	s.quantities[quantity.MaterialId] = quantity.Make[int64](quantity.OrderZero, 0, n)
	s.mats[0].from = 0
	s.mats[0].to = n
	s.update()
}

// Value returns the typed value slice of a quantity.
func Value[T quantity.Element](s *Storage, id quantity.Id) ([]T, error) {
	q, err := s.Quantity(id)
	if err != nil {
		return nil, err
	}
	return quantity.Values[T](q)
}

// Dt returns the typed first-derivative slice of a quantity.
func Dt[T quantity.Element](s *Storage, id quantity.Id) ([]T, error) {
	q, err := s.Quantity(id)
	if err != nil {
		return nil, err
	}
	return quantity.Dts[T](q)
}

// D2t returns the typed second-derivative slice of a quantity.
func D2t[T quantity.Element](s *Storage, id quantity.Id) ([]T, error) {
	q, err := s.Quantity(id)
	if err != nil {
		return nil, err
	}
	return quantity.D2ts[T](q)
}

// AllOf returns the typed views of every owned buffer of a quantity.
func AllOf[T quantity.Element](s *Storage, id quantity.Id) ([][]T, error) {
	q, err := s.Quantity(id)
	if err != nil {
		return nil, err
	}
	return quantity.All[T](q)
}
