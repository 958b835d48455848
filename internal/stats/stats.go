// Package stats carries run diagnostics between the integrator, the
// timestep criteria and the outer run loop as a typed key-value bag.
package stats

// Id identifies one diagnostic entry.
type Id uint32

const (
	// RunTime is the current simulation time.
	RunTime Id = iota
	// Timestep is the step value selected for the next iteration.
	Timestep
	// TimestepCriterion names the criterion that won the step election.
	TimestepCriterion
	// LimitingParticle is the index of the particle that forced the
	// step, present only when a criterion ran in strict-minimum mode.
	LimitingParticle
	// LimitingQuantity is the quantity the limiting particle tripped.
	LimitingQuantity
	// LimitingValue is the limiting particle's quantity value.
	LimitingValue
	// LimitingDerivative is the limiting particle's derivative value.
	LimitingDerivative
	// WallclockTime is the elapsed real time of the run.
	WallclockTime
	// RunIndex counts the completed steps.
	RunIndex
)

// Stats is a heterogeneous diagnostic bag. It is not goroutine safe;
// parallel regions accumulate locally and merge afterwards.
type Stats struct {
	entries map[Id]any
}

func New() *Stats {
	return &Stats{entries: make(map[Id]any)}
}

func (s *Stats) Set(id Id, v any) {
	s.entries[id] = v
}

func (s *Stats) Has(id Id) bool {
	_, ok := s.entries[id]
	return ok
}

func (s *Stats) Remove(id Id) {
	delete(s.entries, id)
}

// Get returns the typed value of an entry, reporting false when the
// entry is absent or holds a different type.
func Get[T any](s *Stats, id Id) (T, bool) {
	v, ok := s.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// GetOr returns the typed value of an entry, falling back to def.
func GetOr[T any](s *Stats, id Id, def T) T {
	if v, ok := Get[T](s, id); ok {
		return v
	}
	return def
}

// Increment adds one to an integer entry, creating it at one.
func (s *Stats) Increment(id Id) {
	s.entries[id] = GetOr(s, id, 0) + 1
}
