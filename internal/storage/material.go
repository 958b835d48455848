package storage

import (
	"sort"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/mathx"
	"github.com/astroseed/gosph/internal/quantity"
)

// ParamId identifies a material parameter. The integer values are part
// of the snapshot format.
type ParamId uint32

const (
	ParamRestDensity ParamId = iota
	ParamBulkModulus
	ParamShearModulus
	ParamElasticityLimit
	ParamInitialEnergy
	ParamBodyCenter
	ParamEosType
	ParamLabel

	// ParamSentinel terminates the parameter record sequence of a
	// serialized material block.
	ParamSentinel ParamId = 0xFFFFFFFF
)

// ParamKind tags the value stored in a ParamValue.
type ParamKind uint32

const (
	ParamBool ParamKind = iota
	ParamInt
	ParamFloat
	ParamString
	ParamInterval
	ParamVector
	// ParamEnum values carry a type hash on disk which is not
	// portable across builds and is ignored on read.
	ParamEnum
)

// ParamValue is a typed material parameter value. Exactly the field
// selected by Kind is meaningful.
type ParamValue struct {
	Kind     ParamKind
	Bool     bool
	Int      int64
	Float    float64
	Str      string
	Interval mathx.Interval
	Vector   geometry.Vector
}

func FloatParam(v float64) ParamValue {
	return ParamValue{Kind: ParamFloat, Float: v}
}

func IntParam(v int64) ParamValue {
	return ParamValue{Kind: ParamInt, Int: v}
}

func StringParam(s string) ParamValue {
	return ParamValue{Kind: ParamString, Str: s}
}

func EnumParam(v int64) ParamValue {
	return ParamValue{Kind: ParamEnum, Int: v}
}

// Param is one (key, typed value) material record.
type Param struct {
	Id    ParamId
	Value ParamValue
}

// Material is the opaque handle the store keeps per partition. The
// store only consults ranges and minimal values for timestepping and
// clamping; everything else is solver business.
type Material interface {
	// Param returns a parameter value, reporting absence.
	Param(id ParamId) (ParamValue, bool)
	SetParam(id ParamId, v ParamValue)
	// Params lists all parameters ordered by id, for serialization.
	Params() []Param

	// Range returns the admissible interval of a quantity, unbounded
	// when no bound is configured.
	Range(id quantity.Id) mathx.Interval
	// Minimal returns the per-material scale of a quantity used by
	// the derivative timestep criterion.
	Minimal(id quantity.Id) float64
	SetRange(id quantity.Id, rng mathx.Interval, minimal float64)

	// Create registers solver quantities; Initialize and Finalize run
	// at step boundaries over the material's particles. The store
	// never calls these itself.
	Create(store *Storage) error
	Initialize(store *Storage, from, to int) error
	Finalize(store *Storage, from, to int) error
}

type rangeEntry struct {
	rng     mathx.Interval
	minimal float64
}

// NullMaterial is a plain parameter bag with no physics attached. It
// backs bodies without a configured material and snapshot restores.
type NullMaterial struct {
	params map[ParamId]ParamValue
	ranges map[quantity.Id]rangeEntry
}

func NewNullMaterial() *NullMaterial {
	return &NullMaterial{
		params: make(map[ParamId]ParamValue),
		ranges: make(map[quantity.Id]rangeEntry),
	}
}

func (m *NullMaterial) Param(id ParamId) (ParamValue, bool) {
	v, ok := m.params[id]
	return v, ok
}

func (m *NullMaterial) SetParam(id ParamId, v ParamValue) {
	m.params[id] = v
}

func (m *NullMaterial) Params() []Param {
	out := make([]Param, 0, len(m.params))
	for id, v := range m.params {
		out = append(out, Param{Id: id, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func (m *NullMaterial) Range(id quantity.Id) mathx.Interval {
	if e, ok := m.ranges[id]; ok {
		return e.rng
	}
	return mathx.Unbounded()
}

func (m *NullMaterial) Minimal(id quantity.Id) float64 {
	if e, ok := m.ranges[id]; ok {
		return e.minimal
	}
	return 0
}

func (m *NullMaterial) SetRange(id quantity.Id, rng mathx.Interval, minimal float64) {
	m.ranges[id] = rangeEntry{rng: rng, minimal: minimal}
}

func (m *NullMaterial) Create(*Storage) error            { return nil }
func (m *NullMaterial) Initialize(*Storage, int, int) error { return nil }
func (m *NullMaterial) Finalize(*Storage, int, int) error   { return nil }

// MaterialView pairs a material with its particle index range
// [From, To).
type MaterialView struct {
	Material Material
	From     int
	To       int
}

// Size returns the particle count of the partition.
func (v MaterialView) Size() int {
	return v.To - v.From
}
